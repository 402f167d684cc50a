// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transcode",
		Name:      "proc_terminate_total",
		Help:      "Total number of signals sent to child process groups during termination.",
	}, []string{"signal", "result"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transcode",
		Name:      "proc_wait_total",
		Help:      "Total number of process wait outcomes observed during termination.",
	}, []string{"outcome"})
)

func incProcTerminate(signal, result string) {
	procTerminateTotal.WithLabelValues(signal, result).Inc()
}

func incProcWait(outcome string) {
	procWaitTotal.WithLabelValues(outcome).Inc()
}
