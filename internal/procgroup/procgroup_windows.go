// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package procgroup

import (
	"os/exec"
	"syscall"

	"github.com/nyxmedia/transcode-orchestrator/internal/log"
)

// set is a no-op on Windows: there is no POSIX process group to join, and
// Terminate's SIGKILL fallback is enough to reap a stuck transcoder child.
func set(cmd *exec.Cmd) {
}

// Kill maps SIGKILL to Process.Kill() on a transcoder subprocess; SIGTERM is
// a no-op since Windows has no reliable equivalent of graceful termination
// via signals, and Terminate always escalates to SIGKILL after the grace
// period anyway.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if sig == syscall.SIGKILL {
		log.L().Debug().Int(log.FieldPID, cmd.Process.Pid).Msg("killing transcoder process (windows)")
		return cmd.Process.Kill()
	}

	return nil
}
