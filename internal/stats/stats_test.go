// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nyxmedia/transcode-orchestrator/internal/pipeline"
)

func TestRecordAndSnapshot(t *testing.T) {
	c := New()
	c.Record(pipeline.Result{Outcome: pipeline.Success})
	c.Record(pipeline.Result{Outcome: pipeline.Success})
	c.Record(pipeline.Result{Outcome: pipeline.Failure})
	c.Record(pipeline.Result{Outcome: pipeline.SkipSize})
	c.Record(pipeline.Result{Outcome: pipeline.SkipExists})
	c.Record(pipeline.Result{Outcome: pipeline.Cancelled})

	got := c.Snapshot()
	want := Summary{Success: 2, Failure: 1, SkipSize: 1, SkipExists: 1, Cancelled: 1}
	if got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
	if got.Total() != 6 {
		t.Errorf("Total() = %d, want 6", got.Total())
	}
	if !got.Failed() {
		t.Error("Failed() = false, want true (one failure and one cancellation recorded)")
	}
}

func TestPathEscapeCountsAsFailure(t *testing.T) {
	c := New()
	c.Record(pipeline.Result{Outcome: pipeline.PathEscape})

	got := c.Snapshot()
	if got.Failure != 1 || got.PathEscape != 1 {
		t.Errorf("Snapshot() = %+v, want PathEscape to also increment Failure", got)
	}
	if !got.Failed() {
		t.Error("Failed() = false, want true")
	}
}

func TestHappyRunIsNotFailed(t *testing.T) {
	c := New()
	c.Record(pipeline.Result{Outcome: pipeline.Success})
	c.Record(pipeline.Result{Outcome: pipeline.SkipExists})

	if c.Snapshot().Failed() {
		t.Error("Failed() = true, want false for an all-success/skip run")
	}
}

func TestWriteReport(t *testing.T) {
	logRoot := filepath.Join(t.TempDir(), "logs")
	s := Summary{Success: 3, Failure: 1, SkipExists: 2}

	if err := s.WriteReport(logRoot); err != nil {
		t.Fatalf("WriteReport() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(logRoot, "run_summary.json"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var got Summary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if got != s {
		t.Errorf("report round-trip = %+v, want %+v", got, s)
	}
}

func TestRecordConcurrentSafe(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(pipeline.Result{Outcome: pipeline.Success})
		}()
	}
	wg.Wait()

	if got := c.Snapshot().Success; got != 100 {
		t.Errorf("Success = %d, want 100", got)
	}
}
