// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"errors"
	"os/exec"
	"time"
)

// ErrKillFailed is returned when a transcoder child process group survives
// both the SIGTERM grace period and the SIGKILL timeout.
var ErrKillFailed = errors.New("kill operation failed")

// Set configures a transcoder subprocess to start in its own process group,
// so KillGroup can later reap the whole ffmpeg/ffprobe tree it spawns
// (pipe readers, helper processes) rather than just the direct child.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// KillGroup terminates an entire transcoder process group by PID: SIGTERM,
// wait up to grace, then SIGKILL, waiting up to timeout for the group to
// actually exit. The process MUST have been spawned with Set(cmd).
func KillGroup(pid int, grace, timeout time.Duration) error {
	return killGroup(pid, grace, timeout)
}
