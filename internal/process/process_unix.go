//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configurePlatform sets up cmd to run as the leader of its own
// process group, so a single signal to -pgid reaches every descendant
// the test spawned, not just the immediate child.
func configurePlatform(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// pgid returns the process group id to signal: the child's own pid,
// since Setpgid makes it its own group leader.
func pgid(cmd *exec.Cmd) int {
	return cmd.Process.Pid
}

func terminateGroup(cmd *exec.Cmd) error {
	return syscall.Kill(-pgid(cmd), syscall.SIGTERM)
}

func killGroup(cmd *exec.Cmd) error {
	return syscall.Kill(-pgid(cmd), syscall.SIGKILL)
}

// assignJobIfWindows is a no-op on POSIX; process-group membership is
// already fixed by Setpgid at fork time.
func assignJobIfWindows(cmd *exec.Cmd) error { return nil }

// groupStillAlive reports whether any process remains in the group,
// used for post-exit leak detection: signal 0 performs no action but
// still returns ESRCH once every member has gone.
func groupStillAlive(cmd *exec.Cmd) bool {
	err := syscall.Kill(-pgid(cmd), syscall.Signal(0))
	return err == nil
}
