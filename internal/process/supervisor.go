package process

import (
	"os/exec"
	"sync"
	"time"
)

// Handle is a running (or just-completed) attempt.
type Handle struct {
	cmd    *exec.Cmd
	stdout *capturedStream
	stderr *capturedStream

	startTime time.Time

	mu       sync.Mutex
	killedBy KillReason
}

// Spawn starts req as the leader of its own process group (POSIX) or
// inside a fresh Job Object (Windows) and returns immediately; call
// Wait to block for completion.
func Spawn(req SpawnRequest) (*Handle, error) {
	path := req.Path
	if path == "" {
		path = req.Instance.BinaryPath
	}
	cmd := exec.Command(path, req.Args...)
	cmd.Dir = req.Instance.CWD
	cmd.Env = req.Env
	configurePlatform(cmd)

	out := newCapturedStream(req.OutputMemLimit)
	errStream := newCapturedStream(req.OutputMemLimit)
	cmd.Stdout = out
	cmd.Stderr = errStream

	h := &Handle{cmd: cmd, stdout: out, stderr: errStream}
	h.startTime = time.Now()
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	if err := onSpawned(cmd); err != nil {
		_ = killGroup(cmd)
		_ = cmd.Wait()
		return nil, err
	}
	return h, nil
}

// onSpawned performs any post-Start platform setup that needs the
// live PID (assigning the Windows Job Object). It is a no-op on POSIX,
// where Setpgid already took effect at fork time.
func onSpawned(cmd *exec.Cmd) error {
	return assignJobIfWindows(cmd)
}

// Pid returns the child's process id.
func (h *Handle) Pid() int { return h.cmd.Process.Pid }

// StartTime reports when the child was started.
func (h *Handle) StartTime() time.Time { return h.startTime }

// Terminate sends the graceful kill signal (SIGTERM / CTRL_BREAK).
func (h *Handle) Terminate() error {
	h.mu.Lock()
	if h.killedBy < KillTerminate {
		h.killedBy = KillTerminate
	}
	h.mu.Unlock()
	return terminateGroup(h.cmd)
}

// Kill sends the forceful kill signal (SIGKILL / TerminateJobObject).
func (h *Handle) Kill() error {
	h.mu.Lock()
	h.killedBy = KillForce
	h.mu.Unlock()
	return killGroup(h.cmd)
}

// Wait blocks until the child exits, then collects its outcome,
// captured output, and whether any descendant process outlived it.
func (h *Handle) Wait() Result {
	waitErr := h.cmd.Wait()
	end := time.Now()

	res := Result{
		StartTime: h.startTime,
		EndTime:   end,
	}

	h.mu.Lock()
	res.KilledBy = h.killedBy
	h.mu.Unlock()

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			if ws, ok := exitErr.Sys().(interface{ Signaled() bool }); ok {
				res.Signaled = ws.Signaled()
			}
		} else {
			res.SpawnErr = waitErr
		}
	}

	if stdout, err := h.stdout.Bytes(); err == nil {
		res.Stdout = stdout
	}
	if stderr, err := h.stderr.Bytes(); err == nil {
		res.Stderr = stderr
	}
	_ = h.stdout.Close()
	_ = h.stderr.Close()

	if groupStillAlive(h.cmd) {
		res.LeakedPIDs = []int{h.Pid()}
	}

	return res
}
