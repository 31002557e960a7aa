//go:build windows

package process

import (
	"os/exec"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// jobByPID tracks the Job Object assigned to each spawned cmd, keyed
// by PID, since exec.Cmd carries no room for platform extras of our own.
var (
	jobMu    sync.Mutex
	jobByPID = map[int]windows.Handle{}
)

// configurePlatform starts the child in a new process group:
// CREATE_NEW_PROCESS_GROUP lets us target CTRL_BREAK_EVENT at the
// child without affecting our own console. The Job Object (with
// kill-on-job-close semantics, so terminating the job also terminates
// every process it spawned) is attached by assignJob once the child
// has started.
func configurePlatform(cmd *exec.Cmd) {
	cmd.SysProcAttr = &windows.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

func assignJobIfWindows(cmd *exec.Cmd) error {
	return assignJob(cmd)
}

func assignJob(cmd *exec.Cmd) error {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return err
	}
	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	if _, err := windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	); err != nil {
		windows.CloseHandle(job)
		return err
	}
	proc, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(cmd.Process.Pid))
	if err != nil {
		windows.CloseHandle(job)
		return err
	}
	defer windows.CloseHandle(proc)
	if err := windows.AssignProcessToJobObject(job, proc); err != nil {
		windows.CloseHandle(job)
		return err
	}
	jobMu.Lock()
	jobByPID[cmd.Process.Pid] = job
	jobMu.Unlock()
	return nil
}

func terminateGroup(cmd *exec.Cmd) error {
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(cmd.Process.Pid))
}

func killGroup(cmd *exec.Cmd) error {
	jobMu.Lock()
	job, ok := jobByPID[cmd.Process.Pid]
	jobMu.Unlock()
	if !ok {
		return cmd.Process.Kill()
	}
	return windows.TerminateJobObject(job, 1)
}

func groupStillAlive(cmd *exec.Cmd) bool {
	jobMu.Lock()
	job, ok := jobByPID[cmd.Process.Pid]
	jobMu.Unlock()
	if !ok {
		return false
	}
	var info windows.JOBOBJECT_BASIC_PROCESS_ID_LIST
	err := windows.QueryInformationJobObject(
		job,
		windows.JobObjectBasicProcessIdList,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
		nil,
	)
	if err != nil {
		return false
	}
	return info.NumberOfAssignedProcesses > 0
}
