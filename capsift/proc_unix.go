// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

//go:build !windows

package capsift

import (
	"os/exec"
	"syscall"
)

// setProcAttrs puts the child in its own process group so cancellation can
// take down any helpers it spawned along with it.
func setProcAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcess kills the child's whole process group, falling back to the
// child alone if the group is gone.
func killProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		if syscall.Kill(-pgid, syscall.SIGKILL) == nil {
			return
		}
	}
	cmd.Process.Kill()
}
