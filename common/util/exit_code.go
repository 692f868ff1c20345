// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package util

import (
	"fmt"
	"os"
)

const (
	// ExitClean means that the tool ran successfully.
	ExitClean = 0
	// ExitError means that the tool hit a fatal error.
	ExitError = 1
	// ExitBadOptions means that the tool was given invalid command line options.
	ExitBadOptions = 3
	// ExitKill means that the tool was killed by a second interrupt.
	ExitKill = 4
)

// Exitf printf's the given message to stderr and exits with the given code.
func Exitf(code int, format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(code)
}
