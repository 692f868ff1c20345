// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package util provides helpers shared by the capture tools.
package util

import (
	"os"
	"path/filepath"
)

// FileExists returns whether or not the given path exists and refers to a
// regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// DirExists returns whether or not the given path exists and refers to a
// directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// ToUniversalPath returns the result of replacing each slash ('/') character
// in "path" with an OS-specific separator character. Multiple slashes are
// replaced by multiple separators.
func ToUniversalPath(path string) string {
	return filepath.FromSlash(path)
}
