// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package util

import (
	"strings"
)

// compatMountRoot is where the compatibility layer (e.g. WSL) mounts the
// host's drive letters.
const compatMountRoot = "/mnt/"

// TranslateCompatPath rewrites a drive-letter path into the mount-point
// convention used when the capture tools run under a compatibility layer
// with its own filesystem namespace, e.g.
//  C:\captures\big.pcapng -> /mnt/c/captures/big.pcapng
// Paths without a drive letter are returned unchanged.
func TranslateCompatPath(path string) string {
	if len(path) < 2 || path[1] != ':' {
		return path
	}
	drive := path[0]
	switch {
	case drive >= 'A' && drive <= 'Z':
		drive = drive - 'A' + 'a'
	case drive >= 'a' && drive <= 'z':
	default:
		return path
	}
	rest := strings.ReplaceAll(path[2:], `\`, "/")
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return compatMountRoot + string(drive) + rest
}
