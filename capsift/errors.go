// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package capsift

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Run when a decode is in progress on
	// the same pipeline.
	ErrAlreadyRunning = errors.New("a decode run is already in progress")

	// ErrCancelled is returned by Run when the run was stopped by Cancel or
	// by a signal before it completed.
	ErrCancelled = errors.New("decode run cancelled")
)

// SetupError means the pipeline could not be assembled at all, before any
// work started: a missing external tool, an unreadable capture, a bad option
// combination.
type SetupError struct {
	Message string
	Err     error
}

func (e *SetupError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// PartitionError means the split tool failed to cut the capture into chunks,
// which aborts the whole run since there is nothing to decode.
type PartitionError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *PartitionError) Error() string {
	msg := fmt.Sprintf("partitioning %s failed: %v", e.Path, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *PartitionError) Unwrap() error {
	return e.Err
}

// ChunkDecodeError records the failure of a single chunk's decode process.
// One failing chunk does not abort the run; the error is carried in that
// chunk's outcome instead.
type ChunkDecodeError struct {
	Chunk  string
	Stderr string
	Err    error
}

func (e *ChunkDecodeError) Error() string {
	msg := fmt.Sprintf("decoding chunk %s failed: %v", e.Chunk, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ChunkDecodeError) Unwrap() error {
	return e.Err
}
