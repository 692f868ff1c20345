// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package capsift

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/capsift/capsift/common/log"
)

// A Chunk is one slice of a partitioned capture. FrameOffset is what must be
// added to the chunk-local frame numbers to recover each packet's identity in
// the original capture.
type Chunk struct {
	Path        string
	Index       int
	FrameOffset uint64
}

// A Chunker cuts a capture into chunks of a fixed number of packets. It
// returns the directory holding the chunk files, which the caller owns, or an
// empty string when the chunks are not backed by fresh files.
type Chunker interface {
	Partition(capture string, chunkSize int, cancel <-chan struct{}) (string, []Chunk, error)
}

// Partitioner cuts a capture into fixed-size chunks with the editcap binary.
type Partitioner struct {
	// Path is the editcap binary; "editcap" resolves through PATH.
	Path string
	// TempDir is where chunk directories are created; empty means the
	// system default.
	TempDir string
}

// Partition splits capture into chunks of chunkSize packets each under a
// fresh temporary directory, which the caller owns and must remove. The
// returned chunks are ordered as the packets were in the capture.
func (p *Partitioner) Partition(capture string, chunkSize int, cancel <-chan struct{}) (string, []Chunk, error) {
	dir, err := os.MkdirTemp(p.TempDir, "capsift-chunks-")
	if err != nil {
		return "", nil, &PartitionError{Path: capture, Err: err}
	}

	// editcap derives each chunk's name from this pattern by inserting a
	// sequence number and timestamp before the extension
	pattern := filepath.Join(dir, "chunk.pcapng")
	cmd := exec.Command(p.Path, "-c", strconv.Itoa(chunkSize), capture, pattern)
	setProcAttrs(cmd)
	var stderr limitedBuffer
	cmd.Stderr = &stderr

	log.Logvf(log.DebugLow, "splitting %v into chunks of %v packets", capture, chunkSize)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(dir)
		return "", nil, &PartitionError{Path: capture, Err: err}
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-cancel:
			killProcess(cmd)
		case <-done:
		}
	}()
	err = cmd.Wait()
	close(done)

	if err != nil {
		os.RemoveAll(dir)
		select {
		case <-cancel:
			return "", nil, ErrCancelled
		default:
		}
		return "", nil, &PartitionError{Path: capture, Stderr: stderr.String(), Err: err}
	}

	chunks, err := discoverChunks(dir, chunkSize)
	if err != nil {
		os.RemoveAll(dir)
		return "", nil, &PartitionError{Path: capture, Err: err}
	}
	if len(chunks) == 0 {
		os.RemoveAll(dir)
		return "", nil, &PartitionError{Path: capture,
			Err: fmt.Errorf("split tool produced no chunk files")}
	}
	log.Logvf(log.Info, "split %v into %v chunks", capture, len(chunks))
	return dir, chunks, nil
}

// discoverChunks lists the chunk files the split tool wrote into dir and
// assigns each its frame offset. The tool numbers chunks in its file names,
// so lexicographic order is packet order.
func discoverChunks(dir string, chunkSize int) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	chunks := make([]Chunk, len(names))
	for i, name := range names {
		chunks[i] = Chunk{
			Path:        filepath.Join(dir, name),
			Index:       i,
			FrameOffset: uint64(i) * uint64(chunkSize),
		}
	}
	return chunks, nil
}
