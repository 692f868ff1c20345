// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package capsift

import (
	"bufio"
	"bytes"
	"os/exec"
	"strings"

	"github.com/capsift/capsift/common/log"
)

// maxLineBytes is the scanner buffer for decoder output. A line is one
// packet; even pathological info columns fit well under a megabyte.
const maxLineBytes = 1024 * 1024

// maxStderrBytes caps how much decoder stderr is retained for error
// reporting.
const maxStderrBytes = 8 * 1024

// A LineDecoder produces decoder output lines for one capture file. emit is
// called once per line with a buffer that is only valid for the duration of
// the call. Closing cancel stops the decode; Decode then returns promptly
// with the underlying process dead.
type LineDecoder interface {
	Decode(capture string, cancel <-chan struct{}, emit func(line []byte)) error
}

// TSharkDecoder runs the tshark binary in field-export mode and streams its
// stdout line by line.
type TSharkDecoder struct {
	// Path is the tshark binary; "tshark" resolves through PATH.
	Path string
}

// Decode runs one tshark process over capture. A non-zero exit is returned
// as a ChunkDecodeError carrying the process's stderr; lines emitted before
// the failure have already been delivered.
func (d *TSharkDecoder) Decode(capture string, cancel <-chan struct{}, emit func(line []byte)) error {
	args := []string{"-n", "-r", capture, "-T", "fields", "-E", "occurrence=f"}
	for _, f := range decodeFields {
		args = append(args, "-e", f)
	}

	cmd := exec.Command(d.Path, args...)
	setProcAttrs(cmd)

	var stderr limitedBuffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ChunkDecodeError{Chunk: capture, Err: err}
	}

	log.Logvf(log.DebugHigh, "starting decoder: %s %s", d.Path, strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return &ChunkDecodeError{Chunk: capture, Err: err}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-cancel:
			killProcess(cmd)
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		emit(scanner.Bytes())
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		select {
		case <-cancel:
			return ErrCancelled
		default:
		}
		return &ChunkDecodeError{Chunk: capture, Stderr: stderr.String(), Err: err}
	}
	if scanErr != nil {
		return &ChunkDecodeError{Chunk: capture, Err: scanErr}
	}
	return nil
}

// limitedBuffer is a Writer that keeps only the first maxStderrBytes written
// to it, so a chatty decoder cannot balloon error reports.
type limitedBuffer struct {
	buf       bytes.Buffer
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if room := maxStderrBytes - b.buf.Len(); room > 0 {
		if len(p) > room {
			p = p[:room]
			b.truncated = true
		}
		b.buf.Write(p)
	} else if n > 0 {
		b.truncated = true
	}
	return n, nil
}

func (b *limitedBuffer) String() string {
	s := strings.TrimSpace(b.buf.String())
	if b.truncated {
		s += " ..."
	}
	return s
}
