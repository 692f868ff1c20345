// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package capsift

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/google/gopacket/pcapgo"

	"github.com/capsift/capsift/common/log"
	"github.com/capsift/capsift/common/progress"
	"github.com/capsift/capsift/common/text"
)

// countCheckInterval is how many packets the slow counting path reads
// between cancellation checks.
const countCheckInterval = 4096

// pcapngMagic is the block type of a pcapng section header, byte-order
// independent. Classic pcap magics vary by byte order and timestamp
// resolution.
var (
	pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}
	pcapMagics  = [][]byte{
		{0xa1, 0xb2, 0xc3, 0xd4}, // microsecond, big-endian
		{0xd4, 0xc3, 0xb2, 0xa1}, // microsecond, little-endian
		{0xa1, 0xb2, 0x3c, 0x4d}, // nanosecond, big-endian
		{0x4d, 0x3c, 0xb2, 0xa1}, // nanosecond, little-endian
	}
)

// CaptureFormat sniffs the leading magic number of a capture file and
// reports "pcap" or "pcapng"; anything else is an error, caught before any
// splitting or decode processes are spawned.
func CaptureFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return "", fmt.Errorf("reading capture header: %w", err)
	}
	return captureFormatOf(magic[:])
}

func captureFormatOf(magic []byte) (string, error) {
	if bytes.Equal(magic, pcapngMagic) {
		return "pcapng", nil
	}
	for _, m := range pcapMagics {
		if bytes.Equal(magic, m) {
			return "pcap", nil
		}
	}
	return "", fmt.Errorf("unrecognized capture format (magic % x)", magic)
}

// CountEstimator determines how many packets a capture holds, preferring the
// capinfos binary and falling back to reading the file itself when capinfos
// is unavailable or cannot parse the capture.
type CountEstimator struct {
	// Path is the capinfos binary; empty skips straight to the slow path.
	Path string
}

// Count returns the packet count of capture. counter, when non-nil, is
// advanced as packets are scanned on the slow path so callers can show
// progress.
func (e *CountEstimator) Count(capture string, counter progress.Updateable, cancel <-chan struct{}) (uint64, error) {
	if e.Path != "" {
		count, err := e.countWithCapinfos(capture)
		switch {
		case err != nil:
			log.Logvf(log.Info, "capinfos count of %v failed (%v); scanning the capture instead", capture, err)
		case count == 0:
			// a zero from capinfos is indistinguishable from a misparse
			log.Logvf(log.Info, "capinfos reported no packets in %v; scanning the capture instead", capture)
		default:
			return count, nil
		}
	}
	return e.countByScanning(capture, counter, cancel)
}

func (e *CountEstimator) countWithCapinfos(capture string) (uint64, error) {
	// -M asks for unabbreviated machine-readable numbers, but older
	// releases ignore it, so the value is parsed as possibly abbreviated
	// ("5835 k") either way
	out, err := exec.Command(e.Path, "-c", "-M", capture).Output()
	if err != nil {
		return 0, err
	}
	return parseCapinfosCount(string(out))
}

func parseCapinfosCount(out string) (uint64, error) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Number of packets") {
			continue
		}
		_, value, found := strings.Cut(line, ":")
		if !found {
			_, value, found = strings.Cut(line, "=")
		}
		if !found {
			break
		}
		return text.ParseAbbrevNumber(strings.TrimSpace(value))
	}
	return 0, fmt.Errorf("no packet count in capinfos output")
}

// countByScanning walks the capture's packet blocks directly. It understands
// both the classic and the next-generation capture formats, telling them
// apart by the leading magic number.
func (e *CountEstimator) countByScanning(capture string, counter progress.Updateable, cancel <-chan struct{}) (uint64, error) {
	f, err := os.Open(capture)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)
	magic, err := br.Peek(4)
	if err != nil {
		return 0, fmt.Errorf("reading capture header: %w", err)
	}
	format, err := captureFormatOf(magic)
	if err != nil {
		return 0, err
	}

	var next func() error
	if format == "pcapng" {
		r, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return 0, err
		}
		next = func() error {
			_, _, err := r.ZeroCopyReadPacketData()
			return err
		}
	} else {
		r, err := pcapgo.NewReader(br)
		if err != nil {
			return 0, err
		}
		next = func() error {
			_, _, err := r.ZeroCopyReadPacketData()
			return err
		}
	}

	var count uint64
	for {
		err := next()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		count++
		if counter != nil {
			counter.Inc(1)
		}
		if count%countCheckInterval == 0 {
			select {
			case <-cancel:
				return count, ErrCancelled
			default:
			}
		}
	}
}
