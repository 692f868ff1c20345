// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package capsift

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/capsift/capsift/common/log"
	"github.com/capsift/capsift/common/options"
	"github.com/capsift/capsift/common/progress"
	"github.com/capsift/capsift/common/util"
)

// Usage describes the capsift command line.
const Usage = `<options> <capture-file>

Decode a packet capture into structured records using parallel tshark processes.

See http://github.com/capsift/capsift for more information.`

const progressBarLength = 24

// InputOptions defines how the external capture tools are located and how
// the capture path is interpreted.
type InputOptions struct {
	TSharkPath   string `long:"tshark" value-name:"<path>" default:"tshark" description:"path to the tshark executable"`
	EditcapPath  string `long:"editcap" value-name:"<path>" default:"editcap" description:"path to the editcap executable"`
	CapinfosPath string `long:"capinfos" value-name:"<path>" default:"capinfos" description:"path to the capinfos executable"`
	CompatPaths  bool   `long:"compatPaths" description:"translate drive-letter capture paths to their /mnt mount points (for tools running under a compatibility layer)"`
}

// Name returns a human-readable group name for input options.
func (*InputOptions) Name() string {
	return "input"
}

// DecodeOptions defines how the capture is partitioned and decoded.
type DecodeOptions struct {
	ChunkSize   int    `long:"chunkSize" value-name:"<count>" default:"100000" description:"packets per chunk when splitting the capture"`
	Parallelism int    `long:"parallelism" value-name:"<count>" default:"0" description:"number of concurrent decode processes (defaults to the CPU count)"`
	BufferSize  int    `long:"bufferSize" value-name:"<count>" default:"10000" description:"records buffered between decoding and output; 0 buffers without bound"`
	TempDir     string `long:"tempDir" value-name:"<path>" description:"directory for chunk files (defaults to the system temp directory)"`
	CountOnly   bool   `long:"count" description:"print the capture's packet count and exit"`

	KeepChunks bool `long:"keepChunks" hidden:"true"`
}

// Name returns a human-readable group name for decode options.
func (*DecodeOptions) Name() string {
	return "decode"
}

// Capsift is the top-level tool: options, the assembled pipeline, and the
// record sink.
type Capsift struct {
	ToolOptions   *options.ToolOptions
	InputOptions  *InputOptions
	DecodeOptions *DecodeOptions

	// TargetPath is the capture file to decode.
	TargetPath string

	// OutputWriter receives the decoded records; defaults to stdout in main.
	OutputWriter io.Writer

	pipeline  *Pipeline
	estimator *CountEstimator

	countCancel     chan struct{}
	countCancelOnce sync.Once
}

// Init validates the options, locates the external tools, and assembles the
// pipeline. It must be called before Run.
func (c *Capsift) Init() error {
	if c.TargetPath == "" {
		return &SetupError{Message: "no capture file specified"}
	}
	if c.InputOptions.CompatPaths {
		c.TargetPath = util.TranslateCompatPath(c.TargetPath)
	}
	c.TargetPath = util.ToUniversalPath(c.TargetPath)
	if !util.FileExists(c.TargetPath) {
		return &SetupError{Message: fmt.Sprintf("capture file %v does not exist", c.TargetPath)}
	}
	format, err := CaptureFormat(c.TargetPath)
	if err != nil {
		return &SetupError{Message: fmt.Sprintf("cannot read %v", c.TargetPath), Err: err}
	}
	log.Logvf(log.DebugLow, "%v is a %v capture", c.TargetPath, format)
	if c.DecodeOptions.ChunkSize <= 0 {
		return &SetupError{Message: "--chunkSize must be positive"}
	}
	if c.DecodeOptions.BufferSize < 0 {
		return &SetupError{Message: "--bufferSize cannot be negative"}
	}
	if c.DecodeOptions.TempDir != "" && !util.DirExists(c.DecodeOptions.TempDir) {
		return &SetupError{Message: fmt.Sprintf("temp directory %v does not exist", c.DecodeOptions.TempDir)}
	}

	tsharkPath, err := exec.LookPath(c.InputOptions.TSharkPath)
	if err != nil {
		return &SetupError{Message: "tshark not found", Err: err}
	}
	editcapPath, err := exec.LookPath(c.InputOptions.EditcapPath)
	if err != nil && !c.DecodeOptions.CountOnly {
		return &SetupError{Message: "editcap not found", Err: err}
	}

	// capinfos is optional; without it counting falls back to scanning
	capinfosPath, err := exec.LookPath(c.InputOptions.CapinfosPath)
	if err != nil {
		log.Logvf(log.Info, "capinfos not found; packet counts will be determined by scanning")
		capinfosPath = ""
	}
	c.estimator = &CountEstimator{Path: capinfosPath}
	c.countCancel = make(chan struct{})

	parallelism := c.DecodeOptions.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	c.pipeline = &Pipeline{
		Decoder:     &TSharkDecoder{Path: tsharkPath},
		Partitioner: &Partitioner{Path: editcapPath, TempDir: c.DecodeOptions.TempDir},
		Estimator:   c.estimator,
		ChunkSize:   c.DecodeOptions.ChunkSize,
		Parallelism: parallelism,
		KeepChunks:  c.DecodeOptions.KeepChunks,
	}
	return nil
}

// Cancel stops a run in flight; the signal handler calls this.
func (c *Capsift) Cancel() {
	if c.pipeline != nil {
		c.pipeline.Cancel()
	}
	if c.countCancel != nil {
		c.countCancelOnce.Do(func() { close(c.countCancel) })
	}
}

// Run executes the tool: either a bare packet count or a full decode run.
func (c *Capsift) Run() error {
	if c.DecodeOptions.CountOnly {
		return c.runCount()
	}
	return c.runDecode()
}

func (c *Capsift) runCount() error {
	counter := progress.NewCounter(0)
	bar := &progress.Bar{
		Name:      c.TargetPath,
		Watching:  counter,
		Writer:    log.Writer(0),
		BarLength: progressBarLength,
	}
	bar.Start()
	defer bar.Stop()

	count, err := c.estimator.Count(c.TargetPath, counter, c.countCancel)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.OutputWriter, "%d\n", count)
	return nil
}

func (c *Capsift) runDecode() error {
	barWriter := progress.NewBarWriter(log.Writer(0), progress.DefaultWaitTime, progressBarLength, false)
	barWriter.Start()
	defer barWriter.Stop()
	c.pipeline.ProgressManager = barWriter

	stream := NewRecordStream(c.DecodeOptions.BufferSize)

	consumed := make(chan error, 1)
	go func() {
		consumed <- writeRecords(c.OutputWriter, stream.Records())
	}()

	summary, err := c.pipeline.Run(c.TargetPath, stream)
	if err != nil && err != ErrCancelled {
		<-consumed
		return err
	}
	if werr := <-consumed; werr != nil {
		return fmt.Errorf("writing records: %w", werr)
	}
	if err == ErrCancelled {
		if summary != nil {
			log.Logvf(log.Always, "decode cancelled after %v records", summary.Records)
		} else {
			log.Logvf(log.Always, "decode cancelled")
		}
		return err
	}

	log.Logvf(log.Always, "decoded %v records from %v chunks in %v",
		summary.Records, summary.Chunks, summary.Duration.Round(time.Millisecond))
	if summary.FailedChunks > 0 {
		log.Logvf(log.Always, "%v of %v chunks failed to decode", summary.FailedChunks, summary.Chunks)
	}
	if summary.DroppedLines > 0 {
		log.Logvf(log.Always, "dropped %v undecodable lines", summary.DroppedLines)
	}
	return nil
}

// writeRecords drains the stream to w, one tab-separated line per record.
func writeRecords(w io.Writer, records <-chan *PacketRecord) error {
	for rec := range records {
		_, err := fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			rec.FrameID,
			rec.Timestamp.Format(log.ToolTimeFormat),
			rec.Length,
			rec.Endpoints(),
			rec.Transport,
			rec.AppProtocol,
			rec.Info,
		)
		if err != nil {
			// keep draining so the pipeline is not wedged on a full stream
			for range records {
			}
			return err
		}
	}
	return nil
}
