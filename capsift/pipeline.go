// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package capsift

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/tomb.v2"

	"github.com/capsift/capsift/common/log"
	"github.com/capsift/capsift/common/progress"
)

// RunState is the lifecycle state of a Pipeline.
type RunState int32

const (
	StateIdle RunState = iota
	StateSplitting
	StateDecoding
	StateDraining
	StateCompleted
	StateFailed
	StateCancelled
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSplitting:
		return "splitting"
	case StateDecoding:
		return "decoding"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// ChunkOutcome describes how one chunk's decode went. Degraded means the
// decode process failed partway but the records it produced first were kept.
type ChunkOutcome struct {
	Chunk        Chunk
	Records      uint64
	DroppedLines uint64
	Err          error
	Degraded     bool
}

// RunSummary aggregates the outcomes of one pipeline run.
type RunSummary struct {
	Chunks       int
	FailedChunks int
	Records      uint64
	DroppedLines uint64
	Cancelled    bool
	Duration     time.Duration
	Outcomes     []ChunkOutcome
}

// Clean reports whether every chunk decoded fully and the run was not
// cancelled. Dropped lines and degraded chunks do not fail a run, but they do
// make it unclean.
func (s *RunSummary) Clean() bool {
	if s.Cancelled || s.FailedChunks > 0 || s.DroppedLines > 0 {
		return false
	}
	for _, o := range s.Outcomes {
		if o.Degraded {
			return false
		}
	}
	return true
}

// Pipeline partitions a capture and decodes the partitions in parallel,
// streaming reconciled records to one RecordStream. A Pipeline runs one
// capture at a time but may be reused for subsequent runs.
type Pipeline struct {
	Decoder     LineDecoder
	Partitioner Chunker
	Estimator   *CountEstimator

	// ChunkSize is the packet count per chunk.
	ChunkSize int
	// Parallelism is how many decode processes run at once.
	Parallelism int
	// KeepChunks leaves the chunk files on disk after the run.
	KeepChunks bool
	// InternCapacity bounds the shared string cache; zero means the
	// default.
	InternCapacity int

	// ProgressManager, when set, gets a bar for the run.
	ProgressManager progress.Manager

	state int32

	mu         sync.Mutex
	cancelChan chan struct{}
	cancelled  bool
}

// State returns the pipeline's current lifecycle state.
func (p *Pipeline) State() RunState {
	return RunState(atomic.LoadInt32(&p.state))
}

func (p *Pipeline) setState(s RunState) {
	atomic.StoreInt32(&p.state, int32(s))
	log.Logvf(log.DebugHigh, "pipeline state: %v", s)
}

// Cancel stops the current run, killing any decode processes in flight. It is
// safe to call at any time, from any goroutine, and more than once.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelChan != nil && !p.cancelled {
		p.cancelled = true
		close(p.cancelChan)
	}
}

// Run decodes capture into stream. It returns ErrAlreadyRunning if a run is
// in flight on this pipeline, ErrCancelled if Cancel stopped the run, and
// otherwise a summary; individual chunk failures are reported in the summary
// rather than failing the run, unless every chunk failed.
//
// Run closes the stream's producer side when it returns; the consumer may
// still be draining buffered records at that point.
func (p *Pipeline) Run(capture string, stream *RecordStream) (*RunSummary, error) {
	// a run may only start from idle or a terminal state
	started := false
	for _, s := range []RunState{StateIdle, StateCompleted, StateFailed, StateCancelled} {
		if atomic.CompareAndSwapInt32(&p.state, int32(s), int32(StateSplitting)) {
			started = true
			break
		}
	}
	if !started {
		return nil, ErrAlreadyRunning
	}

	p.mu.Lock()
	p.cancelChan = make(chan struct{})
	p.cancelled = false
	cancel := p.cancelChan
	p.mu.Unlock()

	start := time.Now()
	summary, err := p.run(capture, stream, cancel)
	// if the run failed before any writers registered, this closes the
	// stream so a consumer doesn't wait forever; otherwise it is a no-op
	stream.CloseWhenWritersDone()
	if summary != nil {
		summary.Duration = time.Since(start)
	}
	switch {
	case err == ErrCancelled:
		p.setState(StateCancelled)
	case err != nil:
		p.setState(StateFailed)
	default:
		p.setState(StateCompleted)
	}
	return summary, err
}

func (p *Pipeline) run(capture string, stream *RecordStream, cancel <-chan struct{}) (*RunSummary, error) {
	chunkSize := p.ChunkSize
	if chunkSize <= 0 {
		return nil, &SetupError{Message: "chunk size must be positive"}
	}
	parallelism := p.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	var estimate uint64
	if p.Estimator != nil {
		var err error
		estimate, err = p.Estimator.Count(capture, nil, cancel)
		if err == ErrCancelled {
			return nil, ErrCancelled
		}
		if err != nil {
			log.Logvf(log.Info, "could not estimate packet count of %v: %v", capture, err)
		} else {
			log.Logvf(log.Info, "%v holds approximately %v packets", capture, estimate)
		}
	}

	// a capture no larger than one chunk is decoded in place, skipping the
	// split entirely
	var chunks []Chunk
	var chunkDir string
	if estimate > 0 && estimate <= uint64(chunkSize) {
		log.Logvf(log.Info, "capture fits in a single chunk; decoding it directly")
		chunks = []Chunk{{Path: capture}}
	} else {
		var err error
		chunkDir, chunks, err = p.Partitioner.Partition(capture, chunkSize, cancel)
		if err != nil {
			return nil, err
		}
		if chunkDir != "" {
			if p.KeepChunks {
				log.Logvf(log.Always, "keeping chunk files in %v", chunkDir)
			} else {
				defer os.RemoveAll(chunkDir)
			}
		}
	}

	var counter progress.Updateable
	if p.ProgressManager != nil {
		barName := filepath.Base(capture)
		counter = progress.NewCounter(int64(estimate))
		p.ProgressManager.Attach(barName, counter)
		defer p.ProgressManager.Detach(barName)
	}

	p.setState(StateDecoding)

	cache := NewStringCache(p.InternCapacity)
	outcomes := make([]ChunkOutcome, len(chunks))
	writers := make([]*RecordWriter, len(chunks))
	for i := range chunks {
		outcomes[i].Chunk = chunks[i]
		writers[i] = stream.Writer()
	}
	stream.CloseWhenWritersDone()

	sem := make(chan struct{}, parallelism)
	t := &tomb.Tomb{}
	t.Go(func() error {
		for i := range chunks {
			select {
			case sem <- struct{}{}:
			case <-cancel:
				for _, w := range writers[i:] {
					w.Close()
				}
				return nil
			}
			chunk, w, out := chunks[i], writers[i], &outcomes[i]
			t.Go(func() error {
				defer func() { <-sem }()
				defer w.Close()
				p.decodeChunk(chunk, w, cache, counter, cancel, out)
				if !p.KeepChunks && chunkDir != "" {
					os.Remove(chunk.Path)
				}
				return nil
			})
		}
		return nil
	})
	t.Wait()

	p.setState(StateDraining)

	summary := &RunSummary{Chunks: len(chunks), Outcomes: outcomes}
	var firstErr error
	for i := range outcomes {
		o := &outcomes[i]
		summary.Records += o.Records
		summary.DroppedLines += o.DroppedLines
		if o.Err != nil && !o.Degraded {
			summary.FailedChunks++
			if firstErr == nil {
				firstErr = o.Err
			}
		}
	}

	select {
	case <-cancel:
		summary.Cancelled = true
		return summary, ErrCancelled
	default:
	}

	if len(chunks) > 0 && summary.FailedChunks == len(chunks) {
		return summary, fmt.Errorf("all %d chunks failed to decode: %w", len(chunks), firstErr)
	}
	return summary, nil
}

// decodeChunk runs one decode process and reconciles its chunk-local frame
// numbers into capture-global frame identities.
func (p *Pipeline) decodeChunk(chunk Chunk, w *RecordWriter, cache *StringCache, counter progress.Updateable, cancel <-chan struct{}, out *ChunkOutcome) {
	log.Logvf(log.DebugLow, "decoding chunk %v (frame offset %v)", chunk.Path, chunk.FrameOffset)
	parser := NewLineParser(cache)
	err := p.Decoder.Decode(chunk.Path, cancel, func(line []byte) {
		rec := parser.Parse(line)
		if rec == nil {
			return
		}
		rec.FrameID += chunk.FrameOffset
		if !w.Write(rec, cancel) {
			return
		}
		out.Records++
		if counter != nil {
			counter.Inc(1)
		}
	})
	out.DroppedLines = parser.Dropped()
	if err != nil && err != ErrCancelled {
		out.Err = err
		out.Degraded = out.Records > 0
		if out.Degraded {
			log.Logvf(log.Always, "chunk %v failed after %v records; keeping them: %v",
				chunk.Path, out.Records, err)
		} else {
			log.Logvf(log.Always, "chunk %v failed: %v", chunk.Path, err)
		}
	}
}
