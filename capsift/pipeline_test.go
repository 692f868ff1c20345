// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package capsift

import (
	"sort"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeChunker hands back a fixed chunk list without touching the filesystem.
type fakeChunker struct {
	chunks []Chunk
	err    error
}

func (f *fakeChunker) Partition(capture string, chunkSize int, cancel <-chan struct{}) (string, []Chunk, error) {
	return "", f.chunks, f.err
}

// fakeDecoder replays canned lines per chunk path. When hold is set, Decode
// blocks after emitting until hold is closed or the decode is cancelled.
type fakeDecoder struct {
	lines map[string][][]byte
	errs  map[string]error
	hold  chan struct{}
}

func (d *fakeDecoder) Decode(capture string, cancel <-chan struct{}, emit func(line []byte)) error {
	for _, line := range d.lines[capture] {
		emit(line)
	}
	if d.hold != nil {
		select {
		case <-d.hold:
		case <-cancel:
			return ErrCancelled
		}
	}
	if err := d.errs[capture]; err != nil {
		return err
	}
	return nil
}

func frameLine(n string) []byte {
	return testLine(map[int]string{fieldFrameNumber: n})
}

// collectRecords drains stream in the background and delivers everything it
// read once the stream closes.
func collectRecords(stream *RecordStream) <-chan []*PacketRecord {
	out := make(chan []*PacketRecord, 1)
	go func() {
		var recs []*PacketRecord
		for rec := range stream.Records() {
			recs = append(recs, rec)
		}
		out <- recs
	}()
	return out
}

func TestPipelineFrameIdentity(t *testing.T) {
	Convey("With a two-chunk capture", t, func() {
		decoder := &fakeDecoder{lines: map[string][][]byte{
			"a": {frameLine("1"), frameLine("2")},
			"b": {frameLine("1"), frameLine("2")},
		}}
		pipeline := &Pipeline{
			Decoder: decoder,
			Partitioner: &fakeChunker{chunks: []Chunk{
				{Path: "a", Index: 0, FrameOffset: 0},
				{Path: "b", Index: 1, FrameOffset: 2},
			}},
			ChunkSize:   2,
			Parallelism: 2,
		}
		stream := NewRecordStream(8)
		collected := collectRecords(stream)

		summary, err := pipeline.Run("capture.pcapng", stream)
		So(err, ShouldBeNil)

		Convey("every record keeps a unique capture-global frame id", func() {
			recs := <-collected
			So(len(recs), ShouldEqual, 4)
			ids := make([]int, len(recs))
			for i, rec := range recs {
				ids[i] = int(rec.FrameID)
			}
			sort.Ints(ids)
			So(ids, ShouldResemble, []int{1, 2, 3, 4})
		})

		Convey("a second identical run yields the same frame ids", func() {
			<-collected
			rerun := NewRecordStream(8)
			reCollected := collectRecords(rerun)
			_, err := pipeline.Run("capture.pcapng", rerun)
			So(err, ShouldBeNil)
			recs := <-reCollected
			ids := make([]int, len(recs))
			for i, rec := range recs {
				ids[i] = int(rec.FrameID)
			}
			sort.Ints(ids)
			So(ids, ShouldResemble, []int{1, 2, 3, 4})
		})

		Convey("the summary reflects a clean run", func() {
			<-collected
			So(summary.Records, ShouldEqual, 4)
			So(summary.Chunks, ShouldEqual, 2)
			So(summary.FailedChunks, ShouldEqual, 0)
			So(summary.Clean(), ShouldBeTrue)
			So(pipeline.State(), ShouldEqual, StateCompleted)
		})
	})
}

func TestPipelineChunkFailures(t *testing.T) {
	Convey("With a capture whose second chunk fails outright", t, func() {
		decoder := &fakeDecoder{
			lines: map[string][][]byte{"a": {frameLine("1"), frameLine("2")}},
			errs:  map[string]error{"b": &ChunkDecodeError{Chunk: "b", Stderr: "boom"}},
		}
		pipeline := &Pipeline{
			Decoder: decoder,
			Partitioner: &fakeChunker{chunks: []Chunk{
				{Path: "a", Index: 0, FrameOffset: 0},
				{Path: "b", Index: 1, FrameOffset: 2},
			}},
			ChunkSize:   2,
			Parallelism: 2,
		}
		stream := NewRecordStream(8)
		collected := collectRecords(stream)

		summary, err := pipeline.Run("capture.pcapng", stream)
		recs := <-collected

		Convey("the run succeeds with the good chunk's records", func() {
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 2)
			So(summary.Records, ShouldEqual, 2)
			So(summary.FailedChunks, ShouldEqual, 1)
			So(summary.Clean(), ShouldBeFalse)
			So(pipeline.State(), ShouldEqual, StateCompleted)
		})
	})

	Convey("With a chunk that fails after producing records", t, func() {
		decoder := &fakeDecoder{
			lines: map[string][][]byte{
				"a": {frameLine("1"), frameLine("2")},
				"b": {frameLine("1")},
			},
			errs: map[string]error{"b": &ChunkDecodeError{Chunk: "b", Stderr: "truncated"}},
		}
		pipeline := &Pipeline{
			Decoder: decoder,
			Partitioner: &fakeChunker{chunks: []Chunk{
				{Path: "a", Index: 0, FrameOffset: 0},
				{Path: "b", Index: 1, FrameOffset: 2},
			}},
			ChunkSize:   2,
			Parallelism: 1,
		}
		stream := NewRecordStream(8)
		collected := collectRecords(stream)

		summary, err := pipeline.Run("capture.pcapng", stream)
		recs := <-collected

		Convey("the partial records are kept and the chunk is degraded, not failed", func() {
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 3)
			So(summary.Records, ShouldEqual, 3)
			So(summary.FailedChunks, ShouldEqual, 0)
			So(summary.Clean(), ShouldBeFalse)
		})
	})

	Convey("With a capture where every chunk fails", t, func() {
		decoder := &fakeDecoder{errs: map[string]error{
			"a": &ChunkDecodeError{Chunk: "a"},
			"b": &ChunkDecodeError{Chunk: "b"},
		}}
		pipeline := &Pipeline{
			Decoder: decoder,
			Partitioner: &fakeChunker{chunks: []Chunk{
				{Path: "a", Index: 0, FrameOffset: 0},
				{Path: "b", Index: 1, FrameOffset: 2},
			}},
			ChunkSize:   2,
			Parallelism: 2,
		}
		stream := NewRecordStream(8)
		collected := collectRecords(stream)

		summary, err := pipeline.Run("capture.pcapng", stream)
		<-collected

		Convey("the run itself fails", func() {
			So(err, ShouldNotBeNil)
			So(summary.FailedChunks, ShouldEqual, 2)
			So(pipeline.State(), ShouldEqual, StateFailed)
		})
	})

	Convey("With decoder noise mixed into the output", t, func() {
		decoder := &fakeDecoder{lines: map[string][][]byte{
			"a": {frameLine("1"), []byte("Running as user \"root\""), frameLine("2")},
		}}
		pipeline := &Pipeline{
			Decoder:     decoder,
			Partitioner: &fakeChunker{chunks: []Chunk{{Path: "a"}}},
			ChunkSize:   2,
			Parallelism: 1,
		}
		stream := NewRecordStream(8)
		collected := collectRecords(stream)

		summary, err := pipeline.Run("capture.pcapng", stream)
		<-collected

		Convey("the noise is counted as dropped, not fatal", func() {
			So(err, ShouldBeNil)
			So(summary.Records, ShouldEqual, 2)
			So(summary.DroppedLines, ShouldEqual, 1)
			So(summary.Clean(), ShouldBeFalse)
		})
	})
}

func TestPipelineLifecycle(t *testing.T) {
	Convey("With a decode that blocks until released", t, func() {
		hold := make(chan struct{})
		decoder := &fakeDecoder{
			lines: map[string][][]byte{"a": {frameLine("1")}},
			hold:  hold,
		}
		pipeline := &Pipeline{
			Decoder:     decoder,
			Partitioner: &fakeChunker{chunks: []Chunk{{Path: "a"}}},
			ChunkSize:   2,
			Parallelism: 1,
		}

		Convey("a second Run is rejected while the first is in flight", func() {
			stream := NewRecordStream(8)
			collected := collectRecords(stream)
			firstDone := make(chan error, 1)
			go func() {
				_, err := pipeline.Run("capture.pcapng", stream)
				firstDone <- err
			}()

			for pipeline.State() != StateDecoding {
				time.Sleep(time.Millisecond)
			}
			_, err := pipeline.Run("capture.pcapng", NewRecordStream(8))
			So(err, ShouldEqual, ErrAlreadyRunning)

			close(hold)
			So(<-firstDone, ShouldBeNil)
			So(len(<-collected), ShouldEqual, 1)

			Convey("and the pipeline is reusable once it completes", func() {
				decoder.hold = nil
				rerun := NewRecordStream(8)
				reCollected := collectRecords(rerun)
				summary, err := pipeline.Run("capture.pcapng", rerun)
				So(err, ShouldBeNil)
				So(summary.Records, ShouldEqual, 1)
				So(len(<-reCollected), ShouldEqual, 1)
			})
		})

		Convey("Cancel stops the run and marks it cancelled", func() {
			stream := NewRecordStream(8)
			collected := collectRecords(stream)
			done := make(chan error, 1)
			var summary *RunSummary
			go func() {
				var err error
				summary, err = pipeline.Run("capture.pcapng", stream)
				done <- err
			}()

			for pipeline.State() != StateDecoding {
				time.Sleep(time.Millisecond)
			}
			pipeline.Cancel()

			So(<-done, ShouldEqual, ErrCancelled)
			So(summary.Cancelled, ShouldBeTrue)
			So(pipeline.State(), ShouldEqual, StateCancelled)
			<-collected

			Convey("calling Cancel again is harmless", func() {
				pipeline.Cancel()
			})
		})
	})
}
