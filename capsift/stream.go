// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package capsift

import (
	"sync"
)

// RecordStream carries decoded records from the decode workers to a single
// consumer. With a buffer size it is a plain bounded channel, so a slow
// consumer applies backpressure to the workers; with size zero it buffers
// without bound and workers never block on it.
type RecordStream struct {
	in  chan *PacketRecord
	out chan *PacketRecord

	writers   sync.WaitGroup
	closeOnce sync.Once
}

// NewRecordStream returns a stream with the given buffer size, or an
// unbounded stream when size is zero.
func NewRecordStream(size int) *RecordStream {
	s := &RecordStream{}
	if size > 0 {
		s.in = make(chan *PacketRecord, size)
		s.out = s.in
		return s
	}
	s.in = make(chan *PacketRecord, 64)
	s.out = make(chan *PacketRecord, 64)
	go s.pump()
	return s
}

// pump shuttles records from in to out through a queue that grows as needed,
// so senders only ever block on the small in buffer.
func (s *RecordStream) pump() {
	var queue []*PacketRecord
	in := s.in
	for in != nil || len(queue) > 0 {
		var out chan *PacketRecord
		var next *PacketRecord
		if len(queue) > 0 {
			out = s.out
			next = queue[0]
		}
		select {
		case rec, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			queue = append(queue, rec)
		case out <- next:
			queue[0] = nil
			queue = queue[1:]
		}
	}
	close(s.out)
}

// Records returns the consumer side of the stream. It is closed once every
// writer has closed and all buffered records have been drained.
func (s *RecordStream) Records() <-chan *PacketRecord {
	return s.out
}

// Writer registers a new producer. Each writer must be closed; the stream
// will not complete until all of them are.
func (s *RecordStream) Writer() *RecordWriter {
	s.writers.Add(1)
	return &RecordWriter{stream: s}
}

// CloseWhenWritersDone closes the stream once every registered writer has
// closed. It must be called after all Writer calls have been made.
func (s *RecordStream) CloseWhenWritersDone() {
	s.closeOnce.Do(func() {
		go func() {
			s.writers.Wait()
			close(s.in)
		}()
	})
}

// RecordWriter is one producer's handle on a RecordStream.
type RecordWriter struct {
	stream *RecordStream
	once   sync.Once
}

// Write delivers one record, blocking while the stream is full. It returns
// false if cancel fires first, in which case the record was not delivered.
func (w *RecordWriter) Write(rec *PacketRecord, cancel <-chan struct{}) bool {
	select {
	case w.stream.in <- rec:
		return true
	case <-cancel:
		return false
	}
}

// Close marks this producer finished. It is safe to call more than once.
func (w *RecordWriter) Close() {
	w.once.Do(w.stream.writers.Done)
}
