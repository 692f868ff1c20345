// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

//go:build !race
// +build !race

// Disable race detector since these tests are inherently racy
package progress

import (
	"bytes"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBasicProgressBar(t *testing.T) {

	writeBuffer := &bytes.Buffer{}

	Convey("With a simple ProgressBar", t, func() {
		watching := NewCounter(10)
		pbar := &Bar{
			Name:      "\nTEST",
			Watching:  watching,
			WaitTime:  3 * time.Millisecond,
			Writer:    writeBuffer,
			BarLength: 10,
		}

		Convey("running it while incrementing its counter", func() {
			pbar.Start()
			time.Sleep(10 * time.Millisecond)
			// iterate though each value 1-10, sleeping to make sure it is written
			for localCounter := 0; localCounter < 10; localCounter++ {
				watching.Inc(1)
				time.Sleep(5 * time.Millisecond)
			}
			pbar.Stop()

			Convey("the messages written in the buffer should cover all states", func() {
				results := writeBuffer.String()
				So(results, ShouldContainSubstring, "TEST")
				So(results, ShouldContainSubstring, BarLeft)
				So(results, ShouldContainSubstring, BarRight)
				So(results, ShouldContainSubstring, BarFilling)
				So(results, ShouldContainSubstring, BarEmpty)
				So(results, ShouldContainSubstring, "5/10")
				So(results, ShouldContainSubstring, "10/10")
			})
		})
	})
}

func TestProgressBarWithNoMax(t *testing.T) {
	writeBuffer := &bytes.Buffer{}

	Convey("With a simple ProgressBar with no max value", t, func() {
		watching := NewCounter(0)
		watching.Inc(5)
		pbar := &Bar{
			Name:     "test",
			Watching: watching,
			Writer:   writeBuffer,
		}
		Convey("rendering the progress should still work, but not draw a bar", func() {
			pbar.renderToWriter()
			So(writeBuffer.String(), ShouldContainSubstring, "5")
			So(writeBuffer.String(), ShouldContainSubstring, "test")
			So(writeBuffer.String(), ShouldNotContainSubstring, "[")
			So(writeBuffer.String(), ShouldNotContainSubstring, "]")
		})
	})
}

func TestBarConcurrency(t *testing.T) {
	writeBuffer := &bytes.Buffer{}

	Convey("With a simple ProgressBar", t, func() {
		watching := NewCounter(1000)
		watching.Inc(777)
		pbar := &Bar{
			Name:     "\nTEST",
			Watching: watching,
			WaitTime: 10 * time.Millisecond,
			Writer:   writeBuffer,
		}

		Convey("if it rendered only once", func() {
			pbar.Start()
			time.Sleep(15 * time.Millisecond)
			watching.Inc(1)
			results := writeBuffer.String()
			So(results, ShouldContainSubstring, "777")
			So(results, ShouldNotContainSubstring, "778")

			Convey("it will render a second time on stop", func() {
				pbar.Stop()
				results := writeBuffer.String()
				So(results, ShouldContainSubstring, "777")
				So(results, ShouldContainSubstring, "778")

				Convey("and trying to start or stop the bar again should panic", func() {
					So(func() { pbar.Start() }, ShouldPanic)
					So(func() { pbar.Stop() }, ShouldPanic)
				})
			})
		})
	})
}
