// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package options

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type testExtraOptions struct {
	ChunkSize int `long:"chunkSize" default:"9"`
}

func (testExtraOptions) Name() string {
	return "test"
}

func TestVerbosityFlag(t *testing.T) {
	Convey("With a new ToolOptions", t, func() {
		enabledOptions := New("test", "")
		So(enabledOptions, ShouldNotBeNil)

		Convey("no verbosity flags, Level should be 0", func() {
			_, err := enabledOptions.ParseArgs([]string{})
			So(err, ShouldBeNil)
			So(enabledOptions.Level(), ShouldEqual, 0)
		})

		Convey("one short verbosity flag, Level should be 1", func() {
			_, err := enabledOptions.ParseArgs([]string{"-v"})
			So(err, ShouldBeNil)
			So(enabledOptions.Level(), ShouldEqual, 1)
		})

		Convey("three stacked verbosity flags, Level should be 3", func() {
			_, err := enabledOptions.ParseArgs([]string{"-vvv"})
			So(err, ShouldBeNil)
			So(enabledOptions.Level(), ShouldEqual, 3)
		})

		Convey("verbose with a numeric value, Level should match", func() {
			_, err := enabledOptions.ParseArgs([]string{"--verbose=4"})
			So(err, ShouldBeNil)
			So(enabledOptions.Level(), ShouldEqual, 4)
		})

		Convey("quiet flag should report IsQuiet", func() {
			_, err := enabledOptions.ParseArgs([]string{"--quiet"})
			So(err, ShouldBeNil)
			So(enabledOptions.IsQuiet(), ShouldBeTrue)
		})
	})
}

func TestExtraOptionRegistration(t *testing.T) {
	Convey("With a ToolOptions with an extra option group", t, func() {
		opts := New("test", "")
		extra := &testExtraOptions{}
		opts.AddOptions(extra)

		Convey("the extra flag should parse with its default", func() {
			_, err := opts.ParseArgs([]string{})
			So(err, ShouldBeNil)
			So(extra.ChunkSize, ShouldEqual, 9)
		})

		Convey("the extra flag should parse an explicit value", func() {
			_, err := opts.ParseArgs([]string{"--chunkSize", "1000"})
			So(err, ShouldBeNil)
			So(extra.ChunkSize, ShouldEqual, 1000)
		})

		Convey("unknown options should produce an error", func() {
			_, err := opts.ParseArgs([]string{"--nopenopenope"})
			So(err, ShouldNotBeNil)
		})

		Convey("positional arguments should be returned", func() {
			args, err := opts.ParseArgs([]string{"capture.pcapng"})
			So(err, ShouldBeNil)
			So(args, ShouldResemble, []string{"capture.pcapng"})
		})
	})
}
