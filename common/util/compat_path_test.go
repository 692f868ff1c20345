// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package util

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTranslateCompatPath(t *testing.T) {
	Convey("With some sample paths", t, func() {
		Convey("a drive-letter path is rewritten to the mount convention", func() {
			So(TranslateCompatPath(`C:\captures\big.pcapng`),
				ShouldEqual, "/mnt/c/captures/big.pcapng")
		})
		Convey("lowercase drive letters are preserved", func() {
			So(TranslateCompatPath(`d:\x.pcap`), ShouldEqual, "/mnt/d/x.pcap")
		})
		Convey("forward-slash drive paths also translate", func() {
			So(TranslateCompatPath(`C:/captures/x.pcap`),
				ShouldEqual, "/mnt/c/captures/x.pcap")
		})
		Convey("a unix path is returned unchanged", func() {
			So(TranslateCompatPath("/tmp/x.pcap"), ShouldEqual, "/tmp/x.pcap")
		})
		Convey("a bare relative path is returned unchanged", func() {
			So(TranslateCompatPath("x.pcap"), ShouldEqual, "x.pcap")
		})
		Convey("a non-letter 'drive' is returned unchanged", func() {
			So(TranslateCompatPath(`1:\x.pcap`), ShouldEqual, `1:\x.pcap`)
		})
	})
}
