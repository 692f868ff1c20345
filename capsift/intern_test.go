// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package capsift

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestStringCache(t *testing.T) {
	Convey("With a small StringCache", t, func() {
		cache := NewStringCache(2)

		Convey("interning the same bytes twice returns one value", func() {
			a := cache.Intern([]byte("192.168.1.50"))
			b := cache.Intern([]byte("192.168.1.50"))
			So(a, ShouldEqual, "192.168.1.50")
			So(b, ShouldEqual, a)
			So(cache.Len(), ShouldEqual, 1)
		})

		Convey("empty input interns to the empty string", func() {
			So(cache.Intern(nil), ShouldEqual, "")
			So(cache.Len(), ShouldEqual, 0)
		})

		Convey("well-known values never count against capacity", func() {
			So(cache.Intern([]byte("127.0.0.1")), ShouldEqual, "127.0.0.1")
			So(cache.Intern([]byte("DNS")), ShouldEqual, "DNS")
			So(cache.Len(), ShouldEqual, 0)
		})

		Convey("a full cache stops caching but keeps answering", func() {
			for i := 0; i < 10; i++ {
				s := cache.Intern([]byte(fmt.Sprintf("10.0.0.%d", i)))
				So(s, ShouldEqual, fmt.Sprintf("10.0.0.%d", i))
			}
			So(cache.Len(), ShouldEqual, 2)

			// values cached before it filled are still shared
			So(cache.Intern([]byte("10.0.0.0")), ShouldEqual, "10.0.0.0")
			So(cache.Len(), ShouldEqual, 2)
		})
	})

	Convey("A zero capacity falls back to the default", t, func() {
		cache := NewStringCache(0)
		So(cache.cap, ShouldEqual, DefaultInternCapacity)
	})
}
