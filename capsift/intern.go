// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package capsift

import (
	"sync"
)

// DefaultInternCapacity bounds the number of distinct dynamic values one
// StringCache will hold. A capture with millions of records usually touches
// far fewer distinct endpoints than this.
const DefaultInternCapacity = 4096

// staticStrings holds values so common across captures that they are interned
// unconditionally and never count against a cache's capacity: special
// addresses plus the known application protocol names.
var staticStrings = make(map[string]string)

func init() {
	for _, s := range []string{
		// addresses
		"0.0.0.0", "255.255.255.255", "127.0.0.1",
		"::", "::1", "ff02::1", "ff02::2", "ff02::fb", "ff02::16",
		"224.0.0.1", "224.0.0.251", "224.0.0.252", "239.255.255.250",
		// application protocol names as reported by the decode tool
		"http", "http2", "dns", "mdns", "llmnr", "nbns", "tls", "ssl",
		"quic", "ssdp", "ntp", "dhcp", "dhcpv6", "smb", "smb2", "ftp",
		"ftp-data", "ssh", "telnet", "smtp", "imap", "pop", "snmp",
		"ldap", "kerberos", "rdp", "sip", "rtp", "tftp", "syslog",
		"HTTP", "DNS", "MDNS", "LLMNR", "NBNS", "TLSv1", "TLSv1.1",
		"TLSv1.2", "TLSv1.3", "QUIC", "SSDP", "NTP", "DHCP", "SMB",
		"SMB2", "FTP", "SSH", "TELNET", "SMTP", "IMAP", "POP", "SNMP",
		"LDAP", "KRB5", "RDP", "SIP", "RTP", "TFTP", "Syslog",
	} {
		staticStrings[s] = s
	}
}

// StringCache interns strings up to a fixed capacity so that millions of
// records referencing a small number of distinct values share one instance
// each. Once full it stops interning and returns uncached copies; nothing is
// ever evicted. It is safe for concurrent use.
type StringCache struct {
	mu     sync.RWMutex
	values map[string]string
	cap    int
}

// NewStringCache returns a StringCache bounded to the given number of
// distinct dynamic values. A capacity <= 0 uses DefaultInternCapacity.
func NewStringCache(capacity int) *StringCache {
	if capacity <= 0 {
		capacity = DefaultInternCapacity
	}
	return &StringCache{
		values: make(map[string]string),
		cap:    capacity,
	}
}

// Intern returns a string equal to b, shared with every other caller that
// interned the same bytes while the cache had room.
func (c *StringCache) Intern(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if s, ok := staticStrings[string(b)]; ok {
		return s
	}

	c.mu.RLock()
	s, ok := c.values[string(b)]
	full := len(c.values) >= c.cap
	c.mu.RUnlock()
	if ok {
		return s
	}
	if full {
		return string(b)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.values[string(b)]; ok {
		return s
	}
	if len(c.values) >= c.cap {
		return string(b)
	}
	s = string(b)
	c.values[s] = s
	return s
}

// Len reports the number of dynamic values currently interned.
func (c *StringCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
