// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package capsift turns packet captures into streams of structured packet
// records by partitioning the capture and decoding the partitions with
// parallel instances of an external decode tool.
package capsift

import (
	"fmt"
	"time"
)

// TransportProtocol is the transport-layer protocol of a decoded packet.
type TransportProtocol uint8

const (
	TransportUnknown TransportProtocol = iota
	TransportTCP
	TransportUDP
	TransportICMP
	TransportARP
)

func (t TransportProtocol) String() string {
	switch t {
	case TransportTCP:
		return "TCP"
	case TransportUDP:
		return "UDP"
	case TransportICMP:
		return "ICMP"
	case TransportARP:
		return "ARP"
	}
	return "Unknown"
}

// TCPFields holds the TCP header fields carried by a record when the decode
// tool emitted them.
type TCPFields struct {
	Flags  uint16
	Seq    uint32
	Ack    uint32
	Window uint16
}

// CredentialFields holds raw protocol fields that may carry secrets. They are
// kept verbatim; interpreting them is the business of downstream analysis.
type CredentialFields struct {
	HTTPAuthorization string
	FTPCommand        string
	FTPArg            string
	SMTPCommand       string
	SMTPParameter     string
	IMAPRequest       string
}

// FingerprintFields holds raw fields useful for OS/TLS/DHCP fingerprinting.
type FingerprintFields struct {
	TLSServerName string
	JA3           string
	HTTPUserAgent string
	DHCPHostname  string
}

// PacketRecord is one decoded network event. FrameID is globally unique and
// monotonically assigned per capture; after frame identity reconciliation it
// is unique across all chunks of a partitioned decode.
type PacketRecord struct {
	FrameID   uint64
	Timestamp time.Time
	Length    uint16

	SrcAddr string
	DstAddr string
	SrcPort uint16 // 0 = absent
	DstPort uint16 // 0 = absent

	Transport   TransportProtocol
	AppProtocol string

	// Info is the decode tool's free-text summary column. It is unique per
	// record and therefore never interned.
	Info string

	TCP         *TCPFields
	Credentials *CredentialFields
	Fingerprint *FingerprintFields
}

// Endpoints returns a printable "src -> dst" description of the record.
func (r *PacketRecord) Endpoints() string {
	src, dst := r.SrcAddr, r.DstAddr
	if r.SrcPort != 0 {
		src = fmt.Sprintf("%s:%d", src, r.SrcPort)
	}
	if r.DstPort != 0 {
		dst = fmt.Sprintf("%s:%d", dst, r.DstPort)
	}
	return src + " -> " + dst
}
