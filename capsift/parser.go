// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package capsift

import (
	"bytes"
	"math"
	"strings"
	"time"

	"github.com/capsift/capsift/common/log"
)

// droppedLineSamples is how many rejected lines a parser will describe in the
// log before going quiet and only counting.
const droppedLineSamples = 5

// transportTokens maps protocol-stack tokens to the transports they imply.
var transportTokens = map[string]TransportProtocol{
	"tcp":    TransportTCP,
	"udp":    TransportUDP,
	"icmp":   TransportICMP,
	"icmpv6": TransportICMP,
	"arp":    TransportARP,
	"rarp":   TransportARP,
}

// stackSkipTokens are the protocol-stack tokens that never name an
// application protocol: link and network layers plus the transports.
var stackSkipTokens = map[string]bool{
	"frame": true, "eth": true, "ethertype": true, "sll": true,
	"vlan": true, "llc": true, "null": true, "loop": true, "raw": true,
	"ppp": true, "pppoes": true, "gre": true, "mpls": true,
	"ip": true, "ipv6": true, "tcp": true, "udp": true,
	"icmp": true, "icmpv6": true, "arp": true, "rarp": true,
	"data": true,
}

// LineParser turns tab-separated decoder output lines into PacketRecords. It
// indexes field boundaries in place and only allocates for the values a
// record actually carries, sharing repeated values through a StringCache.
// A LineParser is not safe for concurrent use; each decode worker owns one
// but workers may share a cache.
type LineParser struct {
	cache   *StringCache
	seps    [maxLineFields]int
	dropped uint64
	sampled int
}

// NewLineParser returns a parser interning repeated values in cache. A nil
// cache disables sharing; every value gets its own copy.
func NewLineParser(cache *StringCache) *LineParser {
	return &LineParser{cache: cache}
}

// Dropped reports how many lines this parser has rejected so far.
func (p *LineParser) Dropped() uint64 {
	return p.dropped
}

// Parse converts one decoder output line into a record. It returns nil when
// the line is not a packet record (decoder banners, truncated lines); those
// are counted and a few are logged, never treated as errors.
func (p *LineParser) Parse(line []byte) *PacketRecord {
	n := p.split(line)
	if n < minLineFields {
		p.drop(line, "too few fields")
		return nil
	}

	frameID, ok := parseUint(p.field(line, n, fieldFrameNumber))
	if !ok {
		p.drop(line, "bad frame number")
		return nil
	}

	rec := &PacketRecord{FrameID: frameID}

	// epoch and length may be absent, but present garbage rejects the line
	if epochB := p.field(line, n, fieldFrameEpoch); len(epochB) > 0 {
		ts, ok := parseEpoch(epochB)
		if !ok {
			p.drop(line, "bad epoch timestamp")
			return nil
		}
		rec.Timestamp = ts
	}
	if lengthB := p.field(line, n, fieldFrameLen); len(lengthB) > 0 {
		length, ok := parseUint(lengthB)
		if !ok {
			p.drop(line, "bad frame length")
			return nil
		}
		if length > math.MaxUint16 {
			length = math.MaxUint16
		}
		rec.Length = uint16(length)
	}

	// IPv4 wins over IPv6 when a packet somehow reports both
	rec.SrcAddr = p.intern(firstOf(
		p.field(line, n, fieldIPSrc), p.field(line, n, fieldIPv6Src)))
	rec.DstAddr = p.intern(firstOf(
		p.field(line, n, fieldIPDst), p.field(line, n, fieldIPv6Dst)))

	// likewise the TCP port columns win over the UDP ones
	if port, ok := parseUint(firstOf(
		p.field(line, n, fieldTCPSrcPort), p.field(line, n, fieldUDPSrcPort))); ok && port <= math.MaxUint16 {
		rec.SrcPort = uint16(port)
	}
	if port, ok := parseUint(firstOf(
		p.field(line, n, fieldTCPDstPort), p.field(line, n, fieldUDPDstPort))); ok && port <= math.MaxUint16 {
		rec.DstPort = uint16(port)
	}

	stack := p.field(line, n, fieldProtocolStack)
	rec.Transport = transportFromStack(stack)

	protoCol := p.field(line, n, fieldProtocolCol)
	rec.AppProtocol = p.appProtocol(protoCol, stack)

	if n > fieldInfo {
		// the info column is unique per packet, so it is never interned
		rec.Info = string(p.field(line, n, fieldInfo))
		rec.AppProtocol = enrichAppProtocol(rec.AppProtocol, rec.Info)
	}

	if rec.Transport == TransportTCP {
		rec.TCP = p.parseTCP(line, n)
	}
	rec.Credentials = p.parseCredentials(line, n)
	rec.Fingerprint = p.parseFingerprint(line, n)

	return rec
}

// split indexes the tab positions of line into p.seps and returns the field
// count, capped at maxLineFields.
func (p *LineParser) split(line []byte) int {
	n := 0
	for i, c := range line {
		if c != '\t' {
			continue
		}
		if n == maxLineFields-1 {
			return maxLineFields
		}
		p.seps[n] = i
		n++
	}
	return n + 1
}

// field returns the bytes of field i given n total fields, without copying.
func (p *LineParser) field(line []byte, n, i int) []byte {
	if i >= n {
		return nil
	}
	start := 0
	if i > 0 {
		start = p.seps[i-1] + 1
	}
	end := len(line)
	if i < n-1 {
		end = p.seps[i]
	}
	return line[start:end]
}

func (p *LineParser) intern(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if p.cache == nil {
		return string(b)
	}
	return p.cache.Intern(b)
}

func (p *LineParser) drop(line []byte, reason string) {
	p.dropped++
	if p.sampled < droppedLineSamples {
		p.sampled++
		sample := line
		if len(sample) > 120 {
			sample = sample[:120]
		}
		log.Logvf(log.DebugLow, "dropping decoder line (%s): %q", reason, sample)
	}
}

func (p *LineParser) parseTCP(line []byte, n int) *TCPFields {
	flagsB := p.field(line, n, fieldTCPFlags)
	seqB := p.field(line, n, fieldTCPSeq)
	if len(flagsB) == 0 && len(seqB) == 0 {
		return nil
	}
	tcp := &TCPFields{}
	if flags, ok := parseHexUint(flagsB); ok && flags <= math.MaxUint16 {
		tcp.Flags = uint16(flags)
	}
	if seq, ok := parseUint(seqB); ok && seq <= math.MaxUint32 {
		tcp.Seq = uint32(seq)
	}
	if ack, ok := parseUint(p.field(line, n, fieldTCPAck)); ok && ack <= math.MaxUint32 {
		tcp.Ack = uint32(ack)
	}
	if win, ok := parseUint(p.field(line, n, fieldTCPWindow)); ok && win <= math.MaxUint16 {
		tcp.Window = uint16(win)
	}
	return tcp
}

func (p *LineParser) parseCredentials(line []byte, n int) *CredentialFields {
	auth := p.field(line, n, fieldHTTPAuthorization)
	ftpCmd := p.field(line, n, fieldFTPCommand)
	ftpArg := p.field(line, n, fieldFTPArg)
	smtpCmd := p.field(line, n, fieldSMTPCommand)
	smtpParam := p.field(line, n, fieldSMTPParameter)
	imapReq := p.field(line, n, fieldIMAPRequest)
	if len(auth) == 0 && len(ftpCmd) == 0 && len(smtpCmd) == 0 && len(imapReq) == 0 {
		return nil
	}
	return &CredentialFields{
		HTTPAuthorization: string(auth),
		FTPCommand:        p.intern(ftpCmd),
		FTPArg:            string(ftpArg),
		SMTPCommand:       p.intern(smtpCmd),
		SMTPParameter:     string(smtpParam),
		IMAPRequest:       string(imapReq),
	}
}

func (p *LineParser) parseFingerprint(line []byte, n int) *FingerprintFields {
	sni := p.field(line, n, fieldTLSServerName)
	ja3 := p.field(line, n, fieldTLSJA3)
	ua := p.field(line, n, fieldHTTPUserAgent)
	host := p.field(line, n, fieldDHCPHostname)
	if len(sni) == 0 && len(ja3) == 0 && len(ua) == 0 && len(host) == 0 {
		return nil
	}
	return &FingerprintFields{
		TLSServerName: p.intern(sni),
		JA3:           p.intern(ja3),
		HTTPUserAgent: p.intern(ua),
		DHCPHostname:  p.intern(host),
	}
}

// appProtocol picks the record's application protocol. The decoder's protocol
// column is normally right, but for plain transport traffic it just names the
// transport; in that case the deepest meaningful token of the protocol stack
// is used instead, and a stack with no application layer at all yields an
// empty protocol.
func (p *LineParser) appProtocol(protoCol, stack []byte) string {
	col := string(protoCol)
	if col != "" {
		if _, isTransport := transportTokens[strings.ToLower(col)]; !isTransport {
			return p.intern(protoCol)
		}
	}
	for i := len(stack); i > 0; {
		j := bytes.LastIndexByte(stack[:i], ':')
		token := stack[j+1 : i]
		i = j
		if j < 0 {
			i = 0
		}
		if len(token) == 0 || stackSkipTokens[string(token)] {
			continue
		}
		return p.intern(token)
	}
	return ""
}

// enrichAppProtocol refines protocol names the decoder reports too coarsely,
// using the info column. SNMP packets carry their version in the summary, and
// SMB 3.x dialects still decode under the smb2 dissector.
func enrichAppProtocol(app, info string) string {
	switch app {
	case "snmp", "SNMP":
		switch {
		case strings.Contains(info, "snmpV3") || strings.Contains(info, "SNMPv3"):
			return "SNMPv3"
		case strings.Contains(info, "snmpV2") || strings.Contains(info, "v2c"):
			return "SNMPv2c"
		case strings.Contains(info, "snmpV1") || strings.Contains(info, "SNMPv1"):
			return "SNMPv1"
		}
	case "smb2", "SMB2":
		if strings.Contains(info, "SMB3") || strings.Contains(info, "Dialect: 0x03") {
			return "SMB3"
		}
	}
	return app
}

// transportFromStack scans a colon-separated protocol stack and returns the
// highest-priority transport it mentions: TCP over UDP over ICMP over ARP.
func transportFromStack(stack []byte) TransportProtocol {
	best := TransportUnknown
	start := 0
	for i := 0; i <= len(stack); i++ {
		if i != len(stack) && stack[i] != ':' {
			continue
		}
		if t, ok := transportTokens[string(stack[start:i])]; ok {
			switch {
			case t == TransportTCP:
				return TransportTCP
			case t == TransportUDP:
				best = TransportUDP
			case t == TransportICMP && best != TransportUDP:
				best = TransportICMP
			case t == TransportARP && best == TransportUnknown:
				best = TransportARP
			}
		}
		start = i + 1
	}
	return best
}

// firstOf returns a when it is non-empty, otherwise b.
func firstOf(a, b []byte) []byte {
	if len(a) > 0 {
		return a
	}
	return b
}

// parseUint parses an unsigned decimal without the string conversion
// strconv would force on a byte slice.
func parseUint(b []byte) (uint64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var v uint64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		if v > (math.MaxUint64-uint64(c-'0'))/10 {
			return 0, false
		}
		v = v*10 + uint64(c-'0')
	}
	return v, true
}

// parseHexUint parses a hexadecimal value with an optional 0x prefix, which
// is how the decoder prints TCP flags.
func parseHexUint(b []byte) (uint64, bool) {
	if len(b) > 2 && b[0] == '0' && (b[1] == 'x' || b[1] == 'X') {
		b = b[2:]
	}
	if len(b) == 0 {
		return 0, false
	}
	var v uint64
	for _, c := range b {
		var d uint64
		switch {
		case c >= '0' && c <= '9':
			d = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = uint64(c-'A') + 10
		default:
			return 0, false
		}
		if v > math.MaxUint64>>4 {
			return 0, false
		}
		v = v<<4 | d
	}
	return v, true
}

// parseEpoch parses the decoder's "seconds.fraction" epoch timestamp without
// going through a float, which would lose nanosecond precision on current
// captures.
func parseEpoch(b []byte) (time.Time, bool) {
	if len(b) == 0 {
		return time.Time{}, false
	}
	dot := bytes.IndexByte(b, '.')
	secB, fracB := b, []byte(nil)
	if dot >= 0 {
		secB, fracB = b[:dot], b[dot+1:]
	}
	sec, ok := parseUint(secB)
	if !ok || sec > math.MaxInt64 {
		return time.Time{}, false
	}
	var nanos uint64
	for i := 0; i < 9; i++ {
		nanos *= 10
		if i < len(fracB) {
			c := fracB[i]
			if c < '0' || c > '9' {
				return time.Time{}, false
			}
			nanos += uint64(c - '0')
		}
	}
	return time.Unix(int64(sec), int64(nanos)), true
}
