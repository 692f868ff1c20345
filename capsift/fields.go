// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package capsift

// Field positions in a decoded line. The decode tool is invoked with one -e
// argument per entry of decodeFields, in order, so these indexes are bound to
// that list and must change together.
const (
	fieldFrameNumber = iota
	fieldFrameTime
	fieldFrameEpoch
	fieldFrameLen
	fieldIPSrc
	fieldIPv6Src
	fieldIPDst
	fieldIPv6Dst
	fieldTCPSrcPort
	fieldUDPSrcPort
	fieldTCPDstPort
	fieldUDPDstPort
	fieldProtocolCol
	fieldProtocolStack

	fieldInfo

	fieldTCPFlags
	fieldTCPSeq
	fieldTCPAck
	fieldTCPWindow

	fieldHTTPAuthorization
	fieldFTPCommand
	fieldFTPArg
	fieldSMTPCommand
	fieldSMTPParameter
	fieldIMAPRequest

	fieldTLSServerName
	fieldTLSJA3
	fieldHTTPUserAgent
	fieldDHCPHostname

	fieldCount
)

// minLineFields is the least number of tab-separated values a line must carry
// to be a packet record; lines shorter than this are decoder noise and are
// dropped. Everything from the info column on is optional.
const minLineFields = fieldInfo

// maxLineFields caps how many separators the parser will index per line.
// Tab characters embedded in the info column can push the count past
// fieldCount; anything beyond this is ignored rather than indexed.
const maxLineFields = 60

// decodeFields is the -e field list handed to the decode tool, in the order
// the parser expects the columns back.
var decodeFields = []string{
	"frame.number",
	"frame.time",
	"frame.time_epoch",
	"frame.len",
	"ip.src",
	"ipv6.src",
	"ip.dst",
	"ipv6.dst",
	"tcp.srcport",
	"udp.srcport",
	"tcp.dstport",
	"udp.dstport",
	"_ws.col.Protocol",
	"frame.protocols",

	"_ws.col.Info",

	"tcp.flags",
	"tcp.seq",
	"tcp.ack",
	"tcp.window_size_value",

	"http.authorization",
	"ftp.request.command",
	"ftp.request.arg",
	"smtp.req.command",
	"smtp.req.parameter",
	"imap.request",

	"tls.handshake.extensions_server_name",
	"tls.handshake.ja3",
	"http.user_agent",
	"dhcp.option.hostname",
}
