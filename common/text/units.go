// Copyright (C) Capsift, Inc. 2019-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package text

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	decimal = 1000
	binary  = 1024
)

var (
	longByteUnits  = []string{"B", "KB", "MB", "GB"}
	shortByteUnits = []string{"B", "K", "M", "G"}
)

// FormatByteAmount takes an int64 representing a size in bytes and
// returns a formatted string of a minimum amount of significant figures.
//  e.g. 12.4 GB, 0.0 B, 124.5 KB
func FormatByteAmount(size int64) string {
	return formatUnitAmount(binary, size, 3, longByteUnits)
}

// FormatMegabyteAmount is equivalent to FormatByteAmount but expects
// an amount of MB instead of bytes.
func FormatMegabyteAmount(size int64) string {
	return formatUnitAmount(binary, size*1024*1024, 3, shortByteUnits)
}

// formatUnitAmount formats the size using the units and at least minDigits
// numbers, unless the number is already less than the base, where no decimal
// will be added
func formatUnitAmount(base, size int64, minDigits int, units []string) string {
	result := float64(size)
	divisor := float64(base)
	var shifts int
	// keep dividing by base and incrementing our unit until
	// we hit the right unit or run out of unit strings
	for ; result >= divisor && shifts < len(units)-1; shifts++ {
		result /= divisor
	}
	result = round(result, minDigits)

	var precision int                  // Number of digits to show after the decimal
	len := 1 + int(math.Log10(result)) // Number of pre-decimal digits in result
	if shifts != 0 && len < minDigits {
		// Add as many decimal digits as we can
		precision = minDigits - len
	}
	format := fmt.Sprintf("%%.%df%%s", precision)
	return fmt.Sprintf(format, result, units[shifts])
}

// round applies the gradeschool method to round to the nth place
func round(result float64, precision int) float64 {
	divisor := float64(math.Pow(10.0, float64(precision-1)))
	// round(x) == floor(x + 0.5)
	return math.Floor(result*divisor+0.5) / divisor
}

// abbrevMultipliers maps the count suffixes emitted by capture summary tools
// to their decimal multipliers.
var abbrevMultipliers = map[string]uint64{
	"k": 1000,
	"m": 1000 * 1000,
	"g": 1000 * 1000 * 1000,
}

// ParseAbbrevNumber parses a count that may carry a decimal k/M/G suffix,
// as printed by capinfos, e.g. "5835 k" -> 5835000, "12" -> 12.
// The suffix may be separated from the digits by whitespace and is matched
// case-insensitively.
func ParseAbbrevNumber(s string) (uint64, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("empty number")
	}

	multiplier := uint64(1)
	numPart := trimmed
	last := strings.ToLower(trimmed[len(trimmed)-1:])
	if m, ok := abbrevMultipliers[last]; ok {
		multiplier = m
		numPart = strings.TrimSpace(trimmed[:len(trimmed)-1])
	}

	if numPart == "" {
		return 0, fmt.Errorf("no digits in %q", s)
	}

	// suffixed values may be fractional approximations, e.g. "5.8 M"
	if strings.ContainsRune(numPart, '.') {
		f, err := strconv.ParseFloat(numPart, 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("invalid number %q", s)
		}
		return uint64(f*float64(multiplier) + 0.5), nil
	}

	n, err := strconv.ParseUint(numPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n * multiplier, nil
}
