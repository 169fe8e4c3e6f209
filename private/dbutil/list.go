// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil

import (
	"strings"
)

// EscapableCommaSplit is like strings.Split(x, ","), but if
// it sees two ','s in a row, it will treat them like one
// unsplit comma. So "hello,there,,friend" will result in
// ["hello", "there,friend"].
func EscapableCommaSplit(val string) []string {
	bytes := []byte(val)
	var vals []string
	current := make([]byte, 0, len(bytes))
	for i := 0; i < len(bytes); i++ {
		char := bytes[i]
		if char == ',' {
			if i < len(bytes)-1 && bytes[i+1] == ',' {
				current = append(current, ',')
				i++
			} else {
				vals = append(vals, string(current))
				current = nil
			}
		} else {
			current = append(current, char)
		}
	}
	vals = append(vals, string(current))
	return vals
}

// EncodeList joins values into one column value read back by DecodeList.
// Values must not start with a comma.
func EncodeList(vals []string) string {
	escaped := make([]string, len(vals))
	for i, val := range vals {
		escaped[i] = strings.ReplaceAll(val, ",", ",,")
	}
	return strings.Join(escaped, ",")
}

// DecodeList splits a column value written by EncodeList. The empty string
// is the empty list.
func DecodeList(val string) []string {
	if val == "" {
		return nil
	}
	return EscapableCommaSplit(val)
}
