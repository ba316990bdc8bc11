package model

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// String renders a Hash as 0x-prefixed lowercase hex, the warehouse's storage
// form for all hash-typed columns.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// String renders an Address as 0x-prefixed lowercase hex.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func pkString(parts ...any) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('|')
		}
		switch v := p.(type) {
		case uint64:
			b.WriteString(strconv.FormatUint(v, 10))
		case int:
			b.WriteString(strconv.Itoa(v))
		case Hash:
			b.WriteString(v.String())
		case fmt.Stringer:
			b.WriteString(v.String())
		default:
			b.WriteString(fmt.Sprintf("%v", v))
		}
	}
	return b.String()
}

// traceAddressString renders a trace_address path as "i0.i1.i2", the form
// used both for the primary key and for BigQuery STRING storage of the path.
func traceAddressString(path []int) string {
	if len(path) == 0 {
		return "root"
	}
	parts := make([]string, len(path))
	for i, v := range path {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ".")
}

// TraceAddressString exports the same rendering for use by the warehouse
// layer when serializing TraceRow.TraceAddress.
func TraceAddressString(path []int) string {
	return traceAddressString(path)
}
