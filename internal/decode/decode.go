// Package decode turns a raw device payload into numeric readings.
//
// Three paths are tried in a fixed order and the first non-empty result
// wins: little-endian uint16 samples, a JSON document, then free text with
// embedded numbers. Each path is exported so it can be exercised alone.
package decode

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxBinaryPayload is the largest payload treated as uint16 samples (800 samples).
const MaxBinaryPayload = 1600

// Mode identifies which decode path produced a Result.
type Mode int

const (
	None Mode = iota
	Binary16
	JSON
	TextNumeric
)

func (m Mode) String() string {
	switch m {
	case Binary16:
		return "binary16"
	case JSON:
		return "json"
	case TextNumeric:
		return "text_numeric"
	default:
		return "none"
	}
}

// MarshalText lets Mode appear by name in JSON documents.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name written by MarshalText.
func (m *Mode) UnmarshalText(text []byte) error {
	for _, candidate := range []Mode{None, Binary16, JSON, TextNumeric} {
		if candidate.String() == string(text) {
			*m = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown decode mode %q", text)
}

// Result holds the readings of one payload, in encoding order.
type Result struct {
	Mode     Mode
	Readings []float64
}

// Empty reports whether no readings were decoded.
func (r Result) Empty() bool {
	return len(r.Readings) == 0
}

// Decode runs the paths in priority order.
func Decode(payload []byte) Result {
	if len(payload) == 0 {
		return Result{Mode: None}
	}

	if readings := DecodeBinary16(payload); len(readings) > 0 {
		return Result{Mode: Binary16, Readings: readings}
	}

	text := payloadText(payload)
	if readings := DecodeJSON(text); len(readings) > 0 {
		return Result{Mode: JSON, Readings: readings}
	}
	if readings := DecodeNumericText(text); len(readings) > 0 {
		return Result{Mode: TextNumeric, Readings: readings}
	}

	return Result{Mode: None}
}

// DecodeBinary16 interprets payload as little-endian unsigned 16-bit
// counts. It returns nil unless the length is even, non-zero and at most
// MaxBinaryPayload.
func DecodeBinary16(payload []byte) []float64 {
	if len(payload) == 0 || len(payload)%2 != 0 || len(payload) > MaxBinaryPayload {
		return nil
	}

	readings := make([]float64, 0, len(payload)/2)
	for i := 0; i < len(payload); i += 2 {
		readings = append(readings, float64(binary.LittleEndian.Uint16(payload[i:])))
	}
	return readings
}

var (
	listKeys   = []string{"samples", "flow_rates", "flows", "data"}
	scalarKeys = []string{"flow_rate", "flow", "value"}
)

// DecodeJSON accepts an array of numbers, an object whose first present
// list key holds an array of numbers, or an object whose first present
// scalar key holds one number. Any other document yields nil.
func DecodeJSON(text string) []float64 {
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil
	}

	switch v := doc.(type) {
	case []any:
		readings, _ := numbers(v)
		return readings
	case map[string]any:
		for _, k := range listKeys {
			list, ok := v[k].([]any)
			if !ok {
				continue
			}
			readings, ok := numbers(list)
			if !ok {
				return nil
			}
			if len(readings) > 0 {
				return readings
			}
			break
		}
		for _, k := range scalarKeys {
			raw, present := v[k]
			if !present {
				continue
			}
			if f, ok := number(raw); ok {
				return []float64{f}
			}
			return nil
		}
	}
	return nil
}

// numberPattern matches signed integers and decimals with an optional exponent.
var numberPattern = regexp.MustCompile(`[-+]?(?:\d*\.\d+|\d+)(?:[eE][-+]?\d+)?`)

// DecodeNumericText extracts every numeric substring of text, left to
// right. Matches that do not parse to a finite float are skipped.
func DecodeNumericText(text string) []float64 {
	matches := numberPattern.FindAllString(text, -1)
	readings := make([]float64, 0, len(matches))
	for _, m := range matches {
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		readings = append(readings, f)
	}
	return readings
}

// payloadText decodes payload as UTF-8, replacing invalid sequences.
func payloadText(payload []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(payload), "\uFFFD"))
}

func numbers(list []any) ([]float64, bool) {
	out := make([]float64, 0, len(list))
	for _, item := range list {
		f, ok := number(item)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// number accepts JSON numbers and numeric strings ("12.5").
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
