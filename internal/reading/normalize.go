package reading

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Normalize converts a raw, schema-less record into a fully populated Reading.
// It never fails: missing or unparseable numbers become 0 and unrecognised
// statuses become UNKNOWN.
func Normalize(raw map[string]any) Reading {
	return Reading{
		SeatStatus:   parseSeat(raw[FieldSeatStatus]),
		LightStatus:  parseLight(raw[FieldLightStatus]),
		DistanceCm:   number(raw[FieldDistance]),
		PressureRaw:  int(whole(raw[FieldPressure])),
		LightAnalog:  int(whole(raw[FieldLightAnalog])),
		LightDigital: digital(raw[FieldLightDigital]),
		UpdatedAtMs:  whole(raw[FieldUpdatedAt]),
	}
}

// NormalizeEntry normalizes a log record and tags it with its store key.
func NormalizeEntry(key string, raw map[string]any) Reading {
	r := Normalize(raw)
	r.Key = key
	return r
}

// number coerces v to a finite, non-negative float.
func number(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if n {
			f = 1
		}
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// whole truncates the coerced value toward zero, saturating at the int64 range.
func whole(v any) int64 {
	f := math.Trunc(number(v))
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

func digital(v any) int {
	if number(v) > 0 {
		return 1
	}
	return 0
}

func statusToken(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}

func parseSeat(v any) SeatStatus {
	switch s := SeatStatus(statusToken(v)); s {
	case SeatAvailable, SeatReserved, SeatOccupied:
		return s
	default:
		return SeatUnknown
	}
}

func parseLight(v any) LightStatus {
	switch s := LightStatus(statusToken(v)); s {
	case LightBright, LightLow:
		return s
	default:
		return LightUnknown
	}
}
