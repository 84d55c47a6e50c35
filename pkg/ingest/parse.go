package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chargemon/chargemon/pkg/types"
)

// ParseChargerSample decodes a charger payload leniently: absent or
// non-numeric fields coerce to 0.0, an absent state to "Unknown", and an
// unparseable timestamp to the current time. Malformed input never fails;
// it only produces a diagnostic log line.
func ParseChargerSample(payload []byte, now time.Time) types.ChargerSample {
	var raw struct {
		Voltage   any `json:"voltage"`
		Current   any `json:"current"`
		State     any `json:"state"`
		Timestamp any `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		logrus.Debugf("malformed charger payload, coercing to defaults: %v", err)
	}

	return types.ChargerSample{
		Voltage:     coerceFloat(raw.Voltage),
		Current:     coerceFloat(raw.Current),
		State:       coerceState(raw.State),
		TimestampMs: coerceTimestampMs(raw.Timestamp, now),
	}
}

// ParseTemperatureSample decodes a temperature payload with the same
// coercion rules as ParseChargerSample.
func ParseTemperatureSample(payload []byte, now time.Time) types.TemperatureSample {
	var raw struct {
		Celsius    any `json:"celsius"`
		Fahrenheit any `json:"fahrenheit"`
		Timestamp  any `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		logrus.Debugf("malformed temperature payload, coercing to defaults: %v", err)
	}

	return types.TemperatureSample{
		Celsius:     coerceFloat(raw.Celsius),
		Fahrenheit:  coerceFloat(raw.Fahrenheit),
		TimestampMs: coerceTimestampMs(raw.Timestamp, now),
	}
}

func coerceFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return x
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	return 0
}

func coerceState(v any) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return "Unknown"
}

// coerceTimestampMs accepts the timestamp shapes seen in the wild: raw
// epoch millis, an integer string (seconds when shorter than 13 digits),
// and structured {seconds, nanoseconds} or {integerValue}/{doubleValue}
// objects. Anything else falls back to the receive time.
func coerceTimestampMs(v any, now time.Time) int64 {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
			break
		}
		return int64(x)
	case string:
		return digitsToMs(x, now)
	case map[string]any:
		if iv, ok := x["integerValue"]; ok {
			if s, ok := iv.(string); ok {
				return digitsToMs(s, now)
			}
			if f, ok := iv.(float64); ok {
				return digitsToMs(strconv.FormatInt(int64(f), 10), now)
			}
		}
		if dv, ok := x["doubleValue"].(float64); ok && !math.IsNaN(dv) && !math.IsInf(dv, 0) {
			return int64(dv)
		}
		if sec, ok := x["seconds"]; ok {
			ns := coerceFloat(x["nanoseconds"])
			return int64(coerceFloat(sec))*1000 + int64(ns/1e6)
		}
	}
	return now.UnixMilli()
}

func digitsToMs(s string, now time.Time) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return now.UnixMilli()
	}
	if len(s) >= 13 {
		return n
	}
	return n * 1000
}
