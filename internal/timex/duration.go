// Package timex provides a JSON-friendly wrapper around time.Duration so
// config files can say "90s" or "1h" instead of raw nanosecond counts.
package timex

import (
	"encoding/json"
	"errors"
	"time"
)

// Duration wraps time.Duration and accepts either a duration string ("1m30s")
// or a number of nanoseconds when unmarshalling JSON.
type Duration struct {
	time.Duration
}

var errInvalidDuration = errors.New("invalid duration")

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return errInvalidDuration
	}
}
