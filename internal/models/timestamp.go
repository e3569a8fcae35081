package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp is a point in time as the remote API reports it. The API is
// backed by Firestore, so most payloads carry {"_seconds","_nanoseconds"}
// objects, but older endpoints send RFC3339 strings or epoch milliseconds.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t, normalized to UTC.
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{Time: t.UTC()}
}

type firestoreTimestamp struct {
	Seconds     int64 `json:"_seconds"`
	Nanoseconds int64 `json:"_nanoseconds"`
}

// MarshalJSON encodes the Firestore object form; zero encodes as null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(firestoreTimestamp{
		Seconds:     t.Unix(),
		Nanoseconds: int64(t.Nanosecond()),
	})
}

// UnmarshalJSON accepts null, Firestore objects, RFC3339 strings and
// epoch-millisecond numbers.
func (t *Timestamp) UnmarshalJSON(payload []byte) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	switch trimmed[0] {
	case '{':
		var fs struct {
			Seconds     *int64 `json:"_seconds"`
			Nanoseconds int64  `json:"_nanoseconds"`
			AltSeconds  *int64 `json:"seconds"`
			AltNanos    int64  `json:"nanoseconds"`
		}
		if err := json.Unmarshal(trimmed, &fs); err != nil {
			return fmt.Errorf("decode timestamp object: %w", err)
		}
		switch {
		case fs.Seconds != nil:
			*t = NewTimestamp(time.Unix(*fs.Seconds, fs.Nanoseconds))
		case fs.AltSeconds != nil:
			*t = NewTimestamp(time.Unix(*fs.AltSeconds, fs.AltNanos))
		default:
			*t = Timestamp{}
		}
		return nil
	case '"':
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("decode timestamp string: %w", err)
		}
		if raw == "" {
			*t = Timestamp{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", raw, err)
		}
		*t = NewTimestamp(parsed)
		return nil
	default:
		millis, err := strconv.ParseFloat(string(trimmed), 64)
		if err != nil {
			return fmt.Errorf("parse timestamp %s: %w", trimmed, err)
		}
		*t = NewTimestamp(time.UnixMilli(int64(millis)))
		return nil
	}
}
