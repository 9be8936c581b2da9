package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Timestamp decodes the platform's datetimes. The Test Service renders them
// in HTTP date format ("Mon, 02 Jan 2006 15:04:05 GMT"); RFC 3339 is also accepted.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	http.TimeFormat,
	time.RFC1123,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("decode timestamp: unrecognized format %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
