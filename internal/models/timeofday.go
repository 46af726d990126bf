package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time stored as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay accepts HH:MM or HH:MM:SS. Seconds must be zero.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	layout := "15:04"
	if strings.Count(raw, ":") == 2 {
		layout = "15:04:05"
	}
	parsed, err := time.Parse(layout, raw)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", raw, err)
	}
	if parsed.Second() != 0 {
		return 0, fmt.Errorf("time of day %q has seconds, minutes are the finest unit", raw)
	}
	return TimeOfDay(parsed.Hour()*60 + parsed.Minute()), nil
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int { return int(t) }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// MarshalJSON renders the time as "HH:MM".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses "HH:MM" or "HH:MM:SS".
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan reads a PostgreSQL TIME column.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = 0
		return nil
	case []byte:
		parsed, err := ParseTimeOfDay(trimFraction(string(v)))
		if err != nil {
			return err
		}
		*t = parsed
	case string:
		parsed, err := ParseTimeOfDay(trimFraction(v))
		if err != nil {
			return err
		}
		*t = parsed
	case time.Time:
		*t = TimeOfDay(v.Hour()*60 + v.Minute())
	default:
		return fmt.Errorf("unsupported time of day source %T", src)
	}
	return nil
}

// Value writes the time as HH:MM:00.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}

func trimFraction(raw string) string {
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		return raw[:idx]
	}
	return raw
}
