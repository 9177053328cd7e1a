package iamport

import (
	"encoding/json"
	"strconv"
	"time"
)

// UnixTime supports the unix second timestamps returned by the iamport API.
// A zero timestamp means "not set".
type UnixTime struct {
	time.Time
}

// UnmarshalJSON implements the [json.Unmarshaler] interface.
func (m *UnixTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` || s == "0" {
		return nil
	}

	if len(s) > 1 && s[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}

	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	if sec != 0 {
		m.Time = time.Unix(sec, 0)
	}

	return nil
}

// MarshalJSON implements the [json.Marshaler] interface.
func (m UnixTime) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("0"), nil
	}

	return []byte(strconv.FormatInt(m.Unix(), 10)), nil
}
