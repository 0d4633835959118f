package types

import (
	"encoding/json"
	"time"
)

// sentinelZero is the literal the upstream API sends in place of an absent
// actual departure/arrival timestamp. It must be treated exactly as JSON
// null rather than propagated as a real instant in year 1.
const sentinelZero = "0001-01-01T00:00:00+01:00"

// OptionalTime represents a timestamp that may be legitimately absent: the
// upstream offer API omits actual-time fields for itineraries that have not
// departed yet, and separately sends a year-1 sentinel for the same
// condition depending on response shape. Both forms decode to a zero-value,
// !Present OptionalTime.
type OptionalTime struct {
	Time    time.Time
	Present bool
}

// NewOptionalTime wraps a concrete instant as present.
func NewOptionalTime(t time.Time) OptionalTime {
	return OptionalTime{Time: t, Present: true}
}

func (o OptionalTime) MarshalJSON() ([]byte, error) {
	if !o.Present {
		return []byte("null"), nil
	}
	return json.Marshal(o.Time)
}

func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` || s == `"`+sentinelZero+`"` {
		*o = OptionalTime{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Fall back to decoding as a bare RFC3339 value (no surrounding quotes
		// survived, e.g. when re-marshalled through an intermediate map).
		var t time.Time
		if err2 := json.Unmarshal(data, &t); err2 != nil {
			return err
		}
		*o = NewOptionalTime(t)
		return nil
	}

	if raw == "" || raw == sentinelZero {
		*o = OptionalTime{}
		return nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return err
	}
	*o = NewOptionalTime(t)
	return nil
}
