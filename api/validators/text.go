package validators

import (
	"bytes"
	"encoding/json"
	"errors"
)

var errNotScalar = errors.New("expected string or number")

// Text accepts a JSON string or number and keeps its literal text, so
// "1,000" and 1000 both reach the quantity parser unchanged.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errNotScalar
	}
	*t = Text(n)
	return nil
}

func (t Text) String() string { return string(t) }
