package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexID is an identifier the API emits either as a JSON string or a number.
// Both forms decode to the same textual value; null decodes to "".
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*id = FlexID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = FlexID(n.String())
	return nil
}

// String returns the identifier text.
func (id FlexID) String() string { return string(id) }

// Cursor is the opaque search_after token returned by paged queries.
type Cursor json.RawMessage

// Empty reports whether the cursor signals that no further pages exist.
func (c Cursor) Empty() bool {
	trimmed := bytes.TrimSpace(c)
	switch string(trimmed) {
	case "", "null", "[]", `""`, "{}", "0", "false":
		return true
	}
	return false
}

// MarshalJSON emits the cursor verbatim so it can be echoed back to the API.
func (c Cursor) MarshalJSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte("null"), nil
	}
	return c, nil
}

// UnmarshalJSON keeps a copy of the raw token.
func (c *Cursor) UnmarshalJSON(data []byte) error {
	*c = append((*c)[:0], data...)
	return nil
}

// Page is one batch of records from a cursor-paginated query.
type Page[T any] struct {
	Records []T
	Next    Cursor
}
