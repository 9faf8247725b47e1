package handlers

import (
	"bytes"
	"encoding/json"
)

// nullableString tells an absent JSON field apart from an explicit null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(b, []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// cleared reports whether the field was sent as null or "".
func (n nullableString) cleared() bool {
	return n.Set && (n.Value == nil || *n.Value == "")
}
