package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

var jsonNull = []byte("null")

// Number is a request field that may arrive as a JSON number or a numeric string.
// Decoding never fails; Valid tells whether a finite number was supplied.
type Number struct {
	Present bool
	Valid   bool
	Value   float64
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		return nil
	}
	n.Present = true
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
	} else {
		s = string(b)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	n.Valid, n.Value = true, v
	return nil
}

// NumberOf builds a present, valid Number.
func NumberOf(v float64) Number { return Number{Present: true, Valid: true, Value: v} }

// Text is a request field expected to be a JSON string. Non-string values are
// kept as present but with IsString false and an empty Value.
type Text struct {
	Present  bool
	IsString bool
	Value    string
}

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, jsonNull) {
		return nil
	}
	t.Present = true
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	t.IsString, t.Value = true, s
	return nil
}

// TextOf builds a present string Text.
func TextOf(s string) Text { return Text{Present: true, IsString: true, Value: s} }

// Trimmed returns the value with surrounding whitespace removed.
func (t Text) Trimmed() string { return strings.TrimSpace(t.Value) }
