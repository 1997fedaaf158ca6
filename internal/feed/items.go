package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// List decodes a JSON array of T, and also accepts a single T object in place
// of a one-element array. Upstreams drop the array wrapper when there is
// exactly one result, and send "" or null when there are none.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*l = items
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) != "" {
			return fmt.Errorf("unexpected string %q where items were expected", s)
		}
		*l = nil
	default:
		var item T
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return err
		}
		*l = List[T]{item}
	}
	return nil
}

// Items is the body.items node. It accepts {"item": [...]}, {"item": {...}},
// a bare array or object of items, "" and null.
type Items[T any] struct {
	Item List[T] `json:"item"`
}

func (it *Items[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return err
		}
		if len(wrapper) == 0 {
			it.Item = nil
			return nil
		}
		if raw, ok := wrapper["item"]; ok {
			return it.Item.UnmarshalJSON(raw)
		}
	}
	return it.Item.UnmarshalJSON(trimmed)
}

// Count is an integer that may arrive quoted.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", s, err)
	}
	*c = Count(n)
	return nil
}

// Text is a scalar field that may arrive as a JSON string, number or bool.
// Objects and arrays decode as empty text.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		*t = ""
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{', '[', 'n':
		*t = ""
	default:
		*t = Text(trimmed)
	}
	return nil
}

func (t Text) String() string {
	return string(t)
}
