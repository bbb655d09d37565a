package domain

import (
	"fmt"
	"strings"
)

const listSeparator = ", "

type listKind uint8

const (
	listKindAbsent listKind = iota
	listKindSingle
	listKindList
)

// ListValue is a string-or-list field such as recipients, bcc or hidden.
// The zero value is absent.
type ListValue struct {
	values []string
	kind   listKind
}

// Single returns a ListValue holding one string.
func Single(value string) ListValue {
	return ListValue{values: []string{value}, kind: listKindSingle}
}

// List returns a ListValue holding an ordered list. An empty list is present,
// not absent.
func List(values ...string) ListValue {
	copied := make([]string, len(values))
	copy(copied, values)
	return ListValue{values: copied, kind: listKindList}
}

// ParseListValue converts decoded input (YAML, JSON, flags) into a ListValue.
func ParseListValue(v any) (ListValue, error) {
	switch value := v.(type) {
	case nil:
		return ListValue{}, nil
	case ListValue:
		return value, nil
	case string:
		return Single(value), nil
	case []string:
		return List(value...), nil
	case []any:
		values := make([]string, 0, len(value))
		for _, item := range value {
			s, ok := item.(string)
			if !ok {
				return ListValue{}, shapeError(v)
			}
			values = append(values, s)
		}
		return List(values...), nil
	default:
		return ListValue{}, shapeError(v)
	}
}

// SerializeValue serializes an untyped string-or-list value. ok is false when
// v is nil.
func SerializeValue(v any) (string, bool, error) {
	lv, err := ParseListValue(v)
	if err != nil {
		return "", false, err
	}
	s, ok := lv.Serialize()
	return s, ok, nil
}

func shapeError(v any) error {
	return fmt.Errorf("%w: please provide a string or a list for recipients or bcc (got %T)", ErrUsage, v)
}

// IsAbsent reports whether no value was given.
func (l ListValue) IsAbsent() bool { return l.kind == listKindAbsent }

// IsList reports whether the value is a list, even an empty one. Lists fan
// out into one call per element.
func (l ListValue) IsList() bool { return l.kind == listKindList }

// Values returns a copy of the held strings.
func (l ListValue) Values() []string {
	if l.kind == listKindAbsent {
		return nil
	}
	copied := make([]string, len(l.values))
	copy(copied, l.values)
	return copied
}

// Serialize renders the value the way the provider expects it: a single
// string unchanged, a list joined with ", ".
func (l ListValue) Serialize() (string, bool) {
	switch l.kind {
	case listKindSingle:
		return l.values[0], true
	case listKindList:
		return strings.Join(l.values, listSeparator), true
	default:
		return "", false
	}
}

func (l ListValue) String() string {
	s, _ := l.Serialize()
	return s
}
