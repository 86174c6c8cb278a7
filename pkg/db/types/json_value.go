package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONValue stores T as a JSON document. It maps to jsonb on Postgres and to
// text on SQLite.
type JSONValue[T any] struct {
	Data T
}

// NewJSONValue wraps v.
func NewJSONValue[T any](v T) JSONValue[T] {
	return JSONValue[T]{Data: v}
}

func (j *JSONValue[T]) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		var zero T
		j.Data = zero
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("JSONValue: unsupported Scan type %T", src)
	}
	if len(raw) == 0 {
		var zero T
		j.Data = zero
		return nil
	}
	return json.Unmarshal(raw, &j.Data)
}

func (j JSONValue[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.Data)
	if err != nil {
		return nil, fmt.Errorf("JSONValue: marshal: %w", err)
	}
	return string(b), nil
}

func (j JSONValue[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Data)
}

func (j *JSONValue[T]) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &j.Data)
}
