package api

import "encoding/json"

// nullable distinguishes an absent PATCH field from an explicit null
type nullable[T any] struct {
	Set   bool
	Valid bool
	Value T
}

func (n *nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Valid = false
		return nil
	}
	if err := json.Unmarshal(b, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

// clearable returns nil when the field was absent, or a pointer to its value
// with null mapped to the zero value
func (n nullable[T]) clearable() *T {
	if !n.Set {
		return nil
	}
	v := n.Value
	if !n.Valid {
		var zero T
		v = zero
	}
	return &v
}
