package crdt

import "encoding/json"

// OptionalString represents a tag that may or may not be set. It exists so
// that "no tag" can be written through an LWW register like any other
// value, instead of introducing a separate remove/delete state: untagging
// is a Set(OptionalString{}, freshClock), never a deletion.
type OptionalString struct {
	Valid bool
	Value string
}

// Some wraps a present string.
func Some(value string) OptionalString {
	return OptionalString{Valid: true, Value: value}
}

// None is the absent value.
func None() OptionalString {
	return OptionalString{}
}

// Get returns the string and whether it was present, mirroring the
// comma-ok idiom used for map lookups elsewhere in this codebase.
func (o OptionalString) Get() (string, bool) {
	return o.Value, o.Valid
}

// MarshalJSON renders an absent value as JSON null and a present value as
// a plain JSON string.
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON accepts JSON null as an absent value and a JSON string as
// a present one.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Some(s)
	return nil
}
