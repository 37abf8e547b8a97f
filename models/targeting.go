package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Targeting holds optional criteria narrowing ad selection for a request.
type Targeting struct {
	// Geo lists the geographic areas the ads should be relevant to. The builder
	// deduplicates entries while keeping their first-seen order.
	Geo      []GeoTarget     `json:"geo,omitempty"`
	Location *LocationTarget `json:"location,omitempty"`
	// Custom carries publisher-defined key-values (e.g. "section": "sports").
	// Keys are unique; the JSON object preserves insertion order.
	Custom   CustomTargeting `json:"custom,omitempty"`
	Keywords []string        `json:"keywords,omitempty"`
}

// IsEmpty reports whether t carries no targeting criteria.
func (t *Targeting) IsEmpty() bool {
	return t == nil || (len(t.Geo) == 0 && t.Location == nil && len(t.Custom) == 0 && len(t.Keywords) == 0)
}

// GeoTarget is a geographic area. Country is an ISO 3166-1 alpha-2 code and
// Region an ISO 3166-2 subdivision code without the country prefix.
type GeoTarget struct {
	Country    string `json:"country,omitempty"`
	Region     string `json:"region,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// IsZero reports whether g names no area at all.
func (g GeoTarget) IsZero() bool {
	return g == GeoTarget{}
}

// LocationTarget is a precise device location.
type LocationTarget struct {
	Latitude       float64 `json:"lat"`
	Longitude      float64 `json:"lon"`
	AccuracyMeters float64 `json:"accuracy,omitempty"`
}

// KeyValue is one custom targeting pair.
type KeyValue struct {
	Key   string
	Value string
}

// CustomTargeting is an ordered set of key-values with unique keys. It is
// encoded as a JSON object whose members appear in insertion order.
type CustomTargeting []KeyValue

// Get returns the value stored for key.
func (c CustomTargeting) Get(key string) (string, bool) {
	for _, kv := range c {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Keys returns the keys in insertion order.
func (c CustomTargeting) Keys() []string {
	keys := make([]string, len(c))
	for i, kv := range c {
		keys[i] = kv.Key
	}
	return keys
}

// Len returns the number of pairs.
func (c CustomTargeting) Len() int {
	return len(c)
}

// With returns a copy of c with key set to value. An existing key keeps its
// position and takes the new value; a new key is appended.
func (c CustomTargeting) With(key, value string) CustomTargeting {
	out := make(CustomTargeting, len(c), len(c)+1)
	copy(out, c)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, KeyValue{Key: key, Value: value})
}

// Map returns the pairs as a map. Ordering is lost.
func (c CustomTargeting) Map() map[string]string {
	m := make(map[string]string, len(c))
	for _, kv := range c {
		m[kv.Key] = kv.Value
	}
	return m
}

// MarshalJSON encodes c as a JSON object in insertion order.
func (c CustomTargeting) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of string values, keeping document
// order. A key repeated in the document keeps its first position and its last
// value.
func (c *CustomTargeting) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*c = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("custom targeting: expected object, got %v", tok)
	}
	out := CustomTargeting{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("custom targeting: expected string key, got %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("custom targeting: value for %q: %w", key, err)
		}
		out = out.With(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}
