package appconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var errNotObject = errors.New("not an object")

// object is a JSON object that remembers the order of its keys. Values are
// kept as raw JSON so untouched members are written back as they were read.
type object struct {
	keys   []string
	values map[string]json.RawMessage
}

func newObject() *object {
	return &object{values: make(map[string]json.RawMessage)}
}

// parseObject decodes data, which must be a single JSON object.
func parseObject(data []byte) (*object, error) {
	if !json.Valid(data) {
		return nil, errors.New("invalid JSON")
	}

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	obj := newObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		obj.setRaw(key, raw)
	}

	return obj, nil
}

func (o *object) get(key string) (json.RawMessage, bool) {
	raw, ok := o.values[key]
	return raw, ok
}

// setRaw replaces the value of key in place, or appends key when new.
func (o *object) setRaw(key string, raw json.RawMessage) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = raw
}

func (o *object) set(key string, value any) error {
	raw, err := marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	o.setRaw(key, raw)
	return nil
}

// MarshalJSON writes the members in the order they were read.
func (o *object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(o.values[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshal encodes v without escaping &, < and >.
func marshal(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
