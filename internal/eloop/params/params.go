// Package params implements the namespaced parameter maps used to
// configure Event Sources and to carry per-operation arguments
// (openConnection, the accept/receive callback's reported params) without
// a closed schema, per the External Interfaces table.
package params

import (
	"eloop/internal/eloop/status"
)

// ReferenceNamespace is the namespace used by every key recognized by the
// core (the TCP Connection Manager's own parameters).
const ReferenceNamespace uint16 = 0

// Key identifies a parameter by a 16-bit namespace tag plus a local name,
// so third parties can add their own parameters without colliding with
// the reference namespace.
type Key struct {
	Namespace uint16
	Name      string
}

// K is a convenience constructor for a Key in the reference namespace.
func K(name string) Key { return Key{Namespace: ReferenceNamespace, Name: name} }

// kind discriminates the closed set of value types a Map may hold.
type kind int

const (
	kindBool kind = iota + 1
	kindUint16
	kindUint32
	kindString
	kindStrings
)

// Value is a closed sum type over the parameter value kinds the spec
// requires: bool, uint16, uint32, string, and string slice.
type Value struct {
	kind     kind
	boolV    bool
	uint16V  uint16
	uint32V  uint32
	stringV  string
	stringsV []string
}

func Bool(v bool) Value       { return Value{kind: kindBool, boolV: v} }
func Uint16(v uint16) Value   { return Value{kind: kindUint16, uint16V: v} }
func Uint32(v uint32) Value   { return Value{kind: kindUint32, uint32V: v} }
func String(v string) Value   { return Value{kind: kindString, stringV: v} }
func Strings(v []string) Value {
	return Value{kind: kindStrings, stringsV: append([]string(nil), v...)}
}

// Map is an unordered mapping from qualified Key to typed Value.
type Map map[Key]Value

// New returns an empty parameter map.
func New() Map { return make(Map) }

// Set stores v under key, in the reference namespace.
func (m Map) Set(name string, v Value) { m[K(name)] = v }

// SetKey stores v under an arbitrary (possibly non-reference) key.
func (m Map) SetKey(k Key, v Value) { m[k] = v }

func (m Map) get(name string) (Value, bool) {
	v, ok := m[K(name)]
	return v, ok
}

// GetBool returns the bool stored under name, or def if absent. Returns
// InvalidArgument if the stored value is not a bool.
func (m Map) GetBool(name string, def bool) (bool, error) {
	v, ok := m.get(name)
	if !ok {
		return def, nil
	}
	if v.kind != kindBool {
		return false, status.New(status.InvalidArgument, "parameter "+name+" is not a bool")
	}
	return v.boolV, nil
}

// GetUint16 returns the uint16 stored under name, or def if absent.
func (m Map) GetUint16(name string, def uint16) (uint16, error) {
	v, ok := m.get(name)
	if !ok {
		return def, nil
	}
	if v.kind != kindUint16 {
		return 0, status.New(status.InvalidArgument, "parameter "+name+" is not a uint16")
	}
	return v.uint16V, nil
}

// GetUint32 returns the uint32 stored under name, or def if absent.
func (m Map) GetUint32(name string, def uint32) (uint32, error) {
	v, ok := m.get(name)
	if !ok {
		return def, nil
	}
	if v.kind != kindUint32 {
		return 0, status.New(status.InvalidArgument, "parameter "+name+" is not a uint32")
	}
	return v.uint32V, nil
}

// GetString returns the string stored under name, or def if absent.
func (m Map) GetString(name string, def string) (string, error) {
	v, ok := m.get(name)
	if !ok {
		return def, nil
	}
	if v.kind != kindString {
		return "", status.New(status.InvalidArgument, "parameter "+name+" is not a string")
	}
	return v.stringV, nil
}

// GetStrings returns the string slice stored under name. A lone string
// value is also accepted and returned as a single-element slice, for
// parameters like listen-hostnames that take either form.
func (m Map) GetStrings(name string) ([]string, error) {
	v, ok := m.get(name)
	if !ok {
		return nil, nil
	}
	switch v.kind {
	case kindStrings:
		return append([]string(nil), v.stringsV...), nil
	case kindString:
		return []string{v.stringV}, nil
	default:
		return nil, status.New(status.InvalidArgument, "parameter "+name+" is not a string or []string")
	}
}

// RequireString returns the string stored under name, failing with
// InvalidArgument if the parameter is missing or mistyped.
func (m Map) RequireString(name string) (string, error) {
	v, ok := m.get(name)
	if !ok {
		return "", status.New(status.InvalidArgument, "missing required parameter "+name)
	}
	if v.kind != kindString {
		return "", status.New(status.InvalidArgument, "parameter "+name+" is not a string")
	}
	return v.stringV, nil
}

// RequireUint16 returns the uint16 stored under name, failing with
// InvalidArgument if the parameter is missing or mistyped.
func (m Map) RequireUint16(name string) (uint16, error) {
	v, ok := m.get(name)
	if !ok {
		return 0, status.New(status.InvalidArgument, "missing required parameter "+name)
	}
	if v.kind != kindUint16 {
		return 0, status.New(status.InvalidArgument, "parameter "+name+" is not a uint16")
	}
	return v.uint16V, nil
}
