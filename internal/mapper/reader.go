package mapper

import (
	"fmt"
	"math"

	"github.com/five82/remora/internal/jsonvalue"
	"github.com/five82/remora/internal/transmission"
)

// reader walks one JSON object and keeps the first error it hits, so mapping
// code can read many fields and check once.
type reader struct {
	fields   map[string]jsonvalue.Value
	required map[string]bool
	path     string
	err      *Error
}

func newReader(value jsonvalue.Value, path string) *reader {
	fields, ok := value.ObjectValue()
	if !ok {
		return &reader{path: path, err: &Error{Kind: ErrInvalidType, Field: path, Details: "expected object, got " + value.Kind().String()}}
	}
	return &reader{fields: fields, path: path}
}

// arguments validates the response result and returns a reader over its
// arguments object.
func arguments(resp transmission.Response, context string) (*reader, error) {
	if err := RequireSuccess(resp, context); err != nil {
		return nil, err
	}
	if resp.Arguments == nil || resp.Arguments.IsNull() {
		return nil, &Error{Kind: ErrMissingArguments, Field: context}
	}
	r := newReader(*resp.Arguments, context)
	if r.err != nil {
		return nil, &Error{Kind: ErrMissingArguments, Field: context, Details: "arguments are not an object"}
	}
	return r, nil
}

// RequireSuccess rejects responses whose result is not "success".
func RequireSuccess(resp transmission.Response, context string) error {
	if resp.IsSuccess() {
		return nil
	}
	return &Error{Kind: ErrRPC, Field: context, Details: resp.Result}
}

// result returns the first recorded error as an error interface.
func (r *reader) result() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

func (r *reader) fieldPath(key string) string {
	if r.path == "" {
		return key
	}
	return r.path + "." + key
}

func (r *reader) fail(err *Error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) typeError(key string, want string, got jsonvalue.Value) {
	r.fail(&Error{
		Kind:     ErrInvalidType,
		Field:    r.fieldPath(key),
		Details:  "expected " + want + ", got " + got.Kind().String(),
		RawValue: got.String(),
	})
}

// need records ErrMissingField for the first absent key. The keys are also
// marked required, so a later read of a null value is a type error.
func (r *reader) need(keys ...string) {
	if r.required == nil {
		r.required = make(map[string]bool, len(keys))
	}
	for _, key := range keys {
		r.required[key] = true
	}
	if r.err != nil {
		return
	}
	for _, key := range keys {
		if _, ok := r.fields[key]; !ok {
			r.fail(missingField(r.fieldPath(key)))
			return
		}
	}
}

// has reports a present, non-null key.
func (r *reader) has(key string) bool {
	value, ok := r.fields[key]
	return ok && !value.IsNull()
}

// lookup treats null like an absent key unless need marked the key required.
func (r *reader) lookup(key, want string) (jsonvalue.Value, bool) {
	if r.err != nil {
		return jsonvalue.Value{}, false
	}
	value, ok := r.fields[key]
	if !ok {
		return jsonvalue.Value{}, false
	}
	if value.IsNull() {
		if r.required[key] {
			r.typeError(key, want, value)
		}
		return jsonvalue.Value{}, false
	}
	return value, true
}

// integer64 accepts either numeric encoding; doubles are truncated.
func (r *reader) integer64(key string) int64 {
	value, ok := r.lookup(key, "number")
	if !ok {
		return 0
	}
	if i, ok := value.IntValue(); ok {
		return i
	}
	if f, ok := value.DoubleValue(); ok {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			r.fail(&Error{Kind: ErrInvalidValue, Field: r.fieldPath(key), RawValue: value.String()})
			return 0
		}
		return int64(f)
	}
	r.typeError(key, "number", value)
	return 0
}

func (r *reader) integer(key string) int {
	return int(r.integer64(key))
}

func (r *reader) number(key string) float64 {
	value, ok := r.lookup(key, "number")
	if !ok {
		return 0
	}
	number, ok := value.NumberValue()
	if !ok {
		r.typeError(key, "number", value)
		return 0
	}
	return number
}

func (r *reader) text(key string) string {
	value, ok := r.lookup(key, "string")
	if !ok {
		return ""
	}
	s, ok := value.StringValue()
	if !ok {
		r.typeError(key, "string", value)
		return ""
	}
	return s
}

func (r *reader) flag(key string) bool {
	value, ok := r.lookup(key, "bool")
	if !ok {
		return false
	}
	b, ok := value.BoolValue()
	if !ok {
		r.typeError(key, "bool", value)
		return false
	}
	return b
}

func (r *reader) list(key string) []jsonvalue.Value {
	value, ok := r.lookup(key, "array")
	if !ok {
		return nil
	}
	items, ok := value.ArrayValue()
	if !ok {
		r.typeError(key, "array", value)
		return nil
	}
	return items
}

func (r *reader) texts(key string) []string {
	items := r.list(key)
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.StringValue()
		if !ok {
			r.typeError(fmt.Sprintf("%s[%d]", key, i), "string", item)
			return nil
		}
		out = append(out, s)
	}
	return out
}

// child returns a reader over a nested object. A missing key yields an
// empty reader.
func (r *reader) child(key string) *reader {
	value, ok := r.lookup(key, "object")
	if !ok {
		return &reader{path: r.fieldPath(key), err: r.err}
	}
	child := newReader(value, r.fieldPath(key))
	if child.err != nil {
		r.fail(child.err)
	}
	return child
}

// children returns readers over an array of objects.
func (r *reader) children(key string) []*reader {
	items := r.list(key)
	out := make([]*reader, 0, len(items))
	for i, item := range items {
		child := newReader(item, fmt.Sprintf("%s[%d]", r.fieldPath(key), i))
		if child.err != nil {
			r.fail(child.err)
			return nil
		}
		out = append(out, child)
	}
	return out
}

// absorb copies a child reader's error into r.
func (r *reader) absorb(child *reader) {
	if child.err != nil && r.err == nil {
		r.err = child.err
	}
}
