// Package coerce holds small, lenient parameter-coercion helpers shared
// by the tool surface's handlers — turning optional string/pointer tool
// arguments into the typed values the Store and HTTP Executor expect,
// with validation errors normalised to apperr.ValidationFailed so every
// tool handler returns the same error shape on a malformed argument.
package coerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/redwire/redwire/internal/apperr"
)

// Lenient performs a tolerant decode of raw tool-call JSON into dst: bool
// and int fields accept their common string spellings (clients built on
// loosely-typed tool schemas routinely send "true"/"1" for a boolean or
// "30" for a timeout), and object/array fields accept either a native JSON
// value or a JSON-encoded string holding one. Every field that fails to
// coerce is collected so the caller sees them all in a single
// ValidationFailed rather than just the first.
func Lenient(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return strictDecode(raw, dst)
	}

	rt := reflect.TypeOf(dst)
	if rt == nil || rt.Kind() != reflect.Ptr || rt.Elem().Kind() != reflect.Struct {
		return strictDecode(raw, dst)
	}
	rt = rt.Elem()

	var errs []string
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		val, present := obj[name]
		if !present || len(val) == 0 {
			continue
		}
		fixed, err := coerceField(f.Type, val)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if fixed != nil {
			obj[name] = fixed
		}
	}
	if len(errs) > 0 {
		return apperr.New(apperr.ValidationFailed, "invalid arguments: %s", strings.Join(errs, "; "))
	}

	fixed, err := json.Marshal(obj)
	if err != nil {
		return apperr.New(apperr.ValidationFailed, "parsing tool arguments: %v", err)
	}
	return strictDecode(fixed, dst)
}

func strictDecode(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.New(apperr.ValidationFailed, "parsing tool arguments: %v", err)
	}
	return nil
}

// coerceField returns a replacement value for val if target's kind needs
// leniency applied, or nil if val already decodes into target as-is.
func coerceField(target reflect.Type, val json.RawMessage) (json.RawMessage, error) {
	kind := target.Kind()
	if kind == reflect.Ptr {
		kind = target.Elem().Kind()
	}
	switch kind {
	case reflect.Bool:
		return coerceBool(val)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return coerceInt(val)
	case reflect.Map, reflect.Slice, reflect.Struct:
		return coerceJSON(val)
	default:
		return nil, nil
	}
}

// coerceBool accepts a native JSON boolean, or a string spelling of one:
// "true"/"false"/"1"/"0"/"yes"/"no", case-insensitive.
func coerceBool(val json.RawMessage) (json.RawMessage, error) {
	var b bool
	if err := json.Unmarshal(val, &b); err == nil {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("expected boolean, got %s", val)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return json.RawMessage("true"), nil
	case "false", "0", "no":
		return json.RawMessage("false"), nil
	default:
		return nil, fmt.Errorf("cannot parse %q as boolean", s)
	}
}

// coerceInt accepts a native JSON number, or a decimal string.
func coerceInt(val json.RawMessage) (json.RawMessage, error) {
	if t := bytes.TrimSpace(val); len(t) > 0 && t[0] != '"' {
		var n json.Number
		if err := json.Unmarshal(val, &n); err == nil {
			if _, err := n.Int64(); err == nil {
				return nil, nil
			}
		}
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("expected integer, got %s", val)
	}
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as integer", s)
	}
	return json.RawMessage(strconv.FormatInt(i, 10)), nil
}

// coerceJSON accepts a native JSON object/array or a JSON-encoded string
// holding one, normalising to the native form so the struct decode that
// follows succeeds either way.
func coerceJSON(val json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(val)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("invalid JSON text: %v", err)
	}
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("invalid embedded JSON: %q", s)
	}
	return json.RawMessage(s), nil
}

// MissionID parses an optional mission id string. An empty string yields
// (nil, nil), mirroring missionctx.ParseMissionID.
func MissionID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, apperr.New(apperr.ValidationFailed, "invalid mission_id %q: %v", s, err)
	}
	return &id, nil
}

// TargetID parses a required target id string.
func TargetID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.UUID{}, apperr.New(apperr.ValidationFailed, "target_id is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.UUID{}, apperr.New(apperr.ValidationFailed, "invalid target_id %q: %v", s, err)
	}
	return id, nil
}

// UUID parses an optional id string under a field name used in error
// messages. An empty string yields (nil, nil).
func UUID(field, s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, apperr.New(apperr.ValidationFailed, "invalid %s %q: %v", field, s, err)
	}
	return &id, nil
}

// BoolOr returns *p if p is non-nil, else def.
func BoolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// IntOr returns v if v is non-zero, else def. Tool arguments use the zero
// value to mean "not provided" for optional limit/count fields.
func IntOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Float64Or returns *p if p is non-nil, else def.
func Float64Or(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// StringOr returns s if non-empty, else def.
func StringOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
