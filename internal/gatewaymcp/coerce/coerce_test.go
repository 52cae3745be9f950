package coerce

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/redwire/redwire/internal/apperr"
)

type lenientTarget struct {
	Name    string            `json:"name"`
	Active  *bool             `json:"active"`
	Count   int               `json:"count"`
	Limit   int               `json:"limit"`
	Headers map[string]string `json:"headers"`
	Tags    []string          `json:"tags"`
}

func TestLenientAcceptsNativeTypes(t *testing.T) {
	var dst lenientTarget
	raw := json.RawMessage(`{"name":"x","active":true,"count":3,"headers":{"a":"b"},"tags":["x","y"]}`)
	if err := Lenient(raw, &dst); err != nil {
		t.Fatalf("Lenient() error: %v", err)
	}
	if dst.Name != "x" || dst.Active == nil || !*dst.Active || dst.Count != 3 {
		t.Fatalf("dst = %+v, unexpected", dst)
	}
	if dst.Headers["a"] != "b" {
		t.Fatalf("headers = %v", dst.Headers)
	}
}

func TestLenientCoercesStringBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true}, {"1", true}, {"yes", true}, {"YES", true},
		{"false", false}, {"0", false}, {"no", false},
	}
	for _, tt := range tests {
		var dst lenientTarget
		raw := json.RawMessage(`{"active":"` + tt.in + `"}`)
		if err := Lenient(raw, &dst); err != nil {
			t.Fatalf("Lenient(%q) error: %v", tt.in, err)
		}
		if dst.Active == nil || *dst.Active != tt.want {
			t.Errorf("Lenient(%q) active = %v, want %v", tt.in, dst.Active, tt.want)
		}
	}
}

func TestLenientRejectsUnparseableBool(t *testing.T) {
	var dst lenientTarget
	raw := json.RawMessage(`{"active":"maybe"}`)
	err := Lenient(raw, &dst)
	if apperr.As(err).Kind != apperr.ValidationFailed {
		t.Fatalf("err kind = %v, want validation_failed", apperr.As(err).Kind)
	}
}

func TestLenientCoercesStringInt(t *testing.T) {
	var dst lenientTarget
	raw := json.RawMessage(`{"count":"42"}`)
	if err := Lenient(raw, &dst); err != nil {
		t.Fatalf("Lenient() error: %v", err)
	}
	if dst.Count != 42 {
		t.Fatalf("count = %d, want 42", dst.Count)
	}
}

func TestLenientCoercesEmbeddedJSONString(t *testing.T) {
	var dst lenientTarget
	raw := json.RawMessage(`{"headers":"{\"a\":\"b\"}","tags":"[\"x\",\"y\"]"}`)
	if err := Lenient(raw, &dst); err != nil {
		t.Fatalf("Lenient() error: %v", err)
	}
	if dst.Headers["a"] != "b" {
		t.Fatalf("headers = %v", dst.Headers)
	}
	if len(dst.Tags) != 2 || dst.Tags[0] != "x" {
		t.Fatalf("tags = %v", dst.Tags)
	}
}

func TestLenientCollectsAllFieldErrors(t *testing.T) {
	var dst lenientTarget
	raw := json.RawMessage(`{"active":"maybe","count":"not-a-number"}`)
	err := Lenient(raw, &dst)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := apperr.As(err).Message
	if !strings.Contains(msg, "active") || !strings.Contains(msg, "count") {
		t.Fatalf("error %q does not name both failing fields", msg)
	}
}

func TestLenientEmptyRawIsNoop(t *testing.T) {
	var dst lenientTarget
	if err := Lenient(nil, &dst); err != nil {
		t.Fatalf("Lenient(nil) error: %v", err)
	}
}

func TestLenientNonObjectFallsBackToStrictDecode(t *testing.T) {
	var dst []int
	raw := json.RawMessage(`[1,2,3]`)
	if err := Lenient(raw, &dst); err != nil {
		t.Fatalf("Lenient() error: %v", err)
	}
	if len(dst) != 3 || dst[2] != 3 {
		t.Fatalf("dst = %v", dst)
	}
}

func TestMissionID(t *testing.T) {
	id, err := MissionID("")
	if err != nil || id != nil {
		t.Fatalf("MissionID(\"\") = %v, %v, want nil, nil", id, err)
	}

	valid := uuid.New().String()
	id, err = MissionID(valid)
	if err != nil {
		t.Fatalf("MissionID(%q) error: %v", valid, err)
	}
	if id == nil || id.String() != valid {
		t.Fatalf("MissionID(%q) = %v, want %v", valid, id, valid)
	}

	if _, err := MissionID("not-a-uuid"); apperr.As(err).Kind != apperr.ValidationFailed {
		t.Fatalf("err kind = %v, want validation_failed", apperr.As(err).Kind)
	}
}

func TestTargetID(t *testing.T) {
	if _, err := TargetID(""); apperr.As(err).Kind != apperr.ValidationFailed {
		t.Fatalf("TargetID(\"\") err kind = %v, want validation_failed", apperr.As(err).Kind)
	}
	if _, err := TargetID("garbage"); apperr.As(err).Kind != apperr.ValidationFailed {
		t.Fatalf("TargetID(garbage) err kind = %v, want validation_failed", apperr.As(err).Kind)
	}
	valid := uuid.New()
	got, err := TargetID(valid.String())
	if err != nil {
		t.Fatalf("TargetID(%q) error: %v", valid, err)
	}
	if got != valid {
		t.Fatalf("TargetID(%q) = %v, want %v", valid, got, valid)
	}
}

func TestBoolOrIntOrFloat64OrStringOr(t *testing.T) {
	tr := true
	if !BoolOr(&tr, false) {
		t.Error("BoolOr with non-nil pointer should return *p")
	}
	if !BoolOr(nil, true) {
		t.Error("BoolOr with nil pointer should return def")
	}
	if IntOr(0, 50) != 50 {
		t.Error("IntOr(0, 50) should return def")
	}
	if IntOr(7, 50) != 7 {
		t.Error("IntOr(7, 50) should return v")
	}
	f := 0.9
	if Float64Or(&f, 0.5) != 0.9 {
		t.Error("Float64Or with non-nil pointer should return *p")
	}
	if Float64Or(nil, 0.5) != 0.5 {
		t.Error("Float64Or with nil pointer should return def")
	}
	if StringOr("", "default") != "default" {
		t.Error("StringOr(\"\", ...) should return def")
	}
	if StringOr("set", "default") != "set" {
		t.Error("StringOr(\"set\", ...) should return s")
	}
}
