package missionctx

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/redwire/redwire/internal/domain"
)

type fakeStore struct {
	missions map[uuid.UUID]*domain.Mission
}

func (f *fakeStore) GetMission(ctx context.Context, id uuid.UUID) (*domain.Mission, error) {
	m, ok := f.missions[id]
	if !ok {
		return nil, errors.New("mission not found")
	}
	return m, nil
}

func TestSetValidatesAndInstallsSnapshot(t *testing.T) {
	missionID := uuid.New()
	store := &fakeStore{missions: map[uuid.UUID]*domain.Mission{
		missionID: {ID: missionID, Name: "recon sweep"},
	}}
	m := New(store)

	name, err := m.Set(context.Background(), missionID, "staging")
	if err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if name != "recon sweep" {
		t.Fatalf("name = %q, want %q", name, "recon sweep")
	}

	state, err := m.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if state.ActiveMissionID == nil || *state.ActiveMissionID != missionID {
		t.Fatalf("ActiveMissionID = %v, want %v", state.ActiveMissionID, missionID)
	}
	if state.ActiveCookieProfile != "staging" {
		t.Fatalf("ActiveCookieProfile = %q, want %q", state.ActiveCookieProfile, "staging")
	}
}

func TestSetRejectsUnknownMission(t *testing.T) {
	m := New(&fakeStore{missions: map[uuid.UUID]*domain.Mission{}})

	if _, err := m.Set(context.Background(), uuid.New(), ""); err == nil {
		t.Fatal("expected an error for an unknown mission id")
	}
}

func TestClearResetsBothFields(t *testing.T) {
	missionID := uuid.New()
	store := &fakeStore{missions: map[uuid.UUID]*domain.Mission{
		missionID: {ID: missionID, Name: "recon sweep"},
	}}
	m := New(store)
	if _, err := m.Set(context.Background(), missionID, "staging"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	m.Clear()

	if got := m.ResolveMission(nil); got != nil {
		t.Fatalf("ResolveMission(nil) = %v, want nil after Clear", got)
	}
	if got := m.ResolveCookieProfile(""); got != "" {
		t.Fatalf("ResolveCookieProfile(\"\") = %q, want empty after Clear", got)
	}
}

func TestResolveMissionPrefersExplicitOverride(t *testing.T) {
	active := uuid.New()
	explicit := uuid.New()
	store := &fakeStore{missions: map[uuid.UUID]*domain.Mission{
		active: {ID: active, Name: "background"},
	}}
	m := New(store)
	if _, err := m.Set(context.Background(), active, ""); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	if got := m.ResolveMission(&explicit); got == nil || *got != explicit {
		t.Fatalf("ResolveMission(explicit) = %v, want %v", got, explicit)
	}
	if got := m.ResolveMission(nil); got == nil || *got != active {
		t.Fatalf("ResolveMission(nil) = %v, want %v", got, active)
	}
}

func TestResolveCookieProfilePrefersExplicitOverride(t *testing.T) {
	m := New(&fakeStore{missions: map[uuid.UUID]*domain.Mission{}})
	if got := m.ResolveCookieProfile("explicit"); got != "explicit" {
		t.Fatalf("ResolveCookieProfile(explicit) = %q, want %q", got, "explicit")
	}
}

func TestParseMissionIDRejectsMalformedUUID(t *testing.T) {
	if _, err := ParseMissionID("not-a-uuid"); err == nil {
		t.Fatal("expected an error for a malformed mission id")
	}
}

func TestParseMissionIDAllowsEmptyString(t *testing.T) {
	id, err := ParseMissionID("")
	if err != nil {
		t.Fatalf("ParseMissionID(\"\") error: %v", err)
	}
	if id != nil {
		t.Fatalf("ParseMissionID(\"\") = %v, want nil", id)
	}
}
