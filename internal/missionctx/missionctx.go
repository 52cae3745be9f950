// Package missionctx implements the Mission Context Manager: one instance
// per agent connection, holding the active mission id and active cookie
// profile implicitly applied by the HTTP Executor and mission tools unless
// a call overrides them explicitly.
package missionctx

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
)

// MissionGetter is the subset of *store.Store needed to validate a
// mission id and resolve its display name.
type MissionGetter interface {
	GetMission(ctx context.Context, id uuid.UUID) (*domain.Mission, error)
}

// Snapshot is the manager's immutable point-in-time state, atomically
// swapped on every Set/Clear so concurrent readers (the HTTP Executor's
// background logging) never observe a half-updated value.
type Snapshot struct {
	ActiveMissionID     *uuid.UUID
	ActiveCookieProfile string
}

// Manager is one agent connection's mission context. Safe for concurrent
// use: Set/Clear/Get operate through an atomic.Pointer swap, so a reader
// racing a writer sees either the old or the new snapshot, never a mix.
type Manager struct {
	store   MissionGetter
	current atomic.Pointer[Snapshot]
}

// New returns a Manager with no active mission or cookie profile.
func New(store MissionGetter) *Manager {
	m := &Manager{store: store}
	m.current.Store(&Snapshot{})
	return m
}

// Set validates missionID against the store and installs it (plus an
// optional cookie profile) as the connection's active context, returning
// the mission's human name for the caller's confirmation message.
func (m *Manager) Set(ctx context.Context, missionID uuid.UUID, cookieProfile string) (string, error) {
	if m.store == nil {
		return "", apperr.New(apperr.StoreUnavailable, "the database is not configured; mission context is unavailable")
	}
	mission, err := m.store.GetMission(ctx, missionID)
	if err != nil {
		return "", err
	}
	m.current.Store(&Snapshot{ActiveMissionID: &mission.ID, ActiveCookieProfile: cookieProfile})
	return mission.Name, nil
}

// Clear resets both the active mission and the active cookie profile.
func (m *Manager) Clear() {
	m.current.Store(&Snapshot{})
}

// State is the result of Get: the active mission id and its freshly
// resolved name (empty when no mission is active), plus the active cookie
// profile. Get returns an error instead of a State if the active mission
// can no longer be loaded.
type State struct {
	ActiveMissionID     *uuid.UUID
	ActiveMissionName   string
	ActiveCookieProfile string
}

// Get returns the connection's current state, re-resolving the active
// mission's name from the store so a rename is reflected immediately.
func (m *Manager) Get(ctx context.Context) (*State, error) {
	snap := m.current.Load()
	state := &State{ActiveMissionID: snap.ActiveMissionID, ActiveCookieProfile: snap.ActiveCookieProfile}
	if snap.ActiveMissionID != nil {
		if m.store == nil {
			return nil, apperr.New(apperr.StoreUnavailable, "the database is not configured; mission context is unavailable")
		}
		mission, err := m.store.GetMission(ctx, *snap.ActiveMissionID)
		if err != nil {
			return nil, err
		}
		state.ActiveMissionName = mission.Name
	}
	return state, nil
}

// ResolveMission returns explicit if non-nil, else the connection's active
// mission id. Returns nil if neither is set.
func (m *Manager) ResolveMission(explicit *uuid.UUID) *uuid.UUID {
	if explicit != nil {
		return explicit
	}
	return m.current.Load().ActiveMissionID
}

// ResolveCookieProfile returns explicit if non-empty, else the
// connection's active cookie profile.
func (m *Manager) ResolveCookieProfile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return m.current.Load().ActiveCookieProfile
}

// ParseMissionID is a small convenience wrapper turning an optional
// string mission id into a validated *uuid.UUID suitable for
// ResolveMission. An empty string yields (nil, nil).
func ParseMissionID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, apperr.New(apperr.ValidationFailed, "invalid mission_id %q: %v", s, err)
	}
	return &id, nil
}
