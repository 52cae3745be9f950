package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"go.uber.org/zap"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
)

func quote(sql string) string {
	return regexp.QuoteMeta(sql)
}

func TestNewReturnsStoreUnavailableOnPingFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("NewPool() error: %v", err)
	}
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(errors.New("connection refused"))

	_, err = New(context.Background(), mockPool, zap.NewNop())
	if apperr.As(err).Kind != apperr.StoreUnavailable {
		t.Fatalf("err kind = %v, want store_unavailable", apperr.As(err).Kind)
	}
	if err := mockPool.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertTargetReturnsExistingRowOnConflict(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("NewPool() error: %v", err)
	}
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	s, err := New(context.Background(), mockPool, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	targetID := uuid.New()
	now := time.Now().UTC()

	mockPool.ExpectQuery(quote("INSERT INTO targets")).
		WithArgs("example.com", nil, "https", "active", "medium", "").
		WillReturnError(pgx.ErrNoRows)

	cols := []string{"id", "host", "port", "protocol", "status", "risk_level", "title", "metadata",
		"current_context_id", "last_activity", "created_at", "updated_at"}
	mockPool.ExpectQuery(quote("FROM targets WHERE host")).
		WithArgs("example.com", nil, "https").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			targetID, "example.com", nil, "https", "active", "medium", "", []byte(`{}`),
			nil, (*time.Time)(nil), now, now,
		))

	target, created, err := s.UpsertTarget(context.Background(), "EXAMPLE.com", nil, domain.ProtocolHTTPS, domain.TargetActive, domain.RiskMedium, "")
	if err != nil {
		t.Fatalf("UpsertTarget() error: %v", err)
	}
	if created {
		t.Fatal("expected created=false on conflict")
	}
	if target.ID != targetID {
		t.Fatalf("target.ID = %v, want %v", target.ID, targetID)
	}
	if err := mockPool.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateMissionStatusRejectsInvalidTransition(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("NewPool() error: %v", err)
	}
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	s, err := New(context.Background(), mockPool, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	missionID := uuid.New()
	cols := []string{"id", "name", "goal", "hypothesis", "scope_in", "scope_out", "status", "created_at", "completed_at"}
	mockPool.ExpectQuery(quote("FROM missions WHERE id")).
		WithArgs(missionID).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			missionID, "recon", "find the thing", "", []string{}, []string{}, "completed", time.Now(), (*time.Time)(nil),
		))

	_, err = s.UpdateMissionStatus(context.Background(), missionID, domain.MissionActive)
	if apperr.As(err).Kind != apperr.Conflict {
		t.Fatalf("err kind = %v, want conflict", apperr.As(err).Kind)
	}
	if err := mockPool.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLatestActionReturnsNilWhenMissionHasNoActions(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("NewPool() error: %v", err)
	}
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	s, err := New(context.Background(), mockPool, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	missionID := uuid.New()
	mockPool.ExpectQuery(quote("FROM mission_actions")).
		WithArgs(missionID).
		WillReturnError(pgx.ErrNoRows)

	action, err := s.LatestAction(context.Background(), missionID)
	if err != nil {
		t.Fatalf("LatestAction() error: %v", err)
	}
	if action != nil {
		t.Fatalf("expected nil action, got %+v", action)
	}
	if err := mockPool.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindSimilarActionsAppliesMinSimilarityAndLimit(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("NewPool() error: %v", err)
	}
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	s, err := New(context.Background(), mockPool, zap.NewNop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	missionID := uuid.New()
	actionID := uuid.New()
	cols := []string{"id", "mission_id", "technique", "hypothesis", "result", "success", "learning", "created_at", "score"}
	mockPool.ExpectQuery(quote("FROM mission_actions")).
		WithArgs(pgxmock.AnyArg(), &missionID, 0.5, 5).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			actionID, missionID, "sqli probe", "guess", "blocked by waf", "false", "nothing learned", time.Now(), 0.91,
		))

	results, err := s.FindSimilarActions(context.Background(), make(domain.Embedding, domain.EmbeddingDim), &missionID, 5, 0.5)
	if err != nil {
		t.Fatalf("FindSimilarActions() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Score != 0.91 {
		t.Fatalf("results[0].Score = %v, want 0.91", results[0].Score)
	}
	if err := mockPool.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
