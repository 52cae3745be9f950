package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/redwire/redwire/internal/domain"
	"github.com/redwire/redwire/internal/httpexec"
)

type fakeRepo struct {
	upsertErr   error
	insertErr   error
	latestErr   error
	linkErr     error
	bumpErr     error
	inserted    *domain.HttpRequest
	upsertCalls int
	linkCalls   int
	bumpCalls   int
	latest      *domain.MissionAction
}

func (f *fakeRepo) UpsertTarget(ctx context.Context, host string, port *int, protocol domain.Protocol, status domain.TargetStatus, risk domain.RiskLevel, title string) (*domain.Target, bool, error) {
	f.upsertCalls++
	if f.upsertErr != nil {
		return nil, false, f.upsertErr
	}
	return &domain.Target{ID: uuid.New(), Host: host, Protocol: protocol}, true, nil
}

func (f *fakeRepo) InsertRequest(ctx context.Context, r *domain.HttpRequest) (*domain.HttpRequest, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	out := *r
	out.ID = uuid.New()
	f.inserted = &out
	return &out, nil
}

func (f *fakeRepo) LatestAction(ctx context.Context, missionID uuid.UUID) (*domain.MissionAction, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	return f.latest, nil
}

func (f *fakeRepo) LinkRequestToAction(ctx context.Context, requestID, actionID uuid.UUID) error {
	f.linkCalls++
	return f.linkErr
}

func (f *fakeRepo) BumpLastActivity(ctx context.Context, id uuid.UUID) error {
	f.bumpCalls++
	return f.bumpErr
}

func newTestPipeline(repo Repository) (*Pipeline, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)
	p := New(repo, logger, nil, Config{
		SensitiveHeaders:  []string{"Authorization"},
		BodyTruncateLimit: 1024,
	})
	return p, logs
}

func TestRecordUpsertsTargetAndInsertsRequest(t *testing.T) {
	repo := &fakeRepo{}
	p, _ := newTestPipeline(repo)

	spec := &httpexec.RequestSpec{URL: "https://example.com/probe", Method: httpexec.MethodGET}
	env := &httpexec.Envelope{Status: 200, FinalURL: "https://example.com/probe", Headers: map[string]string{"Authorization": "secret"}}

	p.Record(context.Background(), spec, env)

	if repo.upsertCalls != 1 {
		t.Fatalf("upsertCalls = %d, want 1", repo.upsertCalls)
	}
	if repo.inserted == nil {
		t.Fatal("expected a request to be inserted")
	}
	if repo.inserted.ResponseHeaders["Authorization"] != sensitiveRedactedValue {
		t.Fatalf("Authorization header not redacted: %q", repo.inserted.ResponseHeaders["Authorization"])
	}
}

func TestRecordSkipsTargetAttributionOnUnparsableURL(t *testing.T) {
	repo := &fakeRepo{}
	p, logs := newTestPipeline(repo)

	spec := &httpexec.RequestSpec{URL: "http://%zz", Method: httpexec.MethodGET}
	env := &httpexec.Envelope{Error: "dial failed"}

	p.Record(context.Background(), spec, env)

	if repo.upsertCalls != 0 {
		t.Fatalf("upsertCalls = %d, want 0", repo.upsertCalls)
	}
	if repo.inserted == nil {
		t.Fatal("request should still be inserted with a null target")
	}
	if repo.inserted.TargetID != nil {
		t.Fatal("expected nil TargetID when URL parsing fails")
	}
	found := false
	for _, entry := range logs.All() {
		if entry.ContextMap()["step"] == "parse_url" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a parse_url step failure to be logged")
	}
}

func TestRecordLinksToLatestActionWhenMissionSet(t *testing.T) {
	missionID := uuid.New()
	actionID := uuid.New()
	repo := &fakeRepo{latest: &domain.MissionAction{ID: actionID, MissionID: missionID}}
	p, _ := newTestPipeline(repo)

	spec := &httpexec.RequestSpec{URL: "https://example.com/", MissionID: missionID.String()}
	env := &httpexec.Envelope{Status: 200, FinalURL: "https://example.com/"}

	p.Record(context.Background(), spec, env)

	if repo.linkCalls != 1 {
		t.Fatalf("linkCalls = %d, want 1", repo.linkCalls)
	}
	if repo.bumpCalls != 1 {
		t.Fatalf("bumpCalls = %d, want 1", repo.bumpCalls)
	}
}

func TestRecordReturnsEarlyAfterInsertFailure(t *testing.T) {
	repo := &fakeRepo{insertErr: errors.New("db down")}
	p, logs := newTestPipeline(repo)

	spec := &httpexec.RequestSpec{URL: "https://example.com/", MissionID: uuid.New().String()}
	env := &httpexec.Envelope{Status: 200, FinalURL: "https://example.com/"}

	p.Record(context.Background(), spec, env)

	if repo.linkCalls != 0 || repo.bumpCalls != 0 {
		t.Fatal("expected no downstream calls once insert_request fails")
	}
	if logs.FilterMessage("logging pipeline step failed").Len() == 0 {
		t.Fatal("expected a logged failure")
	}
}
