package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/redwire/redwire/internal/apperr"
	"github.com/redwire/redwire/internal/domain"
	"github.com/redwire/redwire/pkg/jsonutil"
)

// InsertRequest persists one HttpRequest record. The id is server-
// generated, so there is no unique-constraint surprise to worry about;
// any insert error is still returned so the Logging Pipeline can log and
// swallow it under its own best-effort contract.
func (s *Store) InsertRequest(ctx context.Context, r *domain.HttpRequest) (*domain.HttpRequest, error) {
	queryJSON, err := jsonutil.Marshal(r.QueryParams)
	if err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}
	reqHeadersJSON, err := jsonutil.Marshal(r.RequestHeaders)
	if err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}
	reqCookiesJSON, err := jsonutil.Marshal(r.RequestCookies)
	if err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}
	respHeadersJSON, err := jsonutil.Marshal(r.ResponseHeaders)
	if err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO http_requests
			(method, url, host, path, query_params, request_headers, request_cookies, request_body, request_body_size,
			 status_code, response_headers, response_body, response_body_size, elapsed_ms, error, target_id, action_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at
	`, r.Method, r.URL, r.Host, r.Path, queryJSON, reqHeadersJSON, reqCookiesJSON, r.RequestBody, r.RequestBodySize,
		r.StatusCode, respHeadersJSON, r.ResponseBody, r.ResponseBodySize, r.ElapsedMS, r.Error, r.TargetID, r.ActionID,
	)

	out := *r
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, apperr.InternalWithCorrelation(err)
	}
	return &out, nil
}

// LinkRequestToAction sets an HttpRequest's action_id. Idempotent: a
// duplicate call for an already-linked request is a no-op.
func (s *Store) LinkRequestToAction(ctx context.Context, requestID, actionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE http_requests SET action_id = $2 WHERE id = $1 AND action_id IS DISTINCT FROM $2
	`, requestID, actionID)
	if err != nil {
		return apperr.InternalWithCorrelation(err)
	}
	return nil
}

// CountRequestsForTarget returns the number of requests ever recorded
// against a target.
func (s *Store) CountRequestsForTarget(ctx context.Context, targetID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM http_requests WHERE target_id = $1`, targetID).Scan(&n)
	if err != nil {
		return 0, apperr.InternalWithCorrelation(err)
	}
	return n, nil
}

// RecentRequestsForMission returns the last count HttpRequests linked to
// one of missionID's actions, ordered newest first. Requests with no
// action link are not included.
func (s *Store) RecentRequestsForMission(ctx context.Context, missionID uuid.UUID, count int) ([]*domain.HttpRequest, error) {
	if count <= 0 {
		count = 3
	}
	rows, err := s.pool.Query(ctx, `
		SELECT hr.id, hr.method, hr.url, hr.host, hr.path, hr.query_params, hr.request_headers,
		       hr.request_cookies, hr.request_body, hr.request_body_size, hr.status_code,
		       hr.response_headers, hr.response_body, hr.response_body_size, hr.elapsed_ms,
		       hr.error, hr.target_id, hr.action_id, hr.created_at
		FROM http_requests hr
		JOIN mission_actions ma ON ma.id = hr.action_id
		WHERE ma.mission_id = $1
		ORDER BY hr.created_at DESC
		LIMIT $2
	`, missionID, count)
	if err != nil {
		return nil, s.wrapErr("request.recent_for_mission", err)
	}
	defer rows.Close()

	var out []*domain.HttpRequest
	for rows.Next() {
		r, err := scanRequestRow(rows)
		if err != nil {
			return nil, s.wrapErr("request.recent_for_mission", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRequestRow(row rowScanner) (*domain.HttpRequest, error) {
	var r domain.HttpRequest
	var queryJSON, reqHeadersJSON, reqCookiesJSON, respHeadersJSON []byte
	if err := row.Scan(
		&r.ID, &r.Method, &r.URL, &r.Host, &r.Path, &queryJSON, &reqHeadersJSON,
		&reqCookiesJSON, &r.RequestBody, &r.RequestBodySize, &r.StatusCode,
		&respHeadersJSON, &r.ResponseBody, &r.ResponseBodySize, &r.ElapsedMS,
		&r.Error, &r.TargetID, &r.ActionID, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	_ = jsonutil.Unmarshal(queryJSON, &r.QueryParams)
	_ = jsonutil.Unmarshal(reqHeadersJSON, &r.RequestHeaders)
	_ = jsonutil.Unmarshal(reqCookiesJSON, &r.RequestCookies)
	_ = jsonutil.Unmarshal(respHeadersJSON, &r.ResponseHeaders)
	return &r, nil
}
