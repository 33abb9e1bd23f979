package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const eventColumns = `
  id, event_type, source, source_event_id, correlation_id, payload, headers,
  status, received_at, processed_at, error_message, retry_count,
  related_event_id, approval_state, callback_status, callback_at`

// Store persists event records in SQLite.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert stores a new event record. A missing ID is assigned, a missing
// status defaults to received, and a zero ReceivedAt is stamped now.
func (s *Store) Insert(ctx context.Context, rec *EventRecord) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}
	if rec.Source == "" {
		return fmt.Errorf("source is empty")
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusReceived
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}

	var headers any
	if len(rec.Headers) > 0 {
		b, err := json.Marshal(rec.Headers)
		if err != nil {
			return fmt.Errorf("marshal headers: %w", err)
		}
		headers = string(b)
	}

	var payload any
	if len(rec.Payload) > 0 {
		payload = string(rec.Payload)
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO events(
  id, event_type, source, source_event_id, correlation_id, payload, headers,
  status, received_at, retry_count
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, 0);
`, rec.ID, rec.EventType, rec.Source, nullable(rec.SourceEventID), nullable(rec.CorrelationID),
		payload, headers, rec.Status, rec.ReceivedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Get loads one event record by ID.
func (s *Store) Get(ctx context.Context, id string) (*EventRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT`+eventColumns+`
FROM events
WHERE id = ?;
`, id)

	rec, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return rec, nil
}

// List returns event records newest first, narrowed by the filter.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*EventRecord, error) {
	query := `SELECT` + eventColumns + ` FROM events`
	var args []any
	var where []string

	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query += " ORDER BY received_at DESC, rowid DESC LIMIT ?;"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*EventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

// FindByCorrelation returns events whose correlation ID or sender-assigned
// event ID matches, newest first. Approval callbacks reference the opening
// event by either handle.
func (s *Store) FindByCorrelation(ctx context.Context, correlationID string) ([]*EventRecord, error) {
	if correlationID == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT`+eventColumns+`
FROM events
WHERE correlation_id = ? OR source_event_id = ?
ORDER BY received_at DESC, rowid DESC;
`, correlationID, correlationID)
	if err != nil {
		return nil, fmt.Errorf("find by correlation: %w", err)
	}
	defer rows.Close()

	var out []*EventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find by correlation: %w", err)
	}
	return out, nil
}

// ClaimNext atomically flips the oldest received event to processing and
// returns it. Returns (nil, nil) when nothing is waiting.
func (s *Store) ClaimNext(ctx context.Context) (*EventRecord, error) {
	row := s.db.QueryRowContext(ctx, `
WITH next AS (
  SELECT id
  FROM events
  WHERE status = ?
  ORDER BY received_at ASC, rowid ASC
  LIMIT 1
)
UPDATE events
SET status = ?
WHERE id IN (SELECT id FROM next)
RETURNING`+eventColumns+`;
`, StatusReceived, StatusProcessing)

	rec, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next event: %w", err)
	}
	return rec, nil
}

// MarkProcessed marks an event terminal with status processed.
func (s *Store) MarkProcessed(ctx context.Context, id string) error {
	return s.markTerminal(ctx, id, StatusProcessed, nil)
}

// MarkIgnored marks an event terminal with status ignored.
func (s *Store) MarkIgnored(ctx context.Context, id string) error {
	return s.markTerminal(ctx, id, StatusIgnored, nil)
}

// MarkFailed marks an event terminal with status failed, records the error
// message, and increments the retry count.
func (s *Store) MarkFailed(ctx context.Context, id, errMsg string) error {
	return s.markTerminal(ctx, id, StatusFailed, &errMsg)
}

func (s *Store) markTerminal(ctx context.Context, id, status string, errMsg *string) error {
	if id == "" {
		return fmt.Errorf("id is empty")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	var res sql.Result
	var err error
	if status == StatusFailed {
		res, err = s.db.ExecContext(ctx, `
UPDATE events
SET status = ?, processed_at = ?, error_message = ?, retry_count = retry_count + 1
WHERE id = ?;
`, status, now, errMsg, id)
	} else {
		res, err = s.db.ExecContext(ctx, `
UPDATE events
SET status = ?, processed_at = ?
WHERE id = ?;
`, status, now, id)
	}
	if err != nil {
		return fmt.Errorf("mark event %s: %w", status, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark event %s: %w", status, err)
	}
	if affected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// SetCallback records the downstream side-effect outcome for an event.
func (s *Store) SetCallback(ctx context.Context, id, approvalState, callbackStatus string) error {
	if id == "" {
		return fmt.Errorf("id is empty")
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
UPDATE events
SET approval_state = ?, callback_status = ?, callback_at = ?
WHERE id = ?;
`, nullable(approvalState), callbackStatus, now, id)
	if err != nil {
		return fmt.Errorf("set callback: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set callback: %w", err)
	}
	if affected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// SetRelated links an event to the record it correlates with.
func (s *Store) SetRelated(ctx context.Context, id, relatedEventID string) error {
	if id == "" {
		return fmt.Errorf("id is empty")
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE events
SET related_event_id = ?
WHERE id = ?;
`, relatedEventID, id)
	if err != nil {
		return fmt.Errorf("set related event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set related event: %w", err)
	}
	if affected == 0 {
		return ErrEventNotFound
	}
	return nil
}

// CountOlderThan counts events received before the cutoff.
func (s *Store) CountOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM events WHERE received_at < ?;
`, cutoff.UTC().Format(time.RFC3339Nano)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count old events: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes events received before the cutoff and reports how
// many rows went away.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM events WHERE received_at < ?;
`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	return res.RowsAffected()
}

// DeleteIgnoredOlderThan removes ignored events received before the cutoff.
// Ignored events carry no workflow state and age out faster.
func (s *Store) DeleteIgnoredOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM events WHERE status = ? AND received_at < ?;
`, StatusIgnored, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("delete ignored events: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*EventRecord, error) {
	var (
		rec            EventRecord
		sourceEventID  sql.NullString
		correlationID  sql.NullString
		payload        sql.NullString
		headers        sql.NullString
		receivedAtS    string
		processedAtS   sql.NullString
		errorMessage   sql.NullString
		relatedEventID sql.NullString
		approvalState  sql.NullString
		callbackStatus sql.NullString
		callbackAtS    sql.NullString
	)

	err := row.Scan(
		&rec.ID, &rec.EventType, &rec.Source, &sourceEventID, &correlationID, &payload, &headers,
		&rec.Status, &receivedAtS, &processedAtS, &errorMessage, &rec.RetryCount,
		&relatedEventID, &approvalState, &callbackStatus, &callbackAtS,
	)
	if err != nil {
		return nil, err
	}

	if sourceEventID.Valid {
		rec.SourceEventID = sourceEventID.String
	}
	if correlationID.Valid {
		rec.CorrelationID = correlationID.String
	}
	if payload.Valid {
		rec.Payload = []byte(payload.String)
	}
	if headers.Valid && headers.String != "" {
		if err := json.Unmarshal([]byte(headers.String), &rec.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, receivedAtS); err == nil {
		rec.ReceivedAt = t
	}
	if processedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, processedAtS.String); err == nil {
			rec.ProcessedAt = &t
		}
	}
	if errorMessage.Valid {
		rec.ErrorMessage = &errorMessage.String
	}
	if relatedEventID.Valid {
		rec.RelatedEventID = &relatedEventID.String
	}
	if approvalState.Valid {
		rec.ApprovalState = &approvalState.String
	}
	if callbackStatus.Valid {
		rec.CallbackStatus = &callbackStatus.String
	}
	if callbackAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, callbackAtS.String); err == nil {
			rec.CallbackAt = &t
		}
	}
	return &rec, nil
}

// nullable maps "" to NULL so empty identifiers never match an index scan.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
