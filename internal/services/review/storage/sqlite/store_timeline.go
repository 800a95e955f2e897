package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rodrigolearns/paperstacks/internal/platform/pagination"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// TimelineStore methods (append-only activity audit log)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

const timelineColumns = "id, activity_id, seq, event_type, from_stage, to_stage, actor_id, payload, created_at"

// appendEventTx assigns the next per-activity sequence number and writes
// the event inside the caller's transaction. Every mutating store method
// records its outcome through this helper so the audit log and the state
// change commit together.
func appendEventTx(ctx context.Context, tx *sql.Tx, evt storage.TimelineEvent) (storage.TimelineEvent, error) {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO timeline_seq (activity_id, next_seq) VALUES (?, 1) ON CONFLICT (activity_id) DO NOTHING",
		evt.ActivityID,
	); err != nil {
		return storage.TimelineEvent{}, fmt.Errorf("init timeline seq: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT next_seq FROM timeline_seq WHERE activity_id = ?",
		evt.ActivityID,
	).Scan(&seq); err != nil {
		return storage.TimelineEvent{}, fmt.Errorf("get timeline seq: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE timeline_seq SET next_seq = next_seq + 1 WHERE activity_id = ?",
		evt.ActivityID,
	); err != nil {
		return storage.TimelineEvent{}, fmt.Errorf("increment timeline seq: %w", err)
	}

	evt.Seq = seq
	if strings.TrimSpace(evt.Payload) == "" {
		evt.Payload = "{}"
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO timeline_events (activity_id, seq, event_type, from_stage, to_stage, actor_id, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.ActivityID,
		evt.Seq,
		evt.EventType,
		evt.FromStage,
		evt.ToStage,
		toNullInt64(evt.ActorID),
		evt.Payload,
		toMillis(evt.CreatedAt),
	)
	if err != nil {
		return storage.TimelineEvent{}, fmt.Errorf("append timeline event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storage.TimelineEvent{}, fmt.Errorf("timeline event id: %w", err)
	}
	evt.ID = id
	return evt, nil
}

// eventPayload renders timeline payload fields as JSON.
func eventPayload(fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal event payload: %w", err)
	}
	return string(raw), nil
}

// ListTimeline returns a page of an activity's events by seq keyset.
// AfterSeq is the last sequence of the previous page in the traversal
// direction; zero starts from the beginning (or the end when descending).
func (s *Store) ListTimeline(ctx context.Context, req storage.ListTimelineRequest) (storage.ListTimelineResult, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ListTimelineResult{}, err
	}
	if strings.TrimSpace(req.ActivityID) == "" {
		return storage.ListTimelineResult{}, fmt.Errorf("activity id is required")
	}
	pageSize := clampPageSize(req.PageSize)

	where := "activity_id = ?"
	params := []any{req.ActivityID}
	if req.AfterSeq > 0 {
		if req.Descending {
			where += " AND seq < ?"
		} else {
			where += " AND seq > ?"
		}
		params = append(params, req.AfterSeq)
	}
	if strings.TrimSpace(req.FilterClause) != "" {
		where += " AND (" + req.FilterClause + ")"
		params = append(params, req.FilterParams...)
	}

	order := "seq ASC"
	if req.Descending {
		order = "seq DESC"
	}

	query := fmt.Sprintf(
		"SELECT %s FROM timeline_events WHERE %s ORDER BY %s LIMIT ?",
		timelineColumns, where, order,
	)
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return storage.ListTimelineResult{}, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	events := make([]storage.TimelineEvent, 0, pageSize)
	for rows.Next() {
		evt, err := scanTimelineEvent(rows.Scan)
		if err != nil {
			return storage.ListTimelineResult{}, fmt.Errorf("scan timeline event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return storage.ListTimelineResult{}, fmt.Errorf("iterate timeline: %w", err)
	}

	hasMore := len(events) > pageSize
	if hasMore {
		events = events[:pageSize]
	}
	return storage.ListTimelineResult{Events: events, HasMore: hasMore}, nil
}

func scanTimelineEvent(scan func(dest ...any) error) (storage.TimelineEvent, error) {
	var evt storage.TimelineEvent
	var actor sql.NullInt64
	var createdAt int64
	if err := scan(
		&evt.ID,
		&evt.ActivityID,
		&evt.Seq,
		&evt.EventType,
		&evt.FromStage,
		&evt.ToStage,
		&actor,
		&evt.Payload,
		&createdAt,
	); err != nil {
		return storage.TimelineEvent{}, err
	}
	evt.ActorID = fromNullInt64(actor)
	evt.CreatedAt = fromMillis(createdAt)
	return evt, nil
}

func clampPageSize(size int) int {
	return pagination.ClampPageSize(size, pagination.PageSizeConfig{Default: defaultPageSize, Max: maxPageSize})
}
