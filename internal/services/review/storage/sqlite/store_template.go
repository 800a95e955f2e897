package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// TemplateStore methods (workflow template catalog)

// PutTemplate creates or replaces a template. Templates referenced by a
// live activity are immutable; edits must create a new template id.
func (s *Store) PutTemplate(ctx context.Context, tpl workflow.Template) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(tpl.ID) == "" {
		return fmt.Errorf("template id is required")
	}
	paramsJSON, err := json.Marshal(tpl.Parameters)
	if err != nil {
		return fmt.Errorf("marshal template parameters: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM templates WHERE id = ?)", tpl.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check template: %w", err)
		}

		if exists {
			var referenced bool
			if err := tx.QueryRowContext(ctx,
				"SELECT EXISTS (SELECT 1 FROM activities WHERE template_id = ?)", tpl.ID,
			).Scan(&referenced); err != nil {
				return fmt.Errorf("check template references: %w", err)
			}
			if referenced {
				return storage.ErrTemplateInUse
			}
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM template_transitions WHERE template_id = ?", tpl.ID,
			); err != nil {
				return fmt.Errorf("clear template transitions: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM template_stages WHERE template_id = ?", tpl.ID,
			); err != nil {
				return fmt.Errorf("clear template stages: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE templates SET activity_type = ?, name = ?, parameters = ? WHERE id = ?",
				string(tpl.ActivityType), tpl.Name, string(paramsJSON), tpl.ID,
			); err != nil {
				return fmt.Errorf("update template: %w", err)
			}
		} else {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO templates (id, activity_type, name, parameters, created_at) VALUES (?, ?, ?, ?, ?)",
				tpl.ID, string(tpl.ActivityType), tpl.Name, string(paramsJSON), toMillis(time.Now()),
			); err != nil {
				return fmt.Errorf("insert template: %w", err)
			}
		}

		for _, st := range tpl.Stages {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO template_stages (template_id, stage_key, position, display_name, deadline_days, is_initial, is_terminal)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				tpl.ID,
				st.Key,
				st.Position,
				st.DisplayName,
				toNullInt(st.DeadlineDays),
				boolToInt(st.IsInitial),
				boolToInt(st.IsTerminal),
			); err != nil {
				return fmt.Errorf("insert template stage %s: %w", st.Key, err)
			}
		}

		for _, tr := range tpl.Transitions {
			condJSON, err := marshalCondition(tr.Condition)
			if err != nil {
				return fmt.Errorf("transition %s: %w", tr.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO template_transitions (template_id, transition_id, from_stage_key, to_stage_key, condition_json, is_automatic, position)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				tpl.ID,
				tr.ID,
				tr.FromStage,
				tr.ToStage,
				condJSON,
				boolToInt(tr.Automatic),
				tr.Position,
			); err != nil {
				return fmt.Errorf("insert template transition %s: %w", tr.ID, err)
			}
		}
		return nil
	})
}

// GetTemplate reassembles a template from its three tables.
func (s *Store) GetTemplate(ctx context.Context, id string) (workflow.Template, error) {
	if err := s.ready(ctx); err != nil {
		return workflow.Template{}, err
	}
	if strings.TrimSpace(id) == "" {
		return workflow.Template{}, fmt.Errorf("template id is required")
	}
	return getTemplate(ctx, s.sqlDB, id)
}

func getTemplate(ctx context.Context, q dbtx, id string) (workflow.Template, error) {
	var tpl workflow.Template
	var activityType string
	var paramsJSON string
	var createdAt int64
	err := q.QueryRowContext(ctx,
		"SELECT id, activity_type, name, parameters, created_at FROM templates WHERE id = ?",
		id,
	).Scan(&tpl.ID, &activityType, &tpl.Name, &paramsJSON, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.Template{}, fmt.Errorf("template %s: %w", id, storage.ErrTemplateNotFound)
		}
		return workflow.Template{}, fmt.Errorf("get template: %w", err)
	}
	tpl.ActivityType = workflow.ActivityType(activityType)
	if err := json.Unmarshal([]byte(paramsJSON), &tpl.Parameters); err != nil {
		return workflow.Template{}, fmt.Errorf("unmarshal template parameters: %w", err)
	}

	stages, err := loadTemplateStages(ctx, q, id)
	if err != nil {
		return workflow.Template{}, err
	}
	tpl.Stages = stages

	transitions, err := loadTemplateTransitions(ctx, q, id)
	if err != nil {
		return workflow.Template{}, err
	}
	tpl.Transitions = transitions
	return tpl, nil
}

func loadTemplateStages(ctx context.Context, q dbtx, templateID string) ([]workflow.Stage, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT stage_key, position, display_name, deadline_days, is_initial, is_terminal
		 FROM template_stages WHERE template_id = ? ORDER BY position, stage_key`,
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("query template stages: %w", err)
	}
	defer rows.Close()

	var stages []workflow.Stage
	for rows.Next() {
		var st workflow.Stage
		var deadline sql.NullInt64
		var initial, terminal int
		if err := rows.Scan(&st.Key, &st.Position, &st.DisplayName, &deadline, &initial, &terminal); err != nil {
			return nil, fmt.Errorf("scan template stage: %w", err)
		}
		st.DeadlineDays = fromNullInt(deadline)
		st.IsInitial = initial != 0
		st.IsTerminal = terminal != 0
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template stages: %w", err)
	}
	return stages, nil
}

func loadTemplateTransitions(ctx context.Context, q dbtx, templateID string) ([]workflow.Transition, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT transition_id, from_stage_key, to_stage_key, condition_json, is_automatic, position
		 FROM template_transitions WHERE template_id = ? ORDER BY position, transition_id`,
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("query template transitions: %w", err)
	}
	defer rows.Close()

	var transitions []workflow.Transition
	for rows.Next() {
		var tr workflow.Transition
		var condJSON sql.NullString
		var automatic int
		if err := rows.Scan(&tr.ID, &tr.FromStage, &tr.ToStage, &condJSON, &automatic, &tr.Position); err != nil {
			return nil, fmt.Errorf("scan template transition: %w", err)
		}
		cond, err := unmarshalCondition(condJSON)
		if err != nil {
			return nil, fmt.Errorf("transition %s: %w", tr.ID, err)
		}
		tr.Condition = cond
		tr.Automatic = automatic != 0
		transitions = append(transitions, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template transitions: %w", err)
	}
	return transitions, nil
}

// ListTemplates returns templates, optionally filtered by activity type,
// ordered by name.
func (s *Store) ListTemplates(ctx context.Context, activityType workflow.ActivityType) ([]workflow.Template, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query := "SELECT id FROM templates ORDER BY name, id"
	params := []any{}
	if activityType != "" {
		query = "SELECT id FROM templates WHERE activity_type = ? ORDER BY name, id"
		params = append(params, string(activityType))
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan template id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	templates := make([]workflow.Template, 0, len(ids))
	for _, id := range ids {
		tpl, err := getTemplate(ctx, s.sqlDB, id)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, nil
}

func marshalCondition(cond *workflow.Condition) (sql.NullString, error) {
	if cond == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(cond)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal condition: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func unmarshalCondition(raw sql.NullString) (*workflow.Condition, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, nil
	}
	var cond workflow.Condition
	if err := json.Unmarshal([]byte(raw.String), &cond); err != nil {
		return nil, fmt.Errorf("unmarshal condition: %w", err)
	}
	return &cond, nil
}

func toNullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func fromNullInt(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
