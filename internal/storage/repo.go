package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"voxpost/internal/profile"
)

var ErrNotFound = errors.New("not found")

// InsertTranscription appends one history record. ProcessedText stays NULL
// when the pipeline returned the raw text.
func (s *Store) InsertTranscription(ctx context.Context, t Transcription) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	q := s.sql.Insert("transcriptions").
		Columns("raw_text", "processed_text", "profile_id", "model", "created_at").
		Values(t.RawText, t.ProcessedText, t.ProfileID, t.Model, createdAt)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert transcription query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert transcription: %w", err)
	}
	return nil
}

// RecentTranscriptions returns up to limit history records, newest first.
func (s *Store) RecentTranscriptions(ctx context.Context, limit int) ([]Transcription, error) {
	if limit < 1 {
		limit = 20
	}
	q := s.sql.Select("id", "raw_text", "processed_text", "profile_id", "model", "created_at").
		From("transcriptions").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit))

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent transcriptions query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent transcriptions: %w", err)
	}
	defer rows.Close()

	out := make([]Transcription, 0, limit)
	for rows.Next() {
		var t Transcription
		var processed sql.NullString
		if err := rows.Scan(&t.ID, &t.RawText, &processed, &t.ProfileID, &t.Model, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		if processed.Valid {
			t.ProcessedText = &processed.String
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertCustomProfile persists a validated custom profile by id.
func (s *Store) UpsertCustomProfile(ctx context.Context, p profile.Profile) error {
	now := time.Now().UTC()
	createdAt := now
	if p.CreatedAt != nil {
		createdAt = *p.CreatedAt
	}
	updatedAt := now
	if p.UpdatedAt != nil {
		updatedAt = *p.UpdatedAt
	}

	q := s.sql.Insert("custom_profiles").
		Columns("id", "name", "description", "system_prompt", "user_prompt_template",
			"timeout_seconds", "streaming", "temperature", "top_p", "created_at", "updated_at").
		Values(p.ID, p.Name, p.Description, p.SystemPrompt, p.UserPromptTemplate,
			p.TimeoutSeconds, p.Streaming, p.Temperature, p.TopP, createdAt, updatedAt).
		Suffix("ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description, system_prompt=excluded.system_prompt, user_prompt_template=excluded.user_prompt_template, timeout_seconds=excluded.timeout_seconds, streaming=excluded.streaming, temperature=excluded.temperature, top_p=excluded.top_p, updated_at=excluded.updated_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build upsert profile query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *Store) DeleteCustomProfile(ctx context.Context, id string) error {
	q := s.sql.Delete("custom_profiles").Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete profile query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListCustomProfiles(ctx context.Context) ([]profile.Profile, error) {
	q := s.sql.Select("id", "name", "description", "system_prompt", "user_prompt_template",
		"timeout_seconds", "streaming", "temperature", "top_p", "created_at", "updated_at").
		From("custom_profiles").
		OrderBy("id ASC")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list profiles query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []profile.Profile
	for rows.Next() {
		var p profile.Profile
		var timeoutSeconds sql.NullInt64
		var streaming sql.NullBool
		var temperature, topP sql.NullFloat64
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.SystemPrompt, &p.UserPromptTemplate,
			&timeoutSeconds, &streaming, &temperature, &topP, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		if timeoutSeconds.Valid {
			v := int(timeoutSeconds.Int64)
			p.TimeoutSeconds = &v
		}
		if streaming.Valid {
			v := streaming.Bool
			p.Streaming = &v
		}
		if temperature.Valid {
			v := temperature.Float64
			p.Temperature = &v
		}
		if topP.Valid {
			v := topP.Float64
			p.TopP = &v
		}
		p.CreatedAt = &createdAt
		p.UpdatedAt = &updatedAt
		out = append(out, p)
	}
	return out, rows.Err()
}
