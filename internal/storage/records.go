package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ActionType tags a moderation record. Escalation dispatch switches
// over this type, so every punitive action has exactly one tag.
type ActionType string

const (
	ActionWarn     ActionType = "warn"
	ActionAutoWarn ActionType = "auto-warn"
	ActionMute     ActionType = "mute"
	ActionKick     ActionType = "kick"
	ActionBan      ActionType = "ban"
	ActionUnmute   ActionType = "unmute"
)

// WarnActions are the record types that count toward a user's
// effective warning total.
var WarnActions = []ActionType{ActionWarn, ActionAutoWarn}

// ModerationRecord is one append-only entry in a guild's moderation
// history. CreatedAt and Action are immutable after the append; only
// the reason of a warn record may be edited afterwards.
type ModerationRecord struct {
	ID          int64
	GuildID     string
	Action      ActionType
	TargetID    string
	ModeratorID string
	Reason      string
	Duration    string
	CreatedAt   time.Time
	EditedAt    *time.Time
	EditedBy    string
}

// AppendRecord durably appends a moderation record. The timestamp is
// assigned here at write time; append order is chronological order.
func (s *Store) AppendRecord(ctx context.Context, record ModerationRecord) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_records (guild_id, action, target_id, moderator_id, reason, duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.GuildID, string(record.Action), record.TargetID, record.ModeratorID,
		record.Reason, record.Duration, createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("append moderation record: %w", err)
	}
	return nil
}

// RecordsByTarget returns a target's moderation records, most recent
// first. An empty action filter returns every record type.
func (s *Store) RecordsByTarget(ctx context.Context, guildID, targetID string, actionFilter ...ActionType) ([]ModerationRecord, error) {
	query := `
		SELECT id, guild_id, action, target_id, moderator_id, reason, duration, created_at, edited_at, COALESCE(edited_by, '')
		FROM moderation_records
		WHERE guild_id = ? AND target_id = ?`
	args := []any{guildID, targetID}

	if len(actionFilter) > 0 {
		placeholders := make([]string, 0, len(actionFilter))
		for _, action := range actionFilter {
			placeholders = append(placeholders, "?")
			args = append(args, string(action))
		}
		query += ` AND action IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query moderation records: %w", err)
	}
	defer rows.Close()

	var records []ModerationRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CountWarnings returns the target's effective warning count: records
// with action warn or auto-warn. Records are never deleted, so this is
// a lifetime total.
func (s *Store) CountWarnings(ctx context.Context, guildID, targetID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM moderation_records
		WHERE guild_id = ? AND target_id = ? AND action IN (?, ?)
	`, guildID, targetID, string(ActionWarn), string(ActionAutoWarn))

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count warnings: %w", err)
	}
	return count, nil
}

// EditWarnReason updates the reason of a warn record addressed by its
// 1-based case number within the target's newest-first warn list. It
// stamps edited_at and edited_by; created_at and action are untouched.
func (s *Store) EditWarnReason(ctx context.Context, guildID, targetID string, caseNumber int, newReason, editorID string) (ModerationRecord, error) {
	if caseNumber < 1 {
		return ModerationRecord{}, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id FROM moderation_records
		WHERE guild_id = ? AND target_id = ? AND action = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1 OFFSET ?
	`, guildID, targetID, string(ActionWarn), caseNumber-1)

	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ModerationRecord{}, ErrNotFound
		}
		return ModerationRecord{}, fmt.Errorf("locate warn record: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE moderation_records SET reason = ?, edited_at = ?, edited_by = ?
		WHERE id = ?
	`, newReason, time.Now().UnixMilli(), editorID, id)
	if err != nil {
		return ModerationRecord{}, fmt.Errorf("edit warn record: %w", err)
	}

	return s.recordByID(ctx, id)
}

func (s *Store) recordByID(ctx context.Context, id int64) (ModerationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guild_id, action, target_id, moderator_id, reason, duration, created_at, edited_at, COALESCE(edited_by, '')
		FROM moderation_records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ModerationRecord{}, ErrNotFound
		}
		return ModerationRecord{}, err
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ModerationRecord, error) {
	var record ModerationRecord
	var action string
	var createdAt int64
	var editedAt sql.NullInt64
	err := row.Scan(&record.ID, &record.GuildID, &action, &record.TargetID,
		&record.ModeratorID, &record.Reason, &record.Duration, &createdAt, &editedAt, &record.EditedBy)
	if err != nil {
		return ModerationRecord{}, err
	}
	record.Action = ActionType(action)
	record.CreatedAt = time.UnixMilli(createdAt)
	if editedAt.Valid {
		value := time.UnixMilli(editedAt.Int64)
		record.EditedAt = &value
	}
	return record, nil
}
