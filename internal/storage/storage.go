package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a record addressed by the caller does
// not exist (e.g. a warn case number past the end of the list).
var ErrNotFound = errors.New("record not found")

type Store struct {
	db *sql.DB
}

// GuildConfig is the per-guild moderation configuration as read by the
// automod engines. Banned words are stored lower-cased; escalation
// rules are keyed by the exact warning count that triggers them.
type GuildConfig struct {
	GuildID            string
	LogChannelID       string
	AutoRoleID         string
	VerificationRoleID string
	BannedWords        []string
	EscalationRules    map[int]EscalationRule
}

type EscalationRule struct {
	Action   ActionType
	Duration string
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// GetGuildConfig loads a guild's settings, banned words and escalation
// rules in one projection. A guild with no stored rows yields a zero
// config, not an error.
func (s *Store) GetGuildConfig(ctx context.Context, guildID string) (GuildConfig, error) {
	cfg := GuildConfig{
		GuildID:         guildID,
		EscalationRules: make(map[int]EscalationRule),
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT log_channel_id, auto_role_id, verification_role_id
		FROM guild_settings WHERE guild_id = ?`, guildID)
	err := row.Scan(&cfg.LogChannelID, &cfg.AutoRoleID, &cfg.VerificationRoleID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return GuildConfig{}, fmt.Errorf("guild settings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT word FROM banned_words WHERE guild_id = ?`, guildID)
	if err != nil {
		return GuildConfig{}, fmt.Errorf("banned words: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var word string
		if err := rows.Scan(&word); err != nil {
			return GuildConfig{}, err
		}
		cfg.BannedWords = append(cfg.BannedWords, word)
	}
	if err := rows.Err(); err != nil {
		return GuildConfig{}, err
	}

	ruleRows, err := s.db.QueryContext(ctx, `
		SELECT warn_count, action, COALESCE(duration, '')
		FROM escalation_rules WHERE guild_id = ?`, guildID)
	if err != nil {
		return GuildConfig{}, fmt.Errorf("escalation rules: %w", err)
	}
	defer ruleRows.Close()
	for ruleRows.Next() {
		var count int
		var action, duration string
		if err := ruleRows.Scan(&count, &action, &duration); err != nil {
			return GuildConfig{}, err
		}
		cfg.EscalationRules[count] = EscalationRule{Action: ActionType(action), Duration: duration}
	}
	return cfg, ruleRows.Err()
}

func (s *Store) SetLogChannel(ctx context.Context, guildID, channelID string) error {
	return s.upsertSetting(ctx, guildID, "log_channel_id", channelID)
}

func (s *Store) SetAutoRole(ctx context.Context, guildID, roleID string) error {
	return s.upsertSetting(ctx, guildID, "auto_role_id", roleID)
}

func (s *Store) SetVerificationRole(ctx context.Context, guildID, roleID string) error {
	return s.upsertSetting(ctx, guildID, "verification_role_id", roleID)
}

func (s *Store) upsertSetting(ctx context.Context, guildID, column, value string) error {
	query := fmt.Sprintf(`
		INSERT INTO guild_settings (guild_id, %s) VALUES (?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET %s = excluded.%s`, column, column, column)
	_, err := s.db.ExecContext(ctx, query, guildID, value)
	return err
}

func (s *Store) AddBannedWord(ctx context.Context, guildID, word string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO banned_words (guild_id, word) VALUES (?, ?)`,
		guildID, strings.ToLower(word))
	return err
}

func (s *Store) RemoveBannedWord(ctx context.Context, guildID, word string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM banned_words WHERE guild_id = ? AND word = ?`,
		guildID, strings.ToLower(word))
	return err
}

func (s *Store) ListBannedWords(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT word FROM banned_words WHERE guild_id = ? ORDER BY word`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var word string
		if err := rows.Scan(&word); err != nil {
			return nil, err
		}
		words = append(words, word)
	}
	return words, rows.Err()
}

func (s *Store) UpsertEscalationRule(ctx context.Context, guildID string, warnCount int, rule EscalationRule) error {
	var duration any
	if rule.Action == ActionMute && rule.Duration != "" {
		duration = rule.Duration
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO escalation_rules (guild_id, warn_count, action, duration)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id, warn_count) DO UPDATE SET
			action = excluded.action,
			duration = excluded.duration
	`, guildID, warnCount, string(rule.Action), duration)
	return err
}

func (s *Store) RemoveEscalationRule(ctx context.Context, guildID string, warnCount int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM escalation_rules WHERE guild_id = ? AND warn_count = ?`,
		guildID, warnCount)
	return err
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
