package wordfilter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"aegis-guardian/internal/modules/modlog"
	"aegis-guardian/internal/platform"
	"aegis-guardian/internal/storage"
)

type Settings interface {
	Get(ctx context.Context, guildID string) (storage.GuildConfig, error)
}

type Recorder interface {
	AppendRecord(ctx context.Context, record storage.ModerationRecord) error
}

type Notifier interface {
	PostLog(ctx context.Context, guildID string, entry modlog.Entry)
}

type Config struct {
	Color int
}

func DefaultConfig() Config {
	return Config{Color: 0x992D22}
}

type Message struct {
	GuildID   string
	ChannelID string
	MessageID string
	AuthorID  string
	BotID     string
	Content   string
}

// Module removes messages containing banned words and records an
// automatic warning against the sender.
type Module struct {
	cfg      Config
	settings Settings
	recorder Recorder
	actions  platform.Actions
	notifier Notifier
	logger   *zap.Logger
	counter  prometheus.Counter
}

func New(cfg Config, settingsCache Settings, recorder Recorder, actions platform.Actions, notifier Notifier, logger *zap.Logger) *Module {
	return &Module{
		cfg:      cfg,
		settings: settingsCache,
		recorder: recorder,
		actions:  actions,
		notifier: notifier,
		logger:   logger,
	}
}

func (m *Module) WithCounter(counter prometheus.Counter) {
	m.counter = counter
}

// Scan returns the first banned word found as a substring of the
// lower-cased text. Substring matching is deliberate: "badly" matches
// a banned "bad". An empty list short-circuits without further work.
func Scan(cfg storage.GuildConfig, loweredText string) (string, bool) {
	if len(cfg.BannedWords) == 0 {
		return "", false
	}
	for _, word := range cfg.BannedWords {
		if strings.Contains(loweredText, word) {
			return word, true
		}
	}
	return "", false
}

// HandleMessage scans one message and, on a match, deletes it, posts a
// short-lived notice, appends an auto-warn record and requests a log
// entry. Returns true when the message matched.
func (m *Module) HandleMessage(ctx context.Context, msg Message) bool {
	cfg, err := m.settings.Get(ctx, msg.GuildID)
	if err != nil {
		m.logger.Warn("word filter settings fetch failed",
			zap.String("guild_id", msg.GuildID),
			zap.Error(err))
		return false
	}

	word, found := Scan(cfg, strings.ToLower(msg.Content))
	if !found {
		return false
	}

	if err := m.actions.DeleteMessage(ctx, msg.ChannelID, msg.MessageID); err != nil {
		m.logger.Warn("banned word delete failed",
			zap.String("guild_id", msg.GuildID),
			zap.String("message_id", msg.MessageID),
			zap.Error(err))
		return true
	}
	if m.counter != nil {
		m.counter.Inc()
	}

	if err := m.actions.SendTimedNotice(ctx, msg.ChannelID,
		"<@"+msg.AuthorID+">, that word is not allowed here.", 5*time.Second); err != nil {
		m.logger.Debug("banned word notice failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}

	record := storage.ModerationRecord{
		GuildID:     msg.GuildID,
		Action:      storage.ActionAutoWarn,
		TargetID:    msg.AuthorID,
		ModeratorID: msg.BotID,
		Reason:      fmt.Sprintf("Automatic detection of blacklisted word: %q", word),
	}
	if err := m.recorder.AppendRecord(ctx, record); err != nil {
		m.logger.Error("auto-warn record append failed",
			zap.String("guild_id", msg.GuildID),
			zap.String("user_id", msg.AuthorID),
			zap.Error(err))
	}

	m.notifier.PostLog(ctx, msg.GuildID, modlog.Entry{
		Action:      "Auto-Warn (Banned Word)",
		ModeratorID: msg.BotID,
		TargetID:    msg.AuthorID,
		Reason:      "Contained the word: `" + word + "`",
		Color:       m.cfg.Color,
	})
	return true
}
