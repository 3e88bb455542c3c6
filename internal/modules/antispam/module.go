package antispam

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"aegis-guardian/internal/durations"
	"aegis-guardian/internal/modules/modlog"
	"aegis-guardian/internal/platform"
)

type Notifier interface {
	PostLog(ctx context.Context, guildID string, entry modlog.Entry)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	Threshold    int           // messages inside one window that trigger a mute
	Window       time.Duration // counter resets when messages are farther apart
	MuteDuration string        // compact form, e.g. "5m"
	Color        int
}

func DefaultConfig() Config {
	return Config{Threshold: 5, Window: 3 * time.Second, MuteDuration: "5m", Color: 0x9B59B6}
}

type Message struct {
	GuildID   string
	ChannelID string
	MessageID string
	AuthorID  string
}

type state struct {
	count       int
	windowStart time.Time
}

// Module tracks per-user message bursts with a counter-with-timeout.
// It is not a sliding window: a burst straddling a window boundary at
// low rate is not flagged. That keeps the check O(1) per message with
// no background timers.
type Module struct {
	mu           sync.Mutex
	states       map[string]*state
	cfg          Config
	muteDuration time.Duration
	clock        Clock
	actions      platform.Actions
	notifier     Notifier
	logger       *zap.Logger
	muteCounter  prometheus.Counter
}

func New(cfg Config, actions platform.Actions, notifier Notifier, logger *zap.Logger) *Module {
	muteDuration, err := durations.Parse(cfg.MuteDuration)
	if err != nil {
		muteDuration = 5 * time.Minute
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 3 * time.Second
	}
	return &Module{
		states:       make(map[string]*state),
		cfg:          cfg,
		muteDuration: muteDuration,
		clock:        realClock{},
		actions:      actions,
		notifier:     notifier,
		logger:       logger,
	}
}

func (m *Module) WithClock(clock Clock) {
	m.clock = clock
}

func (m *Module) WithCounter(counter prometheus.Counter) {
	m.muteCounter = counter
}

// HandleMessage records one message and returns true when it triggered
// the spam response. Callers stop further automod processing for a
// triggering message.
func (m *Module) HandleMessage(ctx context.Context, msg Message) bool {
	key := msg.GuildID + ":" + msg.AuthorID
	now := m.clock.Now()

	m.mu.Lock()
	item := m.states[key]
	if item == nil || now.Sub(item.windowStart) > m.cfg.Window {
		item = &state{count: 1, windowStart: now}
		m.states[key] = item
	} else {
		item.count++
	}
	if item.count < m.cfg.Threshold {
		m.mu.Unlock()
		return false
	}
	// Clear before acting so a failed mute cannot re-trigger on every
	// following message.
	delete(m.states, key)
	m.mu.Unlock()

	m.applyMute(ctx, msg)
	return true
}

func (m *Module) applyMute(ctx context.Context, msg Message) {
	status, err := m.actions.MemberStatus(ctx, msg.GuildID, msg.AuthorID)
	if err != nil {
		m.logger.Warn("spam mute status check failed",
			zap.String("guild_id", msg.GuildID),
			zap.String("user_id", msg.AuthorID),
			zap.Error(err))
		return
	}
	if status.Muted || !status.Moderatable {
		m.logger.Debug("spam mute skipped",
			zap.String("guild_id", msg.GuildID),
			zap.String("user_id", msg.AuthorID),
			zap.Bool("muted", status.Muted),
			zap.Bool("moderatable", status.Moderatable))
		return
	}

	if err := m.actions.TimeoutMember(ctx, msg.GuildID, msg.AuthorID, m.muteDuration, "Automatic spam detection."); err != nil {
		m.logger.Warn("spam mute failed",
			zap.String("guild_id", msg.GuildID),
			zap.String("user_id", msg.AuthorID),
			zap.Error(err))
		return
	}
	if m.muteCounter != nil {
		m.muteCounter.Inc()
	}

	if err := m.actions.SendTimedNotice(ctx, msg.ChannelID,
		"<@"+msg.AuthorID+"> has been automatically muted for spamming.", 5*time.Second); err != nil {
		m.logger.Debug("spam notice failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}

	m.notifier.PostLog(ctx, msg.GuildID, modlog.Entry{
		Action:   "Auto-Mute (Spam)",
		TargetID: msg.AuthorID,
		Reason:   "User sent messages too quickly.",
		Duration: m.cfg.MuteDuration,
		Color:    m.cfg.Color,
	})
}
