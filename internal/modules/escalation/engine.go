package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"aegis-guardian/internal/durations"
	"aegis-guardian/internal/modules/modlog"
	"aegis-guardian/internal/platform"
	"aegis-guardian/internal/storage"
)

type Settings interface {
	Get(ctx context.Context, guildID string) (storage.GuildConfig, error)
}

type Recorder interface {
	AppendRecord(ctx context.Context, record storage.ModerationRecord) error
	CountWarnings(ctx context.Context, guildID, targetID string) (int, error)
}

type Notifier interface {
	PostLog(ctx context.Context, guildID string, entry modlog.Entry)
	DirectMessage(ctx context.Context, userID, text string)
}

type Config struct {
	DefaultMuteDuration string // applied when a mute rule has no usable duration
	Color               int
}

func DefaultConfig() Config {
	return Config{DefaultMuteDuration: "1h", Color: 0xF59E0B}
}

// Engine applies the automatic action configured for a user's exact
// cumulative warning count. A rule registered at 3 fires on the 3rd
// warning only, never at 2 or 4.
type Engine struct {
	cfg      Config
	settings Settings
	recorder Recorder
	actions  platform.Actions
	notifier Notifier
	logger   *zap.Logger
	counter  *prometheus.CounterVec
}

func New(cfg Config, settingsCache Settings, recorder Recorder, actions platform.Actions, notifier Notifier, logger *zap.Logger) *Engine {
	if cfg.DefaultMuteDuration == "" {
		cfg.DefaultMuteDuration = "1h"
	}
	return &Engine{
		cfg:      cfg,
		settings: settingsCache,
		recorder: recorder,
		actions:  actions,
		notifier: notifier,
		logger:   logger,
	}
}

func (e *Engine) WithCounter(counter *prometheus.CounterVec) {
	e.counter = counter
}

// CheckAndApply is invoked after a manual warning has been durably
// appended, so the count it reads includes that warning. Errors are
// non-fatal follow-up notices for the invoking context; the warning
// that triggered the check is never rolled back.
func (e *Engine) CheckAndApply(ctx context.Context, guildID, targetID, botID string) error {
	config, err := e.settings.Get(ctx, guildID)
	if err != nil {
		return fmt.Errorf("escalation config: %w", err)
	}
	if len(config.EscalationRules) == 0 {
		return nil
	}

	count, err := e.recorder.CountWarnings(ctx, guildID, targetID)
	if err != nil {
		return fmt.Errorf("escalation warning count: %w", err)
	}

	rule, ok := config.EscalationRules[count]
	if !ok {
		return nil
	}

	reason := fmt.Sprintf("Automatic action for reaching %d warnings.", count)
	e.logger.Info("escalation rule matched",
		zap.String("guild_id", guildID),
		zap.String("target_id", targetID),
		zap.Int("warnings", count),
		zap.String("action", string(rule.Action)))

	switch rule.Action {
	case storage.ActionMute:
		return e.applyMute(ctx, guildID, targetID, botID, rule, reason)
	case storage.ActionKick:
		return e.applyKick(ctx, guildID, targetID, botID, reason)
	case storage.ActionBan:
		return e.applyBan(ctx, guildID, targetID, botID, reason)
	default:
		e.logger.Warn("unknown escalation action",
			zap.String("guild_id", guildID),
			zap.String("action", string(rule.Action)))
		return nil
	}
}

func (e *Engine) applyMute(ctx context.Context, guildID, targetID, botID string, rule storage.EscalationRule, reason string) error {
	durationText := rule.Duration
	duration, err := durations.Parse(durationText)
	if err != nil {
		durationText = e.cfg.DefaultMuteDuration
		duration, err = durations.Parse(durationText)
		if err != nil {
			duration = time.Hour
			durationText = "1h"
		}
	}

	status, err := e.actions.MemberStatus(ctx, guildID, targetID)
	if err != nil {
		return fmt.Errorf("escalation mute status: %w", err)
	}
	if status.Muted || !status.Moderatable {
		e.logger.Info("escalation mute skipped",
			zap.String("guild_id", guildID),
			zap.String("target_id", targetID),
			zap.Bool("muted", status.Muted),
			zap.Bool("moderatable", status.Moderatable))
		return nil
	}

	if err := e.actions.TimeoutMember(ctx, guildID, targetID, duration, reason); err != nil {
		return fmt.Errorf("escalation mute: %w", err)
	}
	e.record(ctx, guildID, targetID, botID, storage.ActionMute, reason, durationText)
	e.notify(ctx, guildID, targetID, botID, "Auto-Mute (Escalation)", reason, durationText)
	e.notifier.DirectMessage(ctx, targetID, fmt.Sprintf("You have been automatically muted for %s. %s", durationText, reason))
	e.count("mute")
	return nil
}

func (e *Engine) applyKick(ctx context.Context, guildID, targetID, botID, reason string) error {
	status, err := e.actions.MemberStatus(ctx, guildID, targetID)
	if err != nil {
		return fmt.Errorf("escalation kick status: %w", err)
	}
	if !status.Kickable {
		e.logger.Info("escalation kick skipped",
			zap.String("guild_id", guildID),
			zap.String("target_id", targetID))
		return nil
	}

	// DM before the kick; afterwards the user shares no guild with the
	// bot and the message cannot be delivered.
	e.notifier.DirectMessage(ctx, targetID, "You have been automatically kicked. "+reason)
	if err := e.actions.KickMember(ctx, guildID, targetID, reason); err != nil {
		return fmt.Errorf("escalation kick: %w", err)
	}
	e.record(ctx, guildID, targetID, botID, storage.ActionKick, reason, "")
	e.notify(ctx, guildID, targetID, botID, "Auto-Kick (Escalation)", reason, "")
	e.count("kick")
	return nil
}

func (e *Engine) applyBan(ctx context.Context, guildID, targetID, botID, reason string) error {
	status, err := e.actions.MemberStatus(ctx, guildID, targetID)
	if err != nil {
		return fmt.Errorf("escalation ban status: %w", err)
	}
	if !status.Bannable {
		e.logger.Info("escalation ban skipped",
			zap.String("guild_id", guildID),
			zap.String("target_id", targetID))
		return nil
	}

	e.notifier.DirectMessage(ctx, targetID, "You have been automatically banned. "+reason)
	if err := e.actions.BanMember(ctx, guildID, targetID, reason); err != nil {
		return fmt.Errorf("escalation ban: %w", err)
	}
	e.record(ctx, guildID, targetID, botID, storage.ActionBan, reason, "")
	e.notify(ctx, guildID, targetID, botID, "Auto-Ban (Escalation)", reason, "")
	e.count("ban")
	return nil
}

func (e *Engine) record(ctx context.Context, guildID, targetID, botID string, action storage.ActionType, reason, duration string) {
	record := storage.ModerationRecord{
		GuildID:     guildID,
		Action:      action,
		TargetID:    targetID,
		ModeratorID: botID,
		Reason:      reason,
		Duration:    duration,
	}
	if err := e.recorder.AppendRecord(ctx, record); err != nil {
		e.logger.Error("escalation record append failed",
			zap.String("guild_id", guildID),
			zap.String("target_id", targetID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func (e *Engine) notify(ctx context.Context, guildID, targetID, botID, action, reason, duration string) {
	e.notifier.PostLog(ctx, guildID, modlog.Entry{
		Action:      action,
		ModeratorID: botID,
		TargetID:    targetID,
		Reason:      reason,
		Duration:    duration,
		Color:       e.cfg.Color,
	})
}

func (e *Engine) count(action string) {
	if e.counter != nil {
		e.counter.WithLabelValues(action).Inc()
	}
}
