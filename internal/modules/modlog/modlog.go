// Package modlog delivers moderation notifications: an embed to the
// guild's configured log channel and, on request, a DM to the affected
// user. Every delivery is best-effort; failures are logged and
// discarded so they never block the action that triggered them.
package modlog

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"aegis-guardian/internal/settings"
)

type Entry struct {
	Action      string
	ModeratorID string
	TargetID    string
	Reason      string
	Duration    string
	Color       int
}

type Notifier struct {
	session  *discordgo.Session
	settings *settings.Cache
	logger   *zap.Logger
}

func NewNotifier(session *discordgo.Session, settingsCache *settings.Cache, logger *zap.Logger) *Notifier {
	return &Notifier{session: session, settings: settingsCache, logger: logger}
}

// PostLog sends a moderation log embed to the guild's log channel. A
// guild without a configured channel is a silent no-op.
func (n *Notifier) PostLog(ctx context.Context, guildID string, entry Entry) {
	config, err := n.settings.Get(ctx, guildID)
	if err != nil {
		n.logger.Warn("modlog settings fetch failed", zap.String("guild_id", guildID), zap.Error(err))
		return
	}
	if config.LogChannelID == "" {
		return
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Target User", Value: fmt.Sprintf("<@%s> (%s)", entry.TargetID, entry.TargetID), Inline: true},
		{Name: "Moderator", Value: fmt.Sprintf("<@%s> (%s)", entry.ModeratorID, entry.ModeratorID), Inline: true},
	}
	if entry.Reason != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Reason", Value: entry.Reason})
	}
	if entry.Duration != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Duration", Value: entry.Duration, Inline: true})
	}

	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{Name: "Moderation Log"},
		Title:  "Action: " + entry.Action,
		Color:  entry.Color,
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{Text: "Aegis Guardian"},
	}

	if _, err := n.session.ChannelMessageSendEmbed(config.LogChannelID, embed); err != nil {
		n.logger.Warn("modlog post failed",
			zap.String("guild_id", guildID),
			zap.String("channel_id", config.LogChannelID),
			zap.Error(err))
	}
}

// DirectMessage attempts to DM a user. Users with closed DMs are
// common; the failure is logged at debug and dropped.
func (n *Notifier) DirectMessage(ctx context.Context, userID, text string) {
	_ = ctx
	channel, err := n.session.UserChannelCreate(userID)
	if err != nil {
		n.logger.Debug("dm channel open failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if _, err := n.session.ChannelMessageSend(channel.ID, text); err != nil {
		n.logger.Debug("dm send failed", zap.String("user_id", userID), zap.Error(err))
	}
}
