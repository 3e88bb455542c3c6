package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"aegis-guardian/internal/durations"
	"aegis-guardian/internal/modules/modlog"
	"aegis-guardian/internal/storage"
)

// Discord rejects timeouts longer than 28 days.
const maxTimeout = 28 * 24 * time.Hour

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command can only be used in a server.", true)
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "warn":
		b.handleWarn(ctx, session, interaction, data.Options)
	case "editwarn":
		b.handleEditWarn(ctx, session, interaction, data.Options)
	case "modhistory":
		b.handleModHistory(ctx, session, interaction, data.Options)
	case "mute":
		b.handleMute(ctx, session, interaction, data.Options)
	case "unmute":
		b.handleUnmute(ctx, session, interaction, data.Options)
	case "kick":
		b.handleKick(ctx, session, interaction, data.Options)
	case "ban":
		b.handleBan(ctx, session, interaction, data.Options)
	case "settings":
		b.handleSettings(ctx, session, interaction, data.Options)
	}
}

func (b *Bot) handleWarn(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "target", session)
	if target == nil {
		b.respond(session, interaction, "That user isn't in this server.", true)
		return
	}
	reason := stringOption(opts, "reason")
	moderatorID := interactionUserID(interaction)

	b.notifier.DirectMessage(ctx, target.ID,
		fmt.Sprintf("You have received a warning for the following reason: %s", reason))

	record := storage.ModerationRecord{
		GuildID:     interaction.GuildID,
		Action:      storage.ActionWarn,
		TargetID:    target.ID,
		ModeratorID: moderatorID,
		Reason:      reason,
	}
	if err := b.store.AppendRecord(ctx, record); err != nil {
		b.logger.Error("warn record append failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "An unexpected error occurred while trying to issue the warning.", true)
		return
	}
	b.metrics.RecordAppends.Inc()

	b.respond(session, interaction,
		fmt.Sprintf("**%s** has been warned for: %s", target.Username, reason), false)

	b.notifier.PostLog(ctx, interaction.GuildID, modlog.Entry{
		Action:      "Warn",
		ModeratorID: moderatorID,
		TargetID:    target.ID,
		Reason:      reason,
		Color:       b.cfg.Embeds.Warning,
	})

	if err := b.OnWarningIssued(ctx, interaction.GuildID, target.ID); err != nil {
		b.logger.Warn("escalation check failed",
			zap.String("guild_id", interaction.GuildID),
			zap.String("target_id", target.ID),
			zap.Error(err))
		b.followUp(session, interaction, "Warning recorded, but the automatic follow-up action could not be applied.")
	}
}

func (b *Bot) handleEditWarn(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "target", session)
	if target == nil {
		b.respond(session, interaction, "That user isn't in this server.", true)
		return
	}
	caseNumber := int(intOption(opts, "case"))
	newReason := stringOption(opts, "new_reason")
	moderatorID := interactionUserID(interaction)

	updated, err := b.store.EditWarnReason(ctx, interaction.GuildID, target.ID, caseNumber, newReason, moderatorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.respond(session, interaction,
				fmt.Sprintf("Invalid case number. **%s** does not have that many warnings.", target.Username), true)
			return
		}
		b.logger.Error("warn edit failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "An error occurred while trying to edit the warning.", true)
		return
	}

	b.respond(session, interaction,
		fmt.Sprintf("Successfully edited Case #%d for **%s**.\n> **New Reason:** %q", caseNumber, target.Username, updated.Reason), true)

	b.notifier.PostLog(ctx, interaction.GuildID, modlog.Entry{
		Action:      "Warning Edit",
		ModeratorID: moderatorID,
		TargetID:    target.ID,
		Reason:      fmt.Sprintf("Case #%d edited.\n**New:** %s", caseNumber, newReason),
		Color:       b.cfg.Embeds.Action,
	})
}

func (b *Bot) handleModHistory(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "target", session)
	if target == nil {
		b.respond(session, interaction, "That user isn't in this server.", true)
		return
	}

	records, err := b.store.RecordsByTarget(ctx, interaction.GuildID, target.ID)
	if err != nil {
		b.logger.Error("mod history query failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "An error occurred while fetching the user's history.", true)
		return
	}
	if len(records) == 0 {
		b.respond(session, interaction,
			fmt.Sprintf("No moderation history found for **%s**.", target.Username), true)
		return
	}

	var description strings.Builder
	for _, record := range records {
		fmt.Fprintf(&description, "**Action:** %s\n", strings.ToUpper(string(record.Action)))
		fmt.Fprintf(&description, "**Reason:** %s\n", record.Reason)
		fmt.Fprintf(&description, "**Moderator:** <@%s>\n", record.ModeratorID)
		fmt.Fprintf(&description, "**Date:** <t:%d:R>\n\n", record.CreatedAt.Unix())
	}

	embed := &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: "Moderation History for " + target.Username},
		Description: description.String(),
		Color:       b.cfg.Embeds.Action,
	}
	b.respondEmbed(session, interaction, embed, true)
}

func (b *Bot) handleMute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "target", session)
	if target == nil {
		b.respond(session, interaction, "That user isn't in this server.", true)
		return
	}
	durationText := stringOption(opts, "duration")
	reason := stringOption(opts, "reason")
	if reason == "" {
		reason = "No reason provided"
	}
	moderatorID := interactionUserID(interaction)

	if target.ID == moderatorID {
		b.respond(session, interaction, "You can't mute yourself!", true)
		return
	}
	if target.ID == b.botID() {
		b.respond(session, interaction, "You can't mute me!", true)
		return
	}

	duration, err := durations.Parse(durationText)
	if err != nil {
		b.respond(session, interaction,
			"Invalid duration format. Use `s`, `m`, `h` or `d` (e.g. `10m`, `1h`, `7d`).", true)
		return
	}
	if duration > maxTimeout {
		b.respond(session, interaction, "The timeout duration cannot be longer than 28 days.", true)
		return
	}

	status, err := b.actions.MemberStatus(ctx, interaction.GuildID, target.ID)
	if err != nil {
		b.respond(session, interaction, "Could not resolve that member.", true)
		return
	}
	if status.Muted {
		b.respond(session, interaction, "This member is already muted.", true)
		return
	}
	if !status.Moderatable {
		b.respond(session, interaction, "I don't have permission to mute that member. They may have a higher role than me.", true)
		return
	}

	b.notifier.DirectMessage(ctx, target.ID,
		fmt.Sprintf("You have been muted for %q for the following reason: %s", durationText, reason))

	if err := b.actions.TimeoutMember(ctx, interaction.GuildID, target.ID, duration, reason); err != nil {
		b.logger.Warn("mute failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "I couldn't mute that member.", true)
		return
	}

	b.recordAction(ctx, session, interaction, storage.ModerationRecord{
		GuildID:     interaction.GuildID,
		Action:      storage.ActionMute,
		TargetID:    target.ID,
		ModeratorID: moderatorID,
		Reason:      reason,
		Duration:    durationText,
	}, fmt.Sprintf("Successfully muted **%s** for %s. Reason: %s", target.Username, durationText, reason))

	b.notifier.PostLog(ctx, interaction.GuildID, modlog.Entry{
		Action:      "Mute",
		ModeratorID: moderatorID,
		TargetID:    target.ID,
		Reason:      reason,
		Duration:    durationText,
		Color:       b.cfg.Embeds.Action,
	})
}

func (b *Bot) handleUnmute(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "target", session)
	if target == nil {
		b.respond(session, interaction, "That user isn't in this server.", true)
		return
	}
	reason := stringOption(opts, "reason")
	if reason == "" {
		reason = "No reason provided"
	}
	moderatorID := interactionUserID(interaction)

	status, err := b.actions.MemberStatus(ctx, interaction.GuildID, target.ID)
	if err != nil {
		b.respond(session, interaction, "Could not resolve that member.", true)
		return
	}
	if !status.Muted {
		b.respond(session, interaction, "This member is not muted.", true)
		return
	}

	if err := b.actions.RemoveTimeout(ctx, interaction.GuildID, target.ID); err != nil {
		b.logger.Warn("unmute failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "I couldn't unmute that member.", true)
		return
	}

	b.recordAction(ctx, session, interaction, storage.ModerationRecord{
		GuildID:     interaction.GuildID,
		Action:      storage.ActionUnmute,
		TargetID:    target.ID,
		ModeratorID: moderatorID,
		Reason:      reason,
	}, fmt.Sprintf("Successfully unmuted **%s**. Reason: %s", target.Username, reason))

	b.notifier.PostLog(ctx, interaction.GuildID, modlog.Entry{
		Action:      "Unmute",
		ModeratorID: moderatorID,
		TargetID:    target.ID,
		Reason:      reason,
		Color:       b.cfg.Embeds.Action,
	})
}

func (b *Bot) handleKick(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "target", session)
	if target == nil {
		b.respond(session, interaction, "That user isn't in this server.", true)
		return
	}
	reason := stringOption(opts, "reason")
	if reason == "" {
		reason = "No reason provided"
	}
	moderatorID := interactionUserID(interaction)

	status, err := b.actions.MemberStatus(ctx, interaction.GuildID, target.ID)
	if err != nil {
		b.respond(session, interaction, "Could not resolve that member.", true)
		return
	}
	if !status.Kickable {
		b.respond(session, interaction, "I don't have permission to kick that member.", true)
		return
	}

	b.notifier.DirectMessage(ctx, target.ID, "You have been kicked for the following reason: "+reason)

	if err := b.actions.KickMember(ctx, interaction.GuildID, target.ID, reason); err != nil {
		b.logger.Warn("kick failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "I couldn't kick that member.", true)
		return
	}

	b.recordAction(ctx, session, interaction, storage.ModerationRecord{
		GuildID:     interaction.GuildID,
		Action:      storage.ActionKick,
		TargetID:    target.ID,
		ModeratorID: moderatorID,
		Reason:      reason,
	}, fmt.Sprintf("Successfully kicked **%s**. Reason: %s", target.Username, reason))

	b.notifier.PostLog(ctx, interaction.GuildID, modlog.Entry{
		Action:      "Kick",
		ModeratorID: moderatorID,
		TargetID:    target.ID,
		Reason:      reason,
		Color:       b.cfg.Embeds.Warning,
	})
}

func (b *Bot) handleBan(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	target := userOption(opts, "target", session)
	if target == nil {
		b.respond(session, interaction, "That user isn't in this server.", true)
		return
	}
	reason := stringOption(opts, "reason")
	if reason == "" {
		reason = "No reason provided"
	}
	moderatorID := interactionUserID(interaction)

	status, err := b.actions.MemberStatus(ctx, interaction.GuildID, target.ID)
	if err != nil {
		b.respond(session, interaction, "Could not resolve that member.", true)
		return
	}
	if !status.Bannable {
		b.respond(session, interaction, "I don't have permission to ban that member.", true)
		return
	}

	b.notifier.DirectMessage(ctx, target.ID, "You have been banned for the following reason: "+reason)

	if err := b.actions.BanMember(ctx, interaction.GuildID, target.ID, reason); err != nil {
		b.logger.Warn("ban failed", zap.String("guild_id", interaction.GuildID), zap.Error(err))
		b.respond(session, interaction, "I couldn't ban that member.", true)
		return
	}

	b.recordAction(ctx, session, interaction, storage.ModerationRecord{
		GuildID:     interaction.GuildID,
		Action:      storage.ActionBan,
		TargetID:    target.ID,
		ModeratorID: moderatorID,
		Reason:      reason,
	}, fmt.Sprintf("Successfully banned **%s**. Reason: %s", target.Username, reason))

	b.notifier.PostLog(ctx, interaction.GuildID, modlog.Entry{
		Action:      "Ban",
		ModeratorID: moderatorID,
		TargetID:    target.ID,
		Reason:      reason,
		Color:       b.cfg.Embeds.Error,
	})
}

// recordAction appends the record for an already-performed platform
// action. A persistence failure downgrades the confirmation to a
// partial-success warning; the action itself is not undone.
func (b *Bot) recordAction(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, record storage.ModerationRecord, confirmation string) {
	if err := b.store.AppendRecord(ctx, record); err != nil {
		b.logger.Error("moderation record append failed",
			zap.String("guild_id", record.GuildID),
			zap.String("action", string(record.Action)),
			zap.Error(err))
		b.respond(session, interaction,
			"The action was performed, but it could not be logged to the moderation history.", true)
		return
	}
	b.metrics.RecordAppends.Inc()
	b.respond(session, interaction, confirmation, true)
}

func (b *Bot) handleSettings(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Unknown settings subcommand.", true)
		return
	}

	top := options[0]
	switch top.Name {
	case "log-channel":
		opts := optionMap(top.Options)
		channel := channelOption(opts, "channel", session)
		if channel == nil {
			b.respond(session, interaction, "That channel could not be resolved.", true)
			return
		}
		if err := b.store.SetLogChannel(ctx, interaction.GuildID, channel.ID); err != nil {
			b.respond(session, interaction, "Failed to update the log channel.", true)
			return
		}
		b.settings.Invalidate(interaction.GuildID)
		b.respond(session, interaction, fmt.Sprintf("Moderation log channel has been set to <#%s>.", channel.ID), true)
	case "auto-role":
		opts := optionMap(top.Options)
		role := roleOption(opts, "role", session, interaction.GuildID)
		if role == nil {
			b.respond(session, interaction, "That role could not be resolved.", true)
			return
		}
		if err := b.store.SetAutoRole(ctx, interaction.GuildID, role.ID); err != nil {
			b.respond(session, interaction, "Failed to update the auto-role.", true)
			return
		}
		b.settings.Invalidate(interaction.GuildID)
		b.respond(session, interaction, fmt.Sprintf("New members will now automatically receive the **%s** role.", role.Name), true)
	case "verification-role":
		opts := optionMap(top.Options)
		role := roleOption(opts, "role", session, interaction.GuildID)
		if role == nil {
			b.respond(session, interaction, "That role could not be resolved.", true)
			return
		}
		if err := b.store.SetVerificationRole(ctx, interaction.GuildID, role.ID); err != nil {
			b.respond(session, interaction, "Failed to update the verification role.", true)
			return
		}
		b.settings.Invalidate(interaction.GuildID)
		b.respond(session, interaction, fmt.Sprintf("The verification role has been set to **%s**.", role.Name), true)
	case "blacklist":
		b.handleBlacklistSettings(ctx, session, interaction, top.Options)
	case "warn-escalation":
		b.handleEscalationSettings(ctx, session, interaction, top.Options)
	default:
		b.respond(session, interaction, "Unknown settings subcommand.", true)
	}
}

func (b *Bot) handleBlacklistSettings(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Unknown blacklist subcommand.", true)
		return
	}
	sub := options[0]
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "add":
		word := strings.ToLower(stringOption(opts, "word"))
		if err := b.store.AddBannedWord(ctx, interaction.GuildID, word); err != nil {
			b.respond(session, interaction, "Failed to update the blacklist.", true)
			return
		}
		b.settings.Invalidate(interaction.GuildID)
		b.respond(session, interaction, fmt.Sprintf("The word `%s` has been added to the blacklist.", word), true)
	case "remove":
		word := strings.ToLower(stringOption(opts, "word"))
		if err := b.store.RemoveBannedWord(ctx, interaction.GuildID, word); err != nil {
			b.respond(session, interaction, "Failed to update the blacklist.", true)
			return
		}
		b.settings.Invalidate(interaction.GuildID)
		b.respond(session, interaction, fmt.Sprintf("The word `%s` has been removed from the blacklist.", word), true)
	case "list":
		words, err := b.store.ListBannedWords(ctx, interaction.GuildID)
		if err != nil {
			b.respond(session, interaction, "Failed to load the blacklist.", true)
			return
		}
		if len(words) == 0 {
			b.respond(session, interaction, "The blacklist is currently empty.", true)
			return
		}
		quoted := make([]string, 0, len(words))
		for _, word := range words {
			quoted = append(quoted, "`"+word+"`")
		}
		embed := &discordgo.MessageEmbed{
			Title:       "Banned Words List",
			Description: strings.Join(quoted, ", "),
			Color:       b.cfg.Embeds.Action,
		}
		b.respondEmbed(session, interaction, embed, true)
	}
}

func (b *Bot) handleEscalationSettings(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		b.respond(session, interaction, "Unknown escalation subcommand.", true)
		return
	}
	sub := options[0]
	opts := optionMap(sub.Options)

	switch sub.Name {
	case "add":
		warnings := int(intOption(opts, "warnings"))
		action := storage.ActionType(stringOption(opts, "action"))
		duration := stringOption(opts, "duration")
		rule := storage.EscalationRule{Action: action}
		if action == storage.ActionMute {
			rule.Duration = duration
		}
		if err := b.store.UpsertEscalationRule(ctx, interaction.GuildID, warnings, rule); err != nil {
			b.respond(session, interaction, "Failed to create the escalation rule.", true)
			return
		}
		b.settings.Invalidate(interaction.GuildID)
		b.respond(session, interaction,
			fmt.Sprintf("Rule created: at **%d** warnings, the user will be **%s**.", warnings, describeRule(rule)), true)
	case "remove":
		warnings := int(intOption(opts, "warnings"))
		if err := b.store.RemoveEscalationRule(ctx, interaction.GuildID, warnings); err != nil {
			b.respond(session, interaction, "Failed to remove the escalation rule.", true)
			return
		}
		b.settings.Invalidate(interaction.GuildID)
		b.respond(session, interaction,
			fmt.Sprintf("Escalation rule for **%d** warnings has been removed.", warnings), true)
	case "list":
		config, err := b.store.GetGuildConfig(ctx, interaction.GuildID)
		if err != nil {
			b.respond(session, interaction, "Failed to load the escalation rules.", true)
			return
		}
		if len(config.EscalationRules) == 0 {
			b.respond(session, interaction, "No warning escalation rules have been set.", true)
			return
		}
		var description strings.Builder
		for _, count := range sortedRuleCounts(config.EscalationRules) {
			rule := config.EscalationRules[count]
			fmt.Fprintf(&description, "**%d Warnings:** %s\n", count, describeRule(rule))
		}
		embed := &discordgo.MessageEmbed{
			Title:       "Warning Escalation Rules",
			Description: description.String(),
			Color:       b.cfg.Embeds.Action,
		}
		b.respondEmbed(session, interaction, embed, true)
	}
}

func describeRule(rule storage.EscalationRule) string {
	text := "`" + string(rule.Action) + "`"
	if rule.Action == storage.ActionMute && rule.Duration != "" {
		text += " for `" + rule.Duration + "`"
	}
	return text
}
