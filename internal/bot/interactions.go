package bot

import (
	"sort"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"aegis-guardian/internal/storage"
)

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) followUp(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string) {
	_, err := session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{
		Content: content,
	})
	if err != nil {
		b.logger.Warn("interaction follow-up failed", zap.Error(err))
	}
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func intOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int64 {
	if opt, ok := opts[name]; ok {
		return opt.IntValue()
	}
	return 0
}

func userOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string, session *discordgo.Session) *discordgo.User {
	if opt, ok := opts[name]; ok {
		return opt.UserValue(session)
	}
	return nil
}

func channelOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string, session *discordgo.Session) *discordgo.Channel {
	if opt, ok := opts[name]; ok {
		return opt.ChannelValue(session)
	}
	return nil
}

func roleOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string, session *discordgo.Session, guildID string) *discordgo.Role {
	if opt, ok := opts[name]; ok {
		return opt.RoleValue(session, guildID)
	}
	return nil
}

// interactionUserID works for both guild invocations (Member set) and
// the DM edge where only User is present.
func interactionUserID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func sortedRuleCounts(rules map[int]storage.EscalationRule) []int {
	counts := make([]int, 0, len(rules))
	for count := range rules {
		counts = append(counts, count)
	}
	sort.Ints(counts)
	return counts
}
