package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Discord implements Actions on a live discordgo session.
type Discord struct {
	session *discordgo.Session
	logger  *zap.Logger
}

func NewDiscord(session *discordgo.Session, logger *zap.Logger) *Discord {
	return &Discord{session: session, logger: logger}
}

func (d *Discord) MemberStatus(ctx context.Context, guildID, userID string) (MemberStatus, error) {
	_ = ctx
	guild, err := d.guild(guildID)
	if err != nil {
		return MemberStatus{}, err
	}
	member, err := d.member(guildID, userID)
	if err != nil {
		return MemberStatus{}, err
	}

	status := MemberStatus{
		Muted: member.CommunicationDisabledUntil != nil && member.CommunicationDisabledUntil.After(time.Now()),
	}

	// The guild owner outranks every role the bot can hold.
	if guild.OwnerID == userID {
		return status, nil
	}

	botID := ""
	if d.session.State != nil && d.session.State.User != nil {
		botID = d.session.State.User.ID
	}
	botMember, err := d.member(guildID, botID)
	if err != nil {
		return MemberStatus{}, err
	}

	outranks := d.highestRolePosition(guild, botMember) > d.highestRolePosition(guild, member)
	status.Moderatable = outranks
	status.Kickable = outranks
	status.Bannable = outranks
	return status, nil
}

func (d *Discord) TimeoutMember(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error {
	_ = ctx
	until := time.Now().Add(duration)
	if err := d.session.GuildMemberTimeout(guildID, userID, &until); err != nil {
		return fmt.Errorf("timeout member %s: %w", userID, err)
	}
	d.logger.Info("member timed out",
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.Duration("duration", duration),
		zap.String("reason", reason))
	return nil
}

func (d *Discord) RemoveTimeout(ctx context.Context, guildID, userID string) error {
	_ = ctx
	if err := d.session.GuildMemberTimeout(guildID, userID, nil); err != nil {
		return fmt.Errorf("remove timeout %s: %w", userID, err)
	}
	return nil
}

func (d *Discord) KickMember(ctx context.Context, guildID, userID, reason string) error {
	_ = ctx
	if err := d.session.GuildMemberDeleteWithReason(guildID, userID, reason); err != nil {
		return fmt.Errorf("kick member %s: %w", userID, err)
	}
	return nil
}

func (d *Discord) BanMember(ctx context.Context, guildID, userID, reason string) error {
	_ = ctx
	if err := d.session.GuildBanCreateWithReason(guildID, userID, reason, 0); err != nil {
		return fmt.Errorf("ban member %s: %w", userID, err)
	}
	return nil
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_ = ctx
	if err := d.session.ChannelMessageDelete(channelID, messageID); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	return nil
}

// SendTimedNotice posts a channel message and deletes it after ttl.
// The delayed delete is best-effort.
func (d *Discord) SendTimedNotice(ctx context.Context, channelID, text string, ttl time.Duration) error {
	_ = ctx
	msg, err := d.session.ChannelMessageSend(channelID, text)
	if err != nil {
		return fmt.Errorf("send notice: %w", err)
	}
	time.AfterFunc(ttl, func() {
		if err := d.session.ChannelMessageDelete(channelID, msg.ID); err != nil {
			d.logger.Debug("notice cleanup failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	})
	return nil
}

func (d *Discord) SendDirectMessage(ctx context.Context, userID, text string) error {
	_ = ctx
	channel, err := d.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if _, err := d.session.ChannelMessageSend(channel.ID, text); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}

func (d *Discord) guild(guildID string) (*discordgo.Guild, error) {
	if d.session.State != nil {
		if guild, err := d.session.State.Guild(guildID); err == nil && guild != nil {
			return guild, nil
		}
	}
	guild, err := d.session.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("fetch guild %s: %w", guildID, err)
	}
	return guild, nil
}

func (d *Discord) member(guildID, userID string) (*discordgo.Member, error) {
	if d.session.State != nil {
		if member, err := d.session.State.Member(guildID, userID); err == nil && member != nil {
			return member, nil
		}
	}
	member, err := d.session.GuildMember(guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	return member, nil
}

func (d *Discord) highestRolePosition(guild *discordgo.Guild, member *discordgo.Member) int {
	highest := 0
	for _, roleID := range member.Roles {
		for _, role := range guild.Roles {
			if role.ID == roleID && role.Position > highest {
				highest = role.Position
			}
		}
	}
	return highest
}
