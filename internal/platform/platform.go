// Package platform narrows the Discord client surface used by the
// moderation engines so they can be exercised against fakes.
package platform

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAlreadyMuted   = errors.New("member is already muted")
	ErrNotModeratable = errors.New("member cannot be moderated by the bot")
	ErrNotKickable    = errors.New("member cannot be kicked by the bot")
	ErrNotBannable    = errors.New("member cannot be banned by the bot")
)

// MemberStatus reports the bot's capabilities against a member, as
// determined by role hierarchy, plus the member's current mute state.
type MemberStatus struct {
	Muted       bool
	Moderatable bool
	Kickable    bool
	Bannable    bool
}

// Actions is the set of platform mutations the moderation core
// performs. Implementations do not retry; the caller decides what a
// failure means.
type Actions interface {
	MemberStatus(ctx context.Context, guildID, userID string) (MemberStatus, error)
	TimeoutMember(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error
	RemoveTimeout(ctx context.Context, guildID, userID string) error
	KickMember(ctx context.Context, guildID, userID, reason string) error
	BanMember(ctx context.Context, guildID, userID, reason string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendTimedNotice(ctx context.Context, channelID, text string, ttl time.Duration) error
	SendDirectMessage(ctx context.Context, userID, text string) error
}
