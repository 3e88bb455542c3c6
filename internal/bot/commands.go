package bot

import "github.com/bwmarrin/discordgo"

var (
	moderatePerm = int64(discordgo.PermissionModerateMembers)
	kickPerm     = int64(discordgo.PermissionKickMembers)
	banPerm      = int64(discordgo.PermissionBanMembers)
	adminPerm    = int64(discordgo.PermissionAdministrator)
	minOneCase   = float64(1)
)

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:                     "warn",
			Description:              "Issues a formal warning to a member",
			DefaultMemberPermissions: &moderatePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "target", Description: "The member to warn", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "The reason for the warning", Required: true},
			},
		},
		{
			Name:                     "editwarn",
			Description:              "Edits the reason for a specific warning",
			DefaultMemberPermissions: &moderatePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "target", Description: "The user whose warning to edit", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "case", Description: "Case number from /modhistory (1 = most recent)", Required: true, MinValue: &minOneCase},
				{Type: discordgo.ApplicationCommandOptionString, Name: "new_reason", Description: "The new reason", Required: true},
			},
		},
		{
			Name:                     "modhistory",
			Description:              "Checks a user's moderation history",
			DefaultMemberPermissions: &moderatePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "target", Description: "The user to check", Required: true},
			},
		},
		{
			Name:                     "mute",
			Description:              "Times out a member, preventing them from talking",
			DefaultMemberPermissions: &moderatePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "target", Description: "The member to mute", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "duration", Description: "Duration of the mute (e.g. 10m, 1h, 7d)", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "The reason for the mute"},
			},
		},
		{
			Name:                     "unmute",
			Description:              "Removes the timeout from a member",
			DefaultMemberPermissions: &moderatePerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "target", Description: "The member to unmute", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "The reason for the unmute"},
			},
		},
		{
			Name:                     "kick",
			Description:              "Kicks a member from the server",
			DefaultMemberPermissions: &kickPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "target", Description: "The member to kick", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "The reason for the kick"},
			},
		},
		{
			Name:                     "ban",
			Description:              "Bans a member from the server",
			DefaultMemberPermissions: &banPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "target", Description: "The member to ban", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "The reason for the ban"},
			},
		},
		{
			Name:                     "settings",
			Description:              "Configure moderation settings for this server",
			DefaultMemberPermissions: &adminPerm,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "log-channel",
					Description: "Set the moderation log channel",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "The text channel for logs", Required: true,
							ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText}},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "auto-role",
					Description: "Set the role granted to new members on join",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "The role to grant automatically", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "verification-role",
					Description: "Set the role used by verification integrations",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "The verification role", Required: true},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "blacklist",
					Description: "Manage the banned words list",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "add",
							Description: "Add a word to the blacklist",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "word", Description: "The word to blacklist", Required: true},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "remove",
							Description: "Remove a word from the blacklist",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionString, Name: "word", Description: "The word to remove", Required: true},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "list",
							Description: "List all blacklisted words",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
					Name:        "warn-escalation",
					Description: "Manage automatic actions for warning counts",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "add",
							Description: "Add a warning escalation rule",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionInteger, Name: "warnings", Description: "Warning count that triggers the action", Required: true, MinValue: &minOneCase},
								{Type: discordgo.ApplicationCommandOptionString, Name: "action", Description: "The action to take", Required: true,
									Choices: []*discordgo.ApplicationCommandOptionChoice{
										{Name: "Mute", Value: "mute"},
										{Name: "Kick", Value: "kick"},
										{Name: "Ban", Value: "ban"},
									}},
								{Type: discordgo.ApplicationCommandOptionString, Name: "duration", Description: "Mute duration (e.g. 10m, 1h) - only for Mute"},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "remove",
							Description: "Remove a warning escalation rule",
							Options: []*discordgo.ApplicationCommandOption{
								{Type: discordgo.ApplicationCommandOptionInteger, Name: "warnings", Description: "The warning count of the rule to remove", Required: true},
							},
						},
						{
							Type:        discordgo.ApplicationCommandOptionSubCommand,
							Name:        "list",
							Description: "List all warning escalation rules",
						},
					},
				},
			},
		},
	}

	appID := b.session.State.User.ID
	for _, command := range commands {
		if _, err := b.session.ApplicationCommandCreate(appID, "", command); err != nil {
			return err
		}
	}
	return nil
}
