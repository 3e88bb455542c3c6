package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"aegis-guardian/internal/config"
	"aegis-guardian/internal/metrics"
	"aegis-guardian/internal/modules/antispam"
	"aegis-guardian/internal/modules/escalation"
	"aegis-guardian/internal/modules/modlog"
	"aegis-guardian/internal/modules/wordfilter"
	"aegis-guardian/internal/platform"
	"aegis-guardian/internal/settings"
	"aegis-guardian/internal/storage"
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	session    *discordgo.Session
	actions    platform.Actions
	settings   *settings.Cache
	notifier   *modlog.Notifier
	antispam   *antispam.Module
	wordfilter *wordfilter.Module
	escalation *escalation.Engine
	metrics    *metrics.Metrics
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, m *metrics.Metrics) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	settingsCache := settings.NewCache(store, time.Duration(cfg.Cache.SettingsTTLMinutes)*time.Minute)
	settingsCache.WithCounters(m.CacheHits, m.CacheMisses)

	actions := platform.NewDiscord(session, logger)
	notifier := modlog.NewNotifier(session, settingsCache, logger)

	spamModule := antispam.New(antispam.Config{
		Threshold:    cfg.Automod.SpamThreshold,
		Window:       time.Duration(cfg.Automod.SpamWindowMs) * time.Millisecond,
		MuteDuration: cfg.Automod.SpamMuteDuration,
		Color:        cfg.Embeds.Action,
	}, actions, notifier, logger)
	spamModule.WithCounter(m.SpamMutes)

	filterModule := wordfilter.New(wordfilter.Config{Color: cfg.Embeds.Warning},
		settingsCache, store, actions, notifier, logger)
	filterModule.WithCounter(m.FilteredMessages)

	escalationEngine := escalation.New(escalation.Config{
		DefaultMuteDuration: cfg.Automod.DefaultMuteDuration,
		Color:               cfg.Embeds.Action,
	}, settingsCache, store, actions, notifier, logger)
	escalationEngine.WithCounter(m.Escalations)

	return &Bot{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		session:    session,
		actions:    actions,
		settings:   settingsCache,
		notifier:   notifier,
		antispam:   spamModule,
		wordfilter: filterModule,
		escalation: escalationEngine,
		metrics:    m,
	}, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}
	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) botID() string {
	if b.session.State != nil && b.session.State.User != nil {
		return b.session.State.User.ID
	}
	return ""
}

// onMessageCreate feeds inbound guild messages through the automod
// chain: spam first, then the banned-word filter for messages that did
// not trigger it. Holders of the manage-messages permission are exempt
// from both.
func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	exempt := false
	if perms, err := session.State.MessagePermissions(msg.Message); err == nil {
		exempt = perms&discordgo.PermissionManageMessages != 0
	}

	b.HandleInboundMessage(context.Background(), inboundMessage{
		guildID:   msg.GuildID,
		channelID: msg.ChannelID,
		messageID: msg.ID,
		authorID:  msg.Author.ID,
		content:   msg.Content,
		exempt:    exempt,
	})
}

type inboundMessage struct {
	guildID   string
	channelID string
	messageID string
	authorID  string
	content   string
	exempt    bool
}

func (b *Bot) HandleInboundMessage(ctx context.Context, msg inboundMessage) {
	if msg.exempt {
		return
	}

	triggered := b.antispam.HandleMessage(ctx, antispam.Message{
		GuildID:   msg.guildID,
		ChannelID: msg.channelID,
		MessageID: msg.messageID,
		AuthorID:  msg.authorID,
	})
	if triggered {
		return
	}

	b.wordfilter.HandleMessage(ctx, wordfilter.Message{
		GuildID:   msg.guildID,
		ChannelID: msg.channelID,
		MessageID: msg.messageID,
		AuthorID:  msg.authorID,
		BotID:     b.botID(),
		Content:   msg.content,
	})
}

// OnWarningIssued runs the escalation check after a manual warning has
// been appended. The returned error is a follow-up notice for the
// invoking command, never a rollback of the warning itself.
func (b *Bot) OnWarningIssued(ctx context.Context, guildID, targetID string) error {
	return b.escalation.CheckAndApply(ctx, guildID, targetID, b.botID())
}

// onGuildMemberAdd assigns the configured auto-role to new members.
func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.GuildID == "" || event.User == nil {
		return
	}

	config, err := b.settings.Get(context.Background(), event.GuildID)
	if err != nil {
		b.logger.Warn("auto-role settings fetch failed", zap.String("guild_id", event.GuildID), zap.Error(err))
		return
	}
	if config.AutoRoleID == "" {
		return
	}
	if err := session.GuildMemberRoleAdd(event.GuildID, event.User.ID, config.AutoRoleID); err != nil {
		b.logger.Warn("auto-role assignment failed",
			zap.String("guild_id", event.GuildID),
			zap.String("user_id", event.User.ID),
			zap.Error(err))
	}
}
