package escalation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aegis-guardian/internal/modules/modlog"
	"aegis-guardian/internal/platform"
	"aegis-guardian/internal/storage"
)

type fakeSettings struct {
	rules map[int]storage.EscalationRule
}

func (s *fakeSettings) Get(ctx context.Context, guildID string) (storage.GuildConfig, error) {
	return storage.GuildConfig{GuildID: guildID, EscalationRules: s.rules}, nil
}

type fakeActions struct {
	status     platform.MemberStatus
	timeoutErr error

	timeouts      int
	lastDuration  time.Duration
	kicks, bans   int
	lastReason    string
	deletedNotice int
}

func (a *fakeActions) MemberStatus(ctx context.Context, guildID, userID string) (platform.MemberStatus, error) {
	return a.status, nil
}
func (a *fakeActions) TimeoutMember(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error {
	if a.timeoutErr != nil {
		return a.timeoutErr
	}
	a.timeouts++
	a.lastDuration = duration
	a.lastReason = reason
	return nil
}
func (a *fakeActions) RemoveTimeout(ctx context.Context, guildID, userID string) error { return nil }
func (a *fakeActions) KickMember(ctx context.Context, guildID, userID, reason string) error {
	a.kicks++
	a.lastReason = reason
	return nil
}
func (a *fakeActions) BanMember(ctx context.Context, guildID, userID, reason string) error {
	a.bans++
	a.lastReason = reason
	return nil
}
func (a *fakeActions) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return nil
}
func (a *fakeActions) SendTimedNotice(ctx context.Context, channelID, text string, ttl time.Duration) error {
	a.deletedNotice++
	return nil
}
func (a *fakeActions) SendDirectMessage(ctx context.Context, userID, text string) error { return nil }

type fakeNotifier struct {
	entries []modlog.Entry
	dms     []string
}

func (n *fakeNotifier) PostLog(ctx context.Context, guildID string, entry modlog.Entry) {
	n.entries = append(n.entries, entry)
}
func (n *fakeNotifier) DirectMessage(ctx context.Context, userID, text string) {
	n.dms = append(n.dms, text)
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())
	return store
}

func warn(t *testing.T, store *storage.Store, target string) {
	t.Helper()
	require.NoError(t, store.AppendRecord(context.Background(), storage.ModerationRecord{
		GuildID:     "g1",
		Action:      storage.ActionWarn,
		TargetID:    target,
		ModeratorID: "mod1",
		Reason:      "manual warning",
	}))
}

func TestRuleFiresAtExactCountOnly(t *testing.T) {
	store := newTestStore(t)
	settings := &fakeSettings{rules: map[int]storage.EscalationRule{
		2: {Action: storage.ActionMute, Duration: "10m"},
	}}
	actions := &fakeActions{status: platform.MemberStatus{Moderatable: true}}
	notifier := &fakeNotifier{}
	engine := New(DefaultConfig(), settings, store, actions, notifier, zap.NewNop())
	ctx := context.Background()

	warn(t, store, "u1")
	require.NoError(t, engine.CheckAndApply(ctx, "g1", "u1", "bot"))
	require.Zero(t, actions.timeouts, "rule at 2 must not fire on the 1st warning")

	warn(t, store, "u1")
	require.NoError(t, engine.CheckAndApply(ctx, "g1", "u1", "bot"))
	require.Equal(t, 1, actions.timeouts)
	require.Equal(t, 10*time.Minute, actions.lastDuration)
	require.Equal(t, "Automatic action for reaching 2 warnings.", actions.lastReason)

	records, err := store.RecordsByTarget(ctx, "g1", "u1", storage.ActionMute)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "10m", records[0].Duration)
	require.Equal(t, "bot", records[0].ModeratorID)

	// The automatic mute is not a warning; the 3rd manual warning
	// brings the count to 3 and the rule at 2 stays quiet.
	warn(t, store, "u1")
	require.NoError(t, engine.CheckAndApply(ctx, "g1", "u1", "bot"))
	require.Equal(t, 1, actions.timeouts, "rule at 2 must not fire on the 3rd warning")
}

func TestMuteDurationDefaultsWhenUnparsable(t *testing.T) {
	store := newTestStore(t)
	settings := &fakeSettings{rules: map[int]storage.EscalationRule{
		1: {Action: storage.ActionMute, Duration: "soon"},
	}}
	actions := &fakeActions{status: platform.MemberStatus{Moderatable: true}}
	engine := New(DefaultConfig(), settings, store, actions, &fakeNotifier{}, zap.NewNop())

	warn(t, store, "u1")
	require.NoError(t, engine.CheckAndApply(context.Background(), "g1", "u1", "bot"))
	require.Equal(t, time.Hour, actions.lastDuration)

	records, err := store.RecordsByTarget(context.Background(), "g1", "u1", storage.ActionMute)
	require.NoError(t, err)
	require.Equal(t, "1h", records[0].Duration)
}

func TestMuteSkippedWhenAlreadyMuted(t *testing.T) {
	store := newTestStore(t)
	settings := &fakeSettings{rules: map[int]storage.EscalationRule{
		1: {Action: storage.ActionMute, Duration: "10m"},
	}}
	actions := &fakeActions{status: platform.MemberStatus{Muted: true, Moderatable: true}}
	notifier := &fakeNotifier{}
	engine := New(DefaultConfig(), settings, store, actions, notifier, zap.NewNop())

	warn(t, store, "u1")
	require.NoError(t, engine.CheckAndApply(context.Background(), "g1", "u1", "bot"))
	require.Zero(t, actions.timeouts)
	require.Empty(t, notifier.entries)

	records, err := store.RecordsByTarget(context.Background(), "g1", "u1", storage.ActionMute)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestKickRule(t *testing.T) {
	store := newTestStore(t)
	settings := &fakeSettings{rules: map[int]storage.EscalationRule{
		1: {Action: storage.ActionKick},
	}}
	actions := &fakeActions{status: platform.MemberStatus{Kickable: true}}
	notifier := &fakeNotifier{}
	engine := New(DefaultConfig(), settings, store, actions, notifier, zap.NewNop())

	warn(t, store, "u1")
	require.NoError(t, engine.CheckAndApply(context.Background(), "g1", "u1", "bot"))
	require.Equal(t, 1, actions.kicks)
	require.Len(t, notifier.dms, 1, "DM goes out before the kick")

	records, err := store.RecordsByTarget(context.Background(), "g1", "u1", storage.ActionKick)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestKickSkippedWhenNotKickable(t *testing.T) {
	store := newTestStore(t)
	settings := &fakeSettings{rules: map[int]storage.EscalationRule{
		1: {Action: storage.ActionKick},
	}}
	actions := &fakeActions{}
	engine := New(DefaultConfig(), settings, store, actions, &fakeNotifier{}, zap.NewNop())

	warn(t, store, "u1")
	require.NoError(t, engine.CheckAndApply(context.Background(), "g1", "u1", "bot"))
	require.Zero(t, actions.kicks)
}

func TestBanRule(t *testing.T) {
	store := newTestStore(t)
	settings := &fakeSettings{rules: map[int]storage.EscalationRule{
		3: {Action: storage.ActionBan},
	}}
	actions := &fakeActions{status: platform.MemberStatus{Bannable: true}}
	engine := New(DefaultConfig(), settings, store, actions, &fakeNotifier{}, zap.NewNop())
	ctx := context.Background()

	warn(t, store, "u1")
	warn(t, store, "u1")
	warn(t, store, "u1")
	require.NoError(t, engine.CheckAndApply(ctx, "g1", "u1", "bot"))
	require.Equal(t, 1, actions.bans)

	records, err := store.RecordsByTarget(ctx, "g1", "u1", storage.ActionBan)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Automatic action for reaching 3 warnings.", records[0].Reason)
}

func TestDispatchFailureReportedWithoutRollback(t *testing.T) {
	store := newTestStore(t)
	settings := &fakeSettings{rules: map[int]storage.EscalationRule{
		1: {Action: storage.ActionMute, Duration: "10m"},
	}}
	actions := &fakeActions{
		status:     platform.MemberStatus{Moderatable: true},
		timeoutErr: errors.New("missing permissions"),
	}
	engine := New(DefaultConfig(), settings, store, actions, &fakeNotifier{}, zap.NewNop())
	ctx := context.Background()

	warn(t, store, "u1")
	require.Error(t, engine.CheckAndApply(ctx, "g1", "u1", "bot"))

	// The warning that triggered the check is intact and not duplicated.
	count, err := store.CountWarnings(ctx, "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestNoRulesIsNoOp(t *testing.T) {
	store := newTestStore(t)
	engine := New(DefaultConfig(), &fakeSettings{}, store, &fakeActions{}, &fakeNotifier{}, zap.NewNop())

	warn(t, store, "u1")
	require.NoError(t, engine.CheckAndApply(context.Background(), "g1", "u1", "bot"))
}
