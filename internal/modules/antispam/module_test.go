package antispam

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"aegis-guardian/internal/modules/modlog"
	"aegis-guardian/internal/platform"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeActions struct {
	status     platform.MemberStatus
	statusErr  error
	timeoutErr error

	timeouts int
	notices  int
}

func (a *fakeActions) MemberStatus(ctx context.Context, guildID, userID string) (platform.MemberStatus, error) {
	return a.status, a.statusErr
}

func (a *fakeActions) TimeoutMember(ctx context.Context, guildID, userID string, duration time.Duration, reason string) error {
	if a.timeoutErr != nil {
		return a.timeoutErr
	}
	a.timeouts++
	return nil
}

func (a *fakeActions) RemoveTimeout(ctx context.Context, guildID, userID string) error { return nil }
func (a *fakeActions) KickMember(ctx context.Context, guildID, userID, reason string) error {
	return nil
}
func (a *fakeActions) BanMember(ctx context.Context, guildID, userID, reason string) error {
	return nil
}
func (a *fakeActions) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return nil
}
func (a *fakeActions) SendTimedNotice(ctx context.Context, channelID, text string, ttl time.Duration) error {
	a.notices++
	return nil
}
func (a *fakeActions) SendDirectMessage(ctx context.Context, userID, text string) error { return nil }

type fakeNotifier struct {
	entries []modlog.Entry
}

func (n *fakeNotifier) PostLog(ctx context.Context, guildID string, entry modlog.Entry) {
	n.entries = append(n.entries, entry)
}

func newTestModule(actions *fakeActions) (*Module, *fakeNotifier, *fakeClock) {
	notifier := &fakeNotifier{}
	clock := &fakeClock{now: time.Now()}
	module := New(DefaultConfig(), actions, notifier, zap.NewNop())
	module.WithClock(clock)
	return module, notifier, clock
}

func spamMsg(id string) Message {
	return Message{GuildID: "g1", ChannelID: "c1", MessageID: id, AuthorID: "u1"}
}

func TestBurstTriggersExactlyOneMute(t *testing.T) {
	actions := &fakeActions{status: platform.MemberStatus{Moderatable: true}}
	module, notifier, clock := newTestModule(actions)

	for i := 0; i < 4; i++ {
		if module.HandleMessage(context.Background(), spamMsg("m")) {
			t.Fatalf("triggered before threshold at message %d", i+1)
		}
		clock.now = clock.now.Add(100 * time.Millisecond)
	}
	if !module.HandleMessage(context.Background(), spamMsg("m5")) {
		t.Fatalf("expected trigger on 5th message")
	}
	if actions.timeouts != 1 {
		t.Fatalf("expected 1 timeout, got %d", actions.timeouts)
	}
	if len(notifier.entries) != 1 || notifier.entries[0].Action != "Auto-Mute (Spam)" {
		t.Fatalf("expected one Auto-Mute log entry, got %+v", notifier.entries)
	}

	// State cleared on trigger: the next burst starts counting at 1.
	clock.now = clock.now.Add(100 * time.Millisecond)
	for i := 0; i < 4; i++ {
		if module.HandleMessage(context.Background(), spamMsg("m")) {
			t.Fatalf("counter not reset after trigger")
		}
		clock.now = clock.now.Add(100 * time.Millisecond)
	}
	if actions.timeouts != 1 {
		t.Fatalf("expected no second mute yet, got %d", actions.timeouts)
	}
}

func TestQuietGapRestartsCounter(t *testing.T) {
	actions := &fakeActions{status: platform.MemberStatus{Moderatable: true}}
	module, _, clock := newTestModule(actions)

	for i := 0; i < 4; i++ {
		module.HandleMessage(context.Background(), spamMsg("m"))
		clock.now = clock.now.Add(100 * time.Millisecond)
	}
	clock.now = clock.now.Add(3001 * time.Millisecond)

	// Counter restarted at 1, so four more messages stay under the
	// threshold.
	for i := 0; i < 4; i++ {
		if module.HandleMessage(context.Background(), spamMsg("m")) {
			t.Fatalf("unexpected trigger after quiet gap")
		}
		clock.now = clock.now.Add(100 * time.Millisecond)
	}
	if actions.timeouts != 0 {
		t.Fatalf("expected no mutes, got %d", actions.timeouts)
	}
}

func TestAlreadyMutedSkipsMuteButClearsState(t *testing.T) {
	actions := &fakeActions{status: platform.MemberStatus{Muted: true, Moderatable: true}}
	module, notifier, clock := newTestModule(actions)

	for i := 0; i < 5; i++ {
		module.HandleMessage(context.Background(), spamMsg("m"))
		clock.now = clock.now.Add(100 * time.Millisecond)
	}
	if actions.timeouts != 0 {
		t.Fatalf("expected mute to be skipped for muted member")
	}
	if len(notifier.entries) != 0 {
		t.Fatalf("expected no log entry for skipped mute")
	}

	// State was still cleared, so the very next message does not
	// re-trigger.
	if module.HandleMessage(context.Background(), spamMsg("m")) {
		t.Fatalf("state not cleared after skipped mute")
	}
}

func TestMuteFailureIsSwallowed(t *testing.T) {
	actions := &fakeActions{
		status:     platform.MemberStatus{Moderatable: true},
		timeoutErr: errors.New("missing permissions"),
	}
	module, notifier, clock := newTestModule(actions)

	for i := 0; i < 5; i++ {
		module.HandleMessage(context.Background(), spamMsg("m"))
		clock.now = clock.now.Add(100 * time.Millisecond)
	}
	if actions.timeouts != 0 || actions.notices != 0 || len(notifier.entries) != 0 {
		t.Fatalf("expected failed mute to produce no side effects")
	}
}

func TestUsersTrackedIndependently(t *testing.T) {
	actions := &fakeActions{status: platform.MemberStatus{Moderatable: true}}
	module, _, clock := newTestModule(actions)

	for i := 0; i < 4; i++ {
		module.HandleMessage(context.Background(), Message{GuildID: "g1", ChannelID: "c1", AuthorID: "u1"})
		module.HandleMessage(context.Background(), Message{GuildID: "g1", ChannelID: "c1", AuthorID: "u2"})
		clock.now = clock.now.Add(100 * time.Millisecond)
	}
	if actions.timeouts != 0 {
		t.Fatalf("no user crossed the threshold yet")
	}
	module.HandleMessage(context.Background(), Message{GuildID: "g1", ChannelID: "c1", AuthorID: "u1"})
	if actions.timeouts != 1 {
		t.Fatalf("expected exactly one mute for u1, got %d", actions.timeouts)
	}
}
