package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func appendAt(t *testing.T, store *Store, action ActionType, target string, reason string, at time.Time) {
	t.Helper()
	err := store.AppendRecord(context.Background(), ModerationRecord{
		GuildID:     "g1",
		Action:      action,
		TargetID:    target,
		ModeratorID: "mod1",
		Reason:      reason,
		CreatedAt:   at,
	})
	require.NoError(t, err)
}

func TestRecordsByTargetOrderingAndFilter(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Truncate(time.Millisecond)

	appendAt(t, store, ActionWarn, "u1", "first", base)
	appendAt(t, store, ActionMute, "u1", "muted", base.Add(time.Second))
	appendAt(t, store, ActionAutoWarn, "u1", "second", base.Add(2*time.Second))
	appendAt(t, store, ActionWarn, "u2", "other user", base.Add(3*time.Second))

	records, err := store.RecordsByTarget(context.Background(), "g1", "u1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "second", records[0].Reason)
	require.Equal(t, "muted", records[1].Reason)
	require.Equal(t, "first", records[2].Reason)

	warns, err := store.RecordsByTarget(context.Background(), "g1", "u1", WarnActions...)
	require.NoError(t, err)
	require.Len(t, warns, 2)
	require.Equal(t, ActionAutoWarn, warns[0].Action)
	require.Equal(t, ActionWarn, warns[1].Action)
}

func TestCountWarningsExcludesOtherActions(t *testing.T) {
	store := newTestStore(t)
	base := time.Now()

	appendAt(t, store, ActionWarn, "u1", "one", base)
	appendAt(t, store, ActionAutoWarn, "u1", "two", base.Add(time.Second))
	appendAt(t, store, ActionMute, "u1", "ignored", base.Add(2*time.Second))
	appendAt(t, store, ActionBan, "u1", "ignored", base.Add(3*time.Second))

	count, err := store.CountWarnings(context.Background(), "g1", "u1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestEditWarnReason(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Truncate(time.Millisecond)

	appendAt(t, store, ActionWarn, "u1", "oldest", base)
	appendAt(t, store, ActionWarn, "u1", "newest", base.Add(time.Second))

	// Case 1 addresses the most recent warning.
	updated, err := store.EditWarnReason(context.Background(), "g1", "u1", 1, "corrected", "mod2")
	require.NoError(t, err)
	require.Equal(t, "corrected", updated.Reason)
	require.Equal(t, ActionWarn, updated.Action)
	require.Equal(t, "mod2", updated.EditedBy)
	require.NotNil(t, updated.EditedAt)
	require.Equal(t, base.Add(time.Second).UnixMilli(), updated.CreatedAt.UnixMilli())

	records, err := store.RecordsByTarget(context.Background(), "g1", "u1", ActionWarn)
	require.NoError(t, err)
	require.Equal(t, "corrected", records[0].Reason)
	require.Equal(t, "oldest", records[1].Reason)
	require.Nil(t, records[1].EditedAt)
}

func TestEditWarnReasonCaseOutOfRange(t *testing.T) {
	store := newTestStore(t)
	appendAt(t, store, ActionWarn, "u1", "only", time.Now())

	_, err := store.EditWarnReason(context.Background(), "g1", "u1", 2, "nope", "mod1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.EditWarnReason(context.Background(), "g1", "u1", 0, "nope", "mod1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEditWarnReasonIgnoresNonWarnRecords(t *testing.T) {
	store := newTestStore(t)
	base := time.Now()

	appendAt(t, store, ActionMute, "u1", "mute", base)
	appendAt(t, store, ActionWarn, "u1", "warn", base.Add(time.Second))

	// Only the warn is addressable; the mute never shifts case numbers.
	updated, err := store.EditWarnReason(context.Background(), "g1", "u1", 1, "edited", "mod1")
	require.NoError(t, err)
	require.Equal(t, ActionWarn, updated.Action)

	_, err = store.EditWarnReason(context.Background(), "g1", "u1", 2, "nope", "mod1")
	require.ErrorIs(t, err, ErrNotFound)
}
