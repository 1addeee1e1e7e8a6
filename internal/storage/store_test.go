package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/broadcastmonitor/internal/broadcast"
)

// openTestStore creates a migrated in-memory Store for testing.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})
	return store
}

func newEvent(action string) *Event {
	return &Event{
		Action:      action,
		Source:      "ContextImpl-sendBroadcast",
		PackageName: "No Package",
		Extras:      broadcast.NoExtras,
		Category:    broadcast.DefaultCategory,
		Priority:    broadcast.DefaultPriority,
	}
}

// --- AddEvent + GetEvent roundtrip ---

func TestAddEvent_GetEvent_Roundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.UTC)
	event := &Event{
		Timestamp:   ts,
		Action:      "android.intent.action.PHONE_STATE",
		Source:      "System-AMS",
		PackageName: "com.android.phone",
		Extras:      "state: RINGING",
		Category:    "Security Related",
		Priority:    1,
	}
	require.NoError(t, store.AddEvent(ctx, event))

	assert.Regexp(t, `^BCM-[0-9a-f]{8}$`, event.ID)

	got, err := store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, got.ID)
	assert.True(t, ts.Equal(got.Timestamp), "millisecond timestamp should survive: %v", got.Timestamp)
	assert.Equal(t, "android.intent.action.PHONE_STATE", got.Action)
	assert.Equal(t, "System-AMS", got.Source)
	assert.Equal(t, "com.android.phone", got.PackageName)
	assert.Equal(t, "state: RINGING", got.Extras)
	assert.Equal(t, "Security Related", got.Category)
	assert.Equal(t, 1, got.Priority)
}

func TestAddEvent_Defaults(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	event := &Event{Action: "com.example.BARE"}
	require.NoError(t, store.AddEvent(ctx, event))

	got, err := store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, broadcast.UnknownSource, got.Source)
	assert.Equal(t, broadcast.DefaultCategory, got.Category)
	assert.Equal(t, broadcast.DefaultPriority, got.Priority)
}

func TestAddEvent_GeneratesUniqueIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	e1 := newEvent("com.example.A")
	e2 := newEvent("com.example.B")
	require.NoError(t, store.AddEvent(ctx, e1))
	require.NoError(t, store.AddEvent(ctx, e2))

	assert.NotEqual(t, e1.ID, e2.ID, "IDs should be unique")
}

func TestFromBroadcast_RoundTrip(t *testing.T) {
	live := broadcast.Event{
		Timestamp:   "2024-01-02 03:04:05.678",
		Action:      "android.intent.action.MEDIA_MOUNTED",
		Source:      "ContextImpl-sendBroadcast",
		PackageName: "No Package",
		Extras:      "path: /sdcard",
		Category:    "Media Related",
		Priority:    3,
	}

	archived := FromBroadcast(live)
	assert.False(t, archived.Timestamp.IsZero())
	assert.Equal(t, live, archived.Broadcast())

	bad := FromBroadcast(broadcast.Event{Timestamp: "yesterday", Action: "a"})
	assert.True(t, bad.Timestamp.IsZero())
}

func TestGetEvent_NotFound(t *testing.T) {
	store := openTestStore(t)

	got, err := store.GetEvent(context.Background(), "BCM-00000000")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, got)
}

// --- SearchEvents ---

func TestSearchEvents_ByQuery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	phone := newEvent("android.intent.action.PHONE_STATE")
	phone.Extras = "state: RINGING"
	media := newEvent("android.intent.action.MEDIA_MOUNTED")
	pkg := newEvent("com.example.PING")
	pkg.PackageName = "com.example.ringtones"
	for _, e := range []*Event{phone, media, pkg} {
		require.NoError(t, store.AddEvent(ctx, e))
	}

	results, err := store.SearchEvents(ctx, SearchQuery{Query: "ring"})
	require.NoError(t, err)
	ids := []string{}
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{phone.ID, pkg.ID}, ids)

	results, err = store.SearchEvents(ctx, SearchQuery{Query: "MEDIA mounted"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, media.ID, results[0].ID)
}

func TestSearchEvents_QueryEscapesWildcards(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	plain := newEvent("com.example.ACTIONX")
	underscored := newEvent("com.example.ACTION_X")
	require.NoError(t, store.AddEvent(ctx, plain))
	require.NoError(t, store.AddEvent(ctx, underscored))

	results, err := store.SearchEvents(ctx, SearchQuery{Query: "ACTION_X"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, underscored.ID, results[0].ID)

	results, err = store.SearchEvents(ctx, SearchQuery{Query: "%"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchEvents_Filters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sec := newEvent("android.intent.action.PHONE_STATE")
	sec.Category = "Security Related"
	sec.Priority = 1
	sec.Source = "System-AMS"
	pkg := newEvent("android.intent.action.PACKAGE_ADDED")
	pkg.Category = "System General"
	pkg.Priority = 2
	pkg.PackageName = "com.android.vending"
	other := newEvent("com.example.PING")
	for _, e := range []*Event{sec, pkg, other} {
		require.NoError(t, store.AddEvent(ctx, e))
	}

	tests := []struct {
		name string
		q    SearchQuery
		want []string
	}{
		{"source", SearchQuery{Source: "System-AMS"}, []string{sec.ID}},
		{"category", SearchQuery{Category: "System General"}, []string{pkg.ID}},
		{"package", SearchQuery{PackageName: "com.android.vending"}, []string{pkg.ID}},
		{"max priority", SearchQuery{MaxPriority: 2}, []string{sec.ID, pkg.ID}},
		{"combined", SearchQuery{MaxPriority: 2, Source: "System-AMS"}, []string{sec.ID}},
		{"none", SearchQuery{}, []string{sec.ID, pkg.ID, other.ID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results, err := store.SearchEvents(ctx, tc.q)
			require.NoError(t, err)
			ids := []string{}
			for _, r := range results {
				ids = append(ids, r.ID)
			}
			assert.ElementsMatch(t, tc.want, ids)
		})
	}
}

func TestSearchEvents_ByTimeRangeNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	old := newEvent("com.example.OLD")
	old.Timestamp = now.Add(-72 * time.Hour)
	mid := newEvent("com.example.MID")
	mid.Timestamp = now.Add(-24 * time.Hour)
	recent := newEvent("com.example.RECENT")
	recent.Timestamp = now
	for _, e := range []*Event{old, recent, mid} {
		require.NoError(t, store.AddEvent(ctx, e))
	}

	results, err := store.SearchEvents(ctx, SearchQuery{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{recent.ID, mid.ID, old.ID}, []string{results[0].ID, results[1].ID, results[2].ID})

	results, err = store.SearchEvents(ctx, SearchQuery{Since: now.Add(-48 * time.Hour), Until: now.Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, mid.ID, results[0].ID)
}

func TestSearchEvents_Pagination(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		e := newEvent("com.example.PAGE")
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.AddEvent(ctx, e))
	}

	page1, err := store.SearchEvents(ctx, SearchQuery{Limit: 2})
	require.NoError(t, err)
	page2, err := store.SearchEvents(ctx, SearchQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	page3, err := store.SearchEvents(ctx, SearchQuery{Limit: 2, Offset: 4})
	require.NoError(t, err)

	assert.Len(t, page1, 2)
	assert.Len(t, page2, 2)
	assert.Len(t, page3, 1)
	assert.NotEqual(t, page1[0].ID, page2[0].ID)
}

func TestSearchEvents_DefaultLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < defaultSearchLimit+5; i++ {
		require.NoError(t, store.AddEvent(ctx, newEvent("com.example.MANY")))
	}

	results, err := store.SearchEvents(ctx, SearchQuery{})
	require.NoError(t, err)
	assert.Len(t, results, defaultSearchLimit)
}

func TestSearchEvents_EmptyIsNotNil(t *testing.T) {
	store := openTestStore(t)
	results, err := store.SearchEvents(context.Background(), SearchQuery{Query: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

// --- DeleteEvent ---

func TestDeleteEvent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	e := newEvent("com.example.DELETE")
	require.NoError(t, store.AddEvent(ctx, e))
	require.NoError(t, store.DeleteEvent(ctx, e.ID))

	_, err := store.GetEvent(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.DeleteEvent(ctx, e.ID), ErrNotFound)
}

// --- PruneExpired ---

func TestPruneExpired(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	old1 := newEvent("com.example.OLD1")
	old1.Timestamp = now.Add(-72 * time.Hour)
	old2 := newEvent("com.example.OLD2")
	old2.Timestamp = now.Add(-48 * time.Hour)
	recent := newEvent("com.example.RECENT")
	recent.Timestamp = now
	for _, e := range []*Event{old1, old2, recent} {
		require.NoError(t, store.AddEvent(ctx, e))
	}

	cutoff := now.Add(-24 * time.Hour)
	n, err := store.CountExpired(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	pruned, err := store.PruneExpired(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned, "should prune 2 old events")

	_, err = store.GetEvent(ctx, recent.ID)
	require.NoError(t, err)
	_, err = store.GetEvent(ctx, old1.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	var audits int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM audit_log WHERE action = 'prune'").Scan(&audits))
	assert.Equal(t, 1, audits)
}

// --- PurgeAll ---

func TestPurgeAll(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddEvent(ctx, newEvent("com.example.A")))
	require.NoError(t, store.AddEvent(ctx, newEvent("com.example.B")))
	require.NoError(t, store.AddExclusion(ctx, RuleAction, "com.example.SECRET", "test"))

	require.NoError(t, store.PurgeAll(ctx))

	results, err := store.SearchEvents(ctx, SearchQuery{Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, results, "should have no events after purge")
	assert.True(t, store.IsExcluded("com.example.SECRET"), "exclusions survive a purge")
}

// --- Exclusions ---

func TestAddEvent_SkipsDefaultExclusions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, action := range []string{broadcast.DataAction, "android.intent.action.TIME_TICK", "android.intent.action.TIME_SET"} {
		e := newEvent(action)
		require.NoError(t, store.AddEvent(ctx, e))
		assert.Empty(t, e.ID, "%s should not be archived", action)
	}

	e := newEvent("android.intent.action.TIME_SETTINGS")
	require.NoError(t, store.AddEvent(ctx, e))
	assert.NotEmpty(t, e.ID)
}

func TestAddExclusion(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddExclusion(ctx, RuleAction, "android.provider.Telephony.SMS_RECEIVED", "sms bodies"))
	require.NoError(t, store.AddExclusion(ctx, RuleRegex, `^com\.bank\.`, "banking"))
	require.NoError(t, store.AddExclusion(ctx, RuleAction, "android.provider.Telephony.SMS_RECEIVED", "duplicate"))

	for _, action := range []string{"android.provider.Telephony.SMS_RECEIVED", "com.bank.LOGIN"} {
		e := newEvent(action)
		require.NoError(t, store.AddEvent(ctx, e))
		assert.Empty(t, e.ID, "%s should be excluded", action)
	}

	assert.Error(t, store.AddExclusion(ctx, RuleRegex, "(", "broken"))
	assert.Error(t, store.AddExclusion(ctx, "domain", "example.com", "wrong type"))
}

// --- GetStats ---

func TestGetStats_EmptyDB(t *testing.T) {
	store := openTestStore(t)

	stats, err := store.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalEvents)
	assert.True(t, stats.OldestEvent.IsZero())
	assert.Empty(t, stats.TopCategories)
}

func TestGetStats_WithData(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	e1 := newEvent("android.intent.action.PHONE_STATE")
	e1.Category = "Security Related"
	e1.Source = "System-AMS"
	e2 := newEvent("android.intent.action.NEW_OUTGOING_CALL")
	e2.Category = "Security Related"
	e3 := newEvent("com.example.PING")
	for _, e := range []*Event{e1, e2, e3} {
		require.NoError(t, store.AddEvent(ctx, e))
	}

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEvents)
	assert.False(t, stats.OldestEvent.IsZero())
	assert.False(t, stats.NewestEvent.IsZero())
	assert.Greater(t, stats.DatabaseSizeBytes, int64(0))

	require.NotEmpty(t, stats.TopCategories)
	assert.Equal(t, ValueCount{Value: "Security Related", Count: 2}, stats.TopCategories[0])
	require.NotEmpty(t, stats.TopSources)
	assert.Equal(t, ValueCount{Value: "ContextImpl-sendBroadcast", Count: 2}, stats.TopSources[0])
}

// --- Open ---

func TestOpen_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "archive.db")

	store, db, err := Open(path)
	require.NoError(t, err)
	e := newEvent("com.example.PERSIST")
	require.NoError(t, store.AddEvent(context.Background(), e))
	store.Close()
	db.Close()

	store, db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	defer store.Close()

	got, err := store.GetEvent(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "com.example.PERSIST", got.Action)
}

// --- Close ---

func TestClose(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.Close())
}
