package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/morea-atlas/campaign-player/internal/database"
	"github.com/morea-atlas/campaign-player/internal/model"
	"github.com/morea-atlas/campaign-player/pkg/core"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	m := database.NewManager(zerolog.Nop())
	m.SqliteFilePath = filepath.Join(t.TempDir(), "history.db")
	require.NoError(t, m.Connect("sqlite"))
	require.NoError(t, m.Setup())
	t.Cleanup(func() { m.Close() })
	return m.DB
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func event(campaignID string, idx int, text string) core.EventPayload {
	return core.EventPayload{CampaignID: campaignID, ClipIndex: 0, EventIndex: idx, UnitID: "host", At: float64(idx), Text: text}
}

func TestRecentWithoutDB(t *testing.T) {
	r := NewRecorder(Dependencies{})
	assert.NotEmpty(t, r.SessionID())

	r.Record(event("prinitza", 0, "Landing"))
	r.Record(event("makryplagi", 0, "Muster"))
	r.Record(event("prinitza", 1, "Ambush"))

	all := r.Recent("")
	require.Len(t, all, 3)
	assert.Equal(t, r.SessionID(), all[0].SessionID)

	pr := r.Recent("prinitza")
	require.Len(t, pr, 2)
	assert.Equal(t, "Ambush", pr[1].Text)

	assert.Zero(t, r.Pending())
	assert.NoError(t, r.Flush(context.Background()))
	assert.NoError(t, r.Stop())
}

func TestRecentIsBounded(t *testing.T) {
	r := NewRecorder(Dependencies{})
	for i := 0; i < defaultRecent+10; i++ {
		r.Record(event("c", i, "e"))
	}
	recent := r.Recent("")
	require.Len(t, recent, defaultRecent)
	assert.Equal(t, 10, recent[0].EventIndex)
}

func TestFlushAndLoad(t *testing.T) {
	db := openTestDB(t)
	c := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRecorder(Dependencies{DB: db, Now: c.now})

	withCoords := event("prinitza", 1, "Ambush")
	withCoords.Coords = &core.Position2D{X: 21.9, Y: 37.5}
	r.Record(event("prinitza", 0, "Landing"))
	r.Record(withCoords)
	r.Record(event("makryplagi", 0, "Muster"))
	assert.Equal(t, 3, r.Pending())

	require.NoError(t, r.Flush(context.Background()))
	assert.Zero(t, r.Pending())

	var count int64
	require.NoError(t, db.Model(&model.PlaybackEvent{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	entries, err := Load(context.Background(), db, "prinitza", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Ambush", entries[0].Text)
	require.NotNil(t, entries[0].Coords)
	assert.Equal(t, 37.5, entries[0].Coords.Y)
	assert.Nil(t, entries[1].Coords)
	assert.Equal(t, r.SessionID(), entries[1].SessionID)

	limited, err := Load(context.Background(), db, "prinitza", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestFlushFailureRequeues(t *testing.T) {
	db := openTestDB(t)
	r := NewRecorder(Dependencies{DB: db})
	r.Record(event("prinitza", 0, "Landing"))

	require.NoError(t, db.Migrator().DropTable(&model.PlaybackEvent{}))
	assert.Error(t, r.Flush(context.Background()))
	assert.Equal(t, 1, r.Pending())

	require.NoError(t, db.AutoMigrate(&model.PlaybackEvent{}))
	require.NoError(t, r.Flush(context.Background()))
	assert.Zero(t, r.Pending())
}

func TestStartStop(t *testing.T) {
	db := openTestDB(t)
	r := NewRecorder(Dependencies{DB: db})
	r.Start(context.Background(), 5*time.Millisecond)
	r.Start(context.Background(), 5*time.Millisecond)

	r.Record(event("prinitza", 0, "Landing"))
	require.Eventually(t, func() bool { return r.Pending() == 0 }, time.Second, 5*time.Millisecond)

	r.Record(event("prinitza", 1, "Ambush"))
	require.NoError(t, r.Stop())
	assert.Zero(t, r.Pending())
	assert.NoError(t, r.LastError())
}
