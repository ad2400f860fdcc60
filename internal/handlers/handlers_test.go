package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morea-atlas/campaign-player/internal/campaign"
	"github.com/morea-atlas/campaign-player/internal/catalog"
	"github.com/morea-atlas/campaign-player/internal/dispatcher"
	"github.com/morea-atlas/campaign-player/internal/playback"
	"github.com/morea-atlas/campaign-player/internal/render/headless"
	"github.com/morea-atlas/campaign-player/pkg/core"
)

// inline runs tasks on the calling goroutine.
type inline struct{ calls int }

func (i *inline) Do(ctx context.Context, fn func()) error {
	i.calls++
	fn()
	return nil
}

type stoppedLoop struct{}

func (stoppedLoop) Do(context.Context, func()) error { return playback.ErrLoopStopped }

func testCatalog() *catalog.Catalog {
	routes := []core.Route{
		{ID: "coast", Points: core.Polyline{{X: 22.0, Y: 36.5}, {X: 22.8, Y: 37.2}}},
	}
	campaigns := []core.Campaign{
		{
			ID:    "prinitza",
			Title: "Prinitza 1263",
			Units: []core.Unit{{ID: "host", Name: "Imperial Host", Size: 1}},
			Clips: []core.Clip{{
				UnitID: "host", RouteID: "coast", T0: 0, T1: 8,
				Events: []core.Event{
					{At: 2, Text: "Landing at Monemvasia"},
					{At: 6, Text: "Ambush", Coords: &core.Position2D{X: 21.9, Y: 37.5}},
				},
			}},
		},
		{
			ID:    "empty",
			Title: "No clips",
		},
	}
	return catalog.New(routes, campaigns)
}

type fixture struct {
	d      *dispatcher.Dispatcher
	player *campaign.Player
	loop   *inline
	m      *headless.Map
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := testCatalog()
	m := headless.New(headless.Config{})
	p := campaign.New(campaign.Dependencies{
		Map:       m,
		Routes:    cat.RouteIndex(),
		Scheduler: &playback.StepScheduler{},
		Now:       func() time.Time { return time.Unix(0, 0) },
	}, campaign.DefaultConfig())

	d, err := dispatcher.New(nil)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	loop := &inline{}
	NewService(Dependencies{Player: p, Catalog: cat, Loop: loop}).RegisterHandlers(d)
	return &fixture{d: d, player: p, loop: loop, m: m}
}

func (f *fixture) run(t *testing.T, command string, args ...string) (Status, error) {
	t.Helper()
	res, err := f.d.Dispatch(dispatcher.Event{Command: command, Args: args})
	if err != nil {
		return Status{}, err
	}
	st, ok := res.(Status)
	require.True(t, ok, "result %T", res)
	return st, nil
}

func TestRegisterHandlers(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{
		":CAMPAIGN:", ":JUMP:EVENT:", ":PAUSE:", ":PLAY:", ":SEEK:", ":SPEED:", ":STATUS:", ":TOGGLE:",
	}, f.d.Commands())
}

func TestCommandsWithoutCampaign(t *testing.T) {
	f := newFixture(t)

	for _, cmd := range []string{":PLAY:", ":TOGGLE:"} {
		_, err := f.run(t, cmd)
		assert.ErrorIs(t, err, campaign.ErrNoCampaign, cmd)
	}
	_, err := f.run(t, ":SEEK:", "3")
	assert.ErrorIs(t, err, campaign.ErrNoCampaign)

	st, err := f.run(t, ":STATUS:")
	require.NoError(t, err)
	assert.Empty(t, st.CampaignID)
	assert.Equal(t, "00:00", st.Label)
}

func TestCampaignCommand(t *testing.T) {
	f := newFixture(t)

	st, err := f.run(t, ":CAMPAIGN:", " prinitza ")
	require.NoError(t, err)
	assert.Equal(t, "prinitza", st.CampaignID)
	assert.Equal(t, "Prinitza 1263", st.Title)
	assert.Equal(t, 8.0, st.MaxTime)
	assert.Equal(t, 1, st.Units)
	assert.False(t, st.Playing)

	_, err = f.run(t, ":CAMPAIGN:", "nowhere")
	assert.ErrorIs(t, err, catalog.ErrCampaignNotFound)

	_, err = f.run(t, ":CAMPAIGN:", "empty")
	assert.ErrorIs(t, err, campaign.ErrNoClips)

	_, err = f.run(t, ":CAMPAIGN:")
	assert.ErrorIs(t, err, ErrBadArgs)

	// failed switches leave the previous campaign active
	assert.Equal(t, "prinitza", f.player.Campaign().ID)
}

func TestTransportCommands(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, ":CAMPAIGN:", "prinitza")
	require.NoError(t, err)

	st, err := f.run(t, ":PLAY:")
	require.NoError(t, err)
	assert.True(t, st.Playing)

	st, err = f.run(t, ":TOGGLE:")
	require.NoError(t, err)
	assert.False(t, st.Playing)

	st, err = f.run(t, ":TOGGLE:")
	require.NoError(t, err)
	assert.True(t, st.Playing)

	st, err = f.run(t, ":PAUSE:")
	require.NoError(t, err)
	assert.False(t, st.Playing)
}

func TestSeekCommand(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, ":CAMPAIGN:", "prinitza")
	require.NoError(t, err)

	st, err := f.run(t, ":SEEK:", "4.5")
	require.NoError(t, err)
	assert.Equal(t, 4.5, st.Time)
	assert.Equal(t, "04:30", st.Label)
	assert.True(t, f.player.Fired(0, 0))
	assert.False(t, f.player.Fired(0, 1))

	st, err = f.run(t, ":SEEK:", "99")
	require.NoError(t, err)
	assert.Equal(t, 8.0, st.Time)

	_, err = f.run(t, ":SEEK:", "soon")
	assert.ErrorIs(t, err, ErrBadArgs)
	_, err = f.run(t, ":SEEK:")
	assert.ErrorIs(t, err, ErrBadArgs)
}

func TestSpeedCommand(t *testing.T) {
	f := newFixture(t)

	st, err := f.run(t, ":SPEED:", "4")
	require.NoError(t, err)
	assert.Equal(t, 4.0, st.Speed)

	st, err = f.run(t, ":SPEED:", "warp")
	require.NoError(t, err)
	assert.Equal(t, 1.0, st.Speed)

	_, err = f.run(t, ":SPEED:")
	assert.ErrorIs(t, err, ErrBadArgs)
}

func TestJumpEventCommand(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, ":CAMPAIGN:", "prinitza")
	require.NoError(t, err)

	st, err := f.run(t, ":JUMP:EVENT:", "0", "1")
	require.NoError(t, err)
	assert.Equal(t, 6.0, st.Time)
	assert.Equal(t, core.Position2D{X: 21.9, Y: 37.5}, f.m.State().Center)

	_, err = f.run(t, ":JUMP:EVENT:", "0", "7")
	assert.ErrorIs(t, err, campaign.ErrEventNotFound)

	_, err = f.run(t, ":JUMP:EVENT:", "0")
	assert.ErrorIs(t, err, ErrBadArgs)
	_, err = f.run(t, ":JUMP:EVENT:", "x", "0")
	assert.ErrorIs(t, err, ErrBadArgs)
}

func TestCommandsRunOnLoop(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, ":STATUS:")
	require.NoError(t, err)
	_, err = f.run(t, ":SPEED:", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, f.loop.calls)

	// argument errors never reach the loop
	_, err = f.run(t, ":SEEK:", "bad")
	require.Error(t, err)
	assert.Equal(t, 2, f.loop.calls)
}

func TestStoppedLoop(t *testing.T) {
	cat := testCatalog()
	p := campaign.New(campaign.Dependencies{Map: headless.New(headless.Config{}), Scheduler: &playback.StepScheduler{}}, campaign.DefaultConfig())
	s := NewService(Dependencies{Player: p, Catalog: cat, Loop: stoppedLoop{}})

	_, err := s.Status(context.Background())
	assert.True(t, errors.Is(err, playback.ErrLoopStopped))
}

func TestWithRunningLoop(t *testing.T) {
	cat := testCatalog()
	loop := playback.NewLoop(120, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	p := campaign.New(campaign.Dependencies{
		Map:       headless.New(headless.Config{}),
		Routes:    cat.RouteIndex(),
		Scheduler: loop,
	}, campaign.DefaultConfig())
	d, err := dispatcher.New(nil)
	require.NoError(t, err)
	defer d.Close()
	NewService(Dependencies{Player: p, Catalog: cat, Loop: loop}).RegisterHandlers(d)

	_, err = d.Dispatch(dispatcher.Event{Command: ":CAMPAIGN:", Args: []string{"prinitza"}})
	require.NoError(t, err)
	_, err = d.Dispatch(dispatcher.Event{Command: ":SPEED:", Args: []string{"8"}})
	require.NoError(t, err)
	_, err = d.Dispatch(dispatcher.Event{Command: ":PLAY:"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		res, err := d.Dispatch(dispatcher.Event{Command: ":STATUS:"})
		if err != nil {
			return false
		}
		return res.(Status).Time > 0
	}, 2*time.Second, 20*time.Millisecond)
}
