package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/morea-atlas/campaign-player/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestdata(t *testing.T) *Catalog {
	t.Helper()
	cat, err := FileSource{
		RoutesPath:    filepath.Join("testdata", "routes.geojson"),
		CampaignsPath: filepath.Join("testdata", "campaigns.json"),
	}.Load(context.Background())
	require.NoError(t, err)
	return cat
}

func TestCatalog_Campaign(t *testing.T) {
	cat := loadTestdata(t)

	c, err := cat.Campaign("makryplagi-1264")
	require.NoError(t, err)
	assert.Equal(t, "Makryplagi", c.Title)

	_, err = cat.Campaign("pelagonia-1259")
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}

func TestCatalog_First(t *testing.T) {
	cat := loadTestdata(t)

	c, err := cat.First()
	require.NoError(t, err)
	assert.Equal(t, "prinitza-1263", c.ID)

	_, err = New(nil, nil).First()
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestCatalog_RouteIndex(t *testing.T) {
	cat := loadTestdata(t)

	idx := cat.RouteIndex()
	assert.Equal(t, 2, idx.Len())
	length, ok := idx.Length("monemvasia-mistra")
	require.True(t, ok)
	assert.Greater(t, length, 60.0)
	assert.Less(t, length, 90.0)
}

func TestCatalog_CheckClean(t *testing.T) {
	assert.Empty(t, loadTestdata(t).Check())
}

func TestCatalog_CheckProblems(t *testing.T) {
	cat := New(
		[]core.Route{{ID: "r", Points: core.Polyline{{X: 0, Y: 0}, {X: 1, Y: 1}}}},
		[]core.Campaign{
			{ID: "empty"},
			{
				ID:    "broken",
				Units: []core.Unit{{ID: "u"}},
				Clips: []core.Clip{
					{UnitID: "ghost", RouteID: "r", T0: 0, T1: 1},
					{UnitID: "u", RouteID: "nowhere", T0: 5, T1: 2},
				},
			},
		},
	)

	problems := cat.Check()
	require.Len(t, problems, 4)
	assert.Equal(t, "empty: no clips", problems[0].String())
	assert.Equal(t, "broken clip 0: unknown unit ghost", problems[1].String())
	assert.Equal(t, "broken clip 1: unknown route nowhere", problems[2].String())
	assert.Equal(t, "broken clip 1: t1 2.00 before t0 5.00", problems[3].String())
}
