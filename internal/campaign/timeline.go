package campaign

import (
	"fmt"
	"math"
	"sort"

	"github.com/morea-atlas/campaign-player/pkg/core"
)

// TimelineEntry is one row of a campaign's event list.
type TimelineEntry struct {
	ClipIndex  int              `json:"clipIndex"`
	EventIndex int              `json:"eventIndex"`
	UnitID     string           `json:"unitId"`
	At         float64          `json:"at"`
	Label      string           `json:"label"`
	Text       string           `json:"text"`
	Coords     *core.Position2D `json:"coords,omitempty"`
}

// Timeline lists every event of c ordered by trigger time. Events with the
// same time keep clip order.
func Timeline(c *core.Campaign) []TimelineEntry {
	if c == nil {
		return nil
	}
	var out []TimelineEntry
	for ci, clip := range c.Clips {
		for ei, ev := range clip.Events {
			out = append(out, TimelineEntry{
				ClipIndex:  ci,
				EventIndex: ei,
				UnitID:     clip.UnitID,
				At:         ev.At,
				Label:      FormatTime(ev.At),
				Text:       ev.Text,
				Coords:     ev.Coords,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out
}

// FormatTime renders a timeline position as mm:ss, treating the integer
// part as minutes and the fraction as a share of a minute.
func FormatTime(t float64) string {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	minutes := math.Floor(t)
	seconds := math.Floor((t - minutes) * 60)
	return fmt.Sprintf("%02d:%02d", int64(minutes), int64(seconds))
}
