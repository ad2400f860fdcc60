package main

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/morea-atlas/campaign-player/internal/campaign"
	"github.com/morea-atlas/campaign-player/internal/catalog"
	"github.com/morea-atlas/campaign-player/internal/history"
	"github.com/morea-atlas/campaign-player/internal/playback"
	"github.com/morea-atlas/campaign-player/internal/render/headless"
	"github.com/morea-atlas/campaign-player/pkg/core"
)

var simOpts simulateOptions

type simulateOptions struct {
	Campaign string
	Step     time.Duration
	Speed    string
	Seek     float64
	Every    int
	MaxSteps int
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Step a campaign offline and print its timeline",
	Long: `Plays a campaign against an in-memory map with a fixed frame step and
prints time updates, fired events and the final camera pose. The output is
deterministic for a given catalog and flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, _, err := app.LoadCatalog(cmd.Context())
		if err != nil {
			return err
		}
		mcfg, err := mapConfig()
		if err != nil {
			return err
		}
		return simulate(cmd.OutOrStdout(), cat, mcfg, simOpts)
	},
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.Campaign, "campaign", "", "campaign id (default the first)")
	f.DurationVar(&simOpts.Step, "dt", 100*time.Millisecond, "wall-clock time per frame")
	f.StringVar(&simOpts.Speed, "speed", "1", "playback speed multiplier")
	f.Float64Var(&simOpts.Seek, "seek", 0, "start time")
	f.IntVar(&simOpts.Every, "every", 10, "print a time update every n frames (0 disables)")
	f.IntVar(&simOpts.MaxSteps, "max-steps", 1_000_000, "stop after this many frames")
}

func simulate(out io.Writer, cat *catalog.Catalog, mcfg headless.Config, opts simulateOptions) error {
	var (
		c   *core.Campaign
		err error
	)
	if opts.Campaign == "" {
		c, err = cat.First()
	} else {
		c, err = cat.Campaign(opts.Campaign)
	}
	if err != nil {
		return err
	}
	if opts.Step <= 0 {
		return fmt.Errorf("--dt must be positive, got %s", opts.Step)
	}

	sched := &playback.StepScheduler{}
	now := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	m := headless.New(mcfg)
	player := campaign.New(campaign.Dependencies{
		Map:       m,
		Routes:    cat.RouteIndex(),
		Scheduler: sched,
		Now:       func() time.Time { return now },
		Logger:    appLogger(),
	}, playerConfig())

	recorder := history.NewRecorder(history.Dependencies{Now: func() time.Time { return now }})
	frame := 0
	player.OnEvent(func(e core.EventPayload) {
		recorder.Record(e)
		fmt.Fprintf(out, "%s  EVENT  %-10s %s\n", campaign.FormatTime(e.At), e.UnitID, e.Text)
	})
	player.OnTimeUpdate(func(t, maxTime float64) {
		if opts.Every > 0 && frame%opts.Every == 0 {
			line := fmt.Sprintf("%s  time %6.2f / %.2f  units %d", campaign.FormatTime(t), t, maxTime, len(player.Units()))
			if lead, ok := player.Lead(); ok {
				line += fmt.Sprintf("  lead %s (%.4f, %.4f)", lead.Unit.ID, lead.Position.X, lead.Position.Y)
			}
			fmt.Fprintln(out, line)
		}
	})

	if err := player.SetCampaign(c); err != nil {
		return err
	}
	fmt.Fprintf(out, "campaign %s  %q  %s  max %.2f\n", c.ID, c.Title, c.TimeSpanLabel, player.MaxTime())

	player.SetSpeed(playback.ParseSpeed(opts.Speed))
	if opts.Seek > 0 {
		player.SetTime(opts.Seek)
	}
	player.Play()

	for frame = 1; frame <= opts.MaxSteps && player.IsPlaying(); frame++ {
		now = now.Add(opts.Step)
		if sched.Step(now) == 0 {
			break
		}
	}

	cam := m.State()
	fmt.Fprintf(out, "finished at %s after %d frames, %d events fired\n",
		campaign.FormatTime(player.Time()), frame-1, len(recorder.Recent(c.ID)))
	fmt.Fprintf(out, "camera center (%.4f, %.4f) zoom %.2f\n", cam.Center.X, cam.Center.Y, round2(cam.Zoom))
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
