package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/morea-atlas/campaign-player/internal/campaign"
	"github.com/morea-atlas/campaign-player/internal/catalog"
	"github.com/morea-atlas/campaign-player/internal/dispatcher"
	"github.com/morea-atlas/campaign-player/internal/handlers"
	"github.com/morea-atlas/campaign-player/internal/history"
	"github.com/morea-atlas/campaign-player/internal/influx"
	"github.com/morea-atlas/campaign-player/internal/monitor"
	"github.com/morea-atlas/campaign-player/internal/playback"
	"github.com/morea-atlas/campaign-player/internal/render/headless"
	"github.com/morea-atlas/campaign-player/internal/server"
	"github.com/morea-atlas/campaign-player/internal/stream"
	"github.com/morea-atlas/campaign-player/pkg/core"
	"github.com/morea-atlas/campaign-player/pkg/streaming"
)

const shutdownTimeout = 5 * time.Second

var (
	serveAddr     string
	serveCampaign string
	serveAutoplay bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the playback loop and stream it to map clients",
	Long: `Loads the catalog, activates a campaign and serves:

  GET  /healthcheck
  GET  /api/status, /api/history, /api/routes, /api/campaigns[/{id}[/timeline]]
  POST /api/commands/{play|pause|toggle|seek|speed|campaign|jump-event|status}
  GET  /ws?codec=json|msgpack   live marker, camera and time updates`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.address)")
	serveCmd.Flags().StringVar(&serveCampaign, "campaign", "", "campaign to activate (default the first)")
	serveCmd.Flags().BoolVar(&serveAutoplay, "play", false, "start playing immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := app.Logger

	cat, catalogDB, err := app.LoadCatalog(ctx)
	if err != nil {
		return err
	}

	historyDB, err := app.HistoryDatabase(catalogDB)
	if err != nil {
		return err
	}
	recorderDeps := history.Dependencies{Logger: logger}
	if historyDB != nil {
		recorderDeps.DB = historyDB.DB
	}
	recorder := history.NewRecorder(recorderDeps)

	influxManager := influx.NewManager(
		app.Zerolog.With().Str("component", "influx").Logger(),
		app.LogFilePath+".influx.gz",
	)
	var points monitor.PointWriter
	switch err := influxManager.Connect(ctx); {
	case errors.Is(err, influx.ErrDisabled):
	case err != nil:
		logger.Warn("InfluxDB unavailable", "error", err)
	default:
		points = influxManager
		app.OnClose(influxManager.Close)
	}

	fired, err := app.OTel.Meter("github.com/morea-atlas/campaign-player").Int64Counter(
		"player.events.fired",
		metric.WithDescription("Narrative events fired during playback"),
	)
	if err != nil {
		return fmt.Errorf("creating events counter: %w", err)
	}

	loop := playback.NewLoop(viper.GetInt("playback.frameRate"), logger)
	commands, err := dispatcher.New(logger)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer commands.Close()

	mcfg, err := mapConfig()
	if err != nil {
		return err
	}
	authoritative := headless.New(mcfg)

	var player *campaign.Player
	hub := stream.NewHub(commands, func(ctx context.Context) (streaming.SnapshotPayload, error) {
		var snap streaming.SnapshotPayload
		err := loop.Do(ctx, func() {
			c := player.Campaign()
			snap = streaming.SnapshotPayload{
				Campaign: c,
				Routes:   campaignRoutes(cat, c),
				Markers:  authoritative.Markers(),
				Camera:   authoritative.State(),
				Time:     timeUpdate(player),
			}
		})
		return snap, err
	}, logger)
	defer hub.Close()

	player = campaign.New(campaign.Dependencies{
		Map:       stream.NewMap(authoritative, hub),
		Routes:    cat.RouteIndex(),
		Scheduler: loop,
		Logger:    logger,
	}, playerConfig())

	player.OnCampaign(func(c *core.Campaign) {
		app.Session.SetCampaign(c.ID, c.Title, len(c.Units), c.MaxTime())
		hub.Broadcast(streaming.TypeCampaignLoaded, streaming.CampaignLoadedPayload{
			Campaign: c,
			Routes:   campaignRoutes(cat, c),
		})
		logger.Info("Campaign loaded", "campaign", c.ID, "units", len(c.Units), "clips", len(c.Clips))
	})
	publishPlayback(player, app.Session, hub)
	player.OnEvent(func(e core.EventPayload) {
		app.Session.EventFired()
		hub.Broadcast(streaming.TypeEvent, e)
		recorder.Record(e)
		fired.Add(context.Background(), 1, metric.WithAttributes(attribute.String("campaign", e.CampaignID)))
		if points != nil {
			if err := points.WritePoint(influx.BucketPlayback, influx.EventPoint(e, time.Now())); err != nil {
				logger.Debug("Failed to write event point", "error", err)
			}
		}
		logger.Info("Event fired", "campaign", e.CampaignID, "at", campaign.FormatTime(e.At), "text", e.Text)
	})

	handlers.NewService(handlers.Dependencies{
		Player:  player,
		Catalog: cat,
		Loop:    loop,
		Logger:  logger,
	}).RegisterHandlers(commands)

	mon := monitor.NewService(monitor.Dependencies{
		Session: app.Session,
		Clients: hub.Clients,
		Influx:  points,
		Bucket:  influx.BucketPlayback,
		Point:   influx.StatusPoint,
		Logger:  logger,
	})

	addr := serveAddr
	if addr == "" {
		addr = viper.GetString("server.address")
	}
	srv := &http.Server{
		Addr: addr,
		Handler: server.New(server.Dependencies{
			Catalog:  cat,
			Commands: commands,
			Status:   mon,
			History:  recorder,
			Stream:   hub,
			Version:  Version,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hub.Close()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	mon.Start(gctx, viper.GetDuration("playback.statusInterval"))
	defer mon.Stop()
	recorder.Start(gctx, viper.GetDuration("history.flushInterval"))
	defer func() {
		if err := recorder.Stop(); err != nil {
			logger.Error("Failed to flush history", "error", err)
		}
	}()

	if err := activate(gctx, commands, cat, serveCampaign, serveAutoplay); err != nil {
		logger.Error("Failed to activate campaign", "error", err)
	}

	err = g.Wait()
	logger.Info("Shut down")
	return err
}

// activate loads the initial campaign through the same commands clients use.
func activate(ctx context.Context, commands *dispatcher.Dispatcher, cat *catalog.Catalog, id string, autoplay bool) error {
	if id == "" {
		first, err := cat.First()
		if err != nil {
			return err
		}
		id = first.ID
	}

	run := func(command string, args ...string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := commands.Dispatch(dispatcher.Event{Command: command, Args: args, Source: "startup"})
		return err
	}

	if err := run(":CAMPAIGN:", id); err != nil {
		return err
	}
	if speed := viper.GetString("playback.defaultSpeed"); speed != "" {
		if err := run(":SPEED:", speed); err != nil {
			return err
		}
	}
	if autoplay {
		return run(":PLAY:")
	}
	return nil
}
