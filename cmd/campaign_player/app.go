package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/morea-atlas/campaign-player/internal/api"
	"github.com/morea-atlas/campaign-player/internal/catalog"
	"github.com/morea-atlas/campaign-player/internal/config"
	"github.com/morea-atlas/campaign-player/internal/database"
	"github.com/morea-atlas/campaign-player/internal/logging"
	intOtel "github.com/morea-atlas/campaign-player/internal/otel"
	"github.com/morea-atlas/campaign-player/internal/session"
)

// App holds the process-wide ambient stack shared by every command.
type App struct {
	Command     string
	Session     *session.Context
	SlogManager *logging.SlogManager
	Logger      *slog.Logger
	Zerolog     zerolog.Logger // for the database and influx managers
	OTel        *intOtel.Provider
	LogFilePath string

	closers []func() error
}

// NewApp sets up logging, the optional Graylog sink and OTel.
func NewApp(command string, sessionStart time.Time) (*App, error) {
	a := &App{
		Command:     command,
		Session:     session.NewContext(),
		SlogManager: logging.NewSlogManager(),
	}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	a.LogFilePath = logging.LogFilePath(logsDir, appName, sessionStart)
	logFile := logging.OpenLogFile(a.LogFilePath)
	a.closers = append(a.closers, logFile.Close)

	// serve also logs to stderr; other commands keep the terminal for output
	var sink io.Writer = logFile
	if command == "serve" {
		sink = io.MultiWriter(logFile, os.Stderr)
	}

	var graylog io.Writer
	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGraylogWriter(viper.GetString("graylog.address"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "graylog disabled: %v\n", err)
		} else {
			graylog = w
		}
	}

	otelCfg := config.GetOTelConfig()
	provider, err := intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      logFile,
		MetricWriter:   logFile,
		MetricInterval: otelCfg.MetricInterval,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTel provider: %w", err)
	}
	a.OTel = provider
	var otelLogProvider *sdklog.LoggerProvider
	if provider.Enabled() {
		otelLogProvider = provider.LoggerProvider()
	}

	a.SlogManager.Setup(logging.Options{
		Level:    viper.GetString("logLevel"),
		File:     sink,
		Graylog:  graylog,
		Provider: otelLogProvider,
		Context:  logging.SessionAttrs(a.Session),
	})
	a.Logger = a.SlogManager.Logger()
	slog.SetDefault(a.Logger)

	a.Zerolog = zerolog.New(logFile).
		Level(zerologLevel(viper.GetString("logLevel"))).
		With().Timestamp().Str("command", command).Logger()

	a.Logger.Info("Starting", "version", Version, "command", command, "log", a.LogFilePath)
	return a, nil
}

// Close flushes telemetry and releases files in reverse order of opening.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.SlogManager.Flush(ctx); err != nil {
		a.Logger.Warn("Failed to flush logs", "error", err)
	}
	if err := a.OTel.Shutdown(ctx); err != nil {
		a.Logger.Warn("Failed to shut down OTel", "error", err)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			fmt.Fprintf(os.Stderr, "close: %v\n", err)
		}
	}
}

// OnClose registers fn to run when the command finishes.
func (a *App) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// OpenDatabase connects the database manager for driver.
func (a *App) OpenDatabase(driver string) (*database.Manager, error) {
	m := database.NewManager(a.Zerolog.With().Str("component", "database").Logger())
	m.SqliteFilePath = viper.GetString("sqlite.path")
	if err := m.Connect(driver); err != nil {
		return nil, err
	}
	if err := m.Setup(); err != nil {
		m.Close()
		return nil, err
	}
	a.OnClose(m.Close)
	return m, nil
}

// LoadCatalog reads the catalog from the configured data source. The
// database manager is returned when the source is a database.
func (a *App) LoadCatalog(ctx context.Context) (*catalog.Catalog, *database.Manager, error) {
	dataCfg := config.GetDataConfig()
	var (
		src catalog.Source
		db  *database.Manager
	)

	switch strings.ToLower(dataCfg.Source) {
	case "", "file":
		src = catalog.FileSource{RoutesPath: dataCfg.RoutesPath, CampaignsPath: dataCfg.CampaignsPath}
	case "http":
		client := api.New(dataCfg.BaseURL, dataCfg.APIKey)
		if err := client.Healthcheck(ctx); err != nil {
			a.Logger.Warn("Catalog host healthcheck failed", "url", client.BaseURL(), "error", err)
		}
		src = catalog.HTTPSource{Client: client}
	case "sqlite", "postgres":
		var err error
		db, err = a.OpenDatabase(strings.ToLower(dataCfg.Source))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open catalog database: %w", err)
		}
		src = catalog.DBSource{DB: db.DB}
	default:
		return nil, nil, fmt.Errorf("unknown data source %q", dataCfg.Source)
	}

	cat, err := src.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	a.Logger.Info("Catalog loaded",
		"source", dataCfg.Source,
		"routes", len(cat.Routes),
		"campaigns", len(cat.Campaigns),
	)
	for _, p := range cat.Check() {
		a.Logger.Warn("Catalog problem", "campaign", p.CampaignID, "clip", p.ClipIndex, "problem", p.Message)
	}
	return cat, db, nil
}

// HistoryDatabase returns the database playback history is written to, if
// any: the catalog database when there is one, else history.driver.
func (a *App) HistoryDatabase(catalogDB *database.Manager) (*database.Manager, error) {
	if catalogDB != nil {
		return catalogDB, nil
	}
	driver := strings.ToLower(viper.GetString("history.driver"))
	if driver == "" {
		return nil, nil
	}
	db, err := a.OpenDatabase(driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, nil
}

func zerologLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// appLogger is the command logger, or slog's default outside a command.
func appLogger() *slog.Logger {
	if app == nil {
		return slog.Default()
	}
	return app.Logger
}
