package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "campaign_player.cfg.json"

// DataConfig selects where campaigns and routes come from.
type DataConfig struct {
	Source        string `json:"source" mapstructure:"source"` // file, http, sqlite or postgres
	RoutesPath    string `json:"routesPath" mapstructure:"routesPath"`
	CampaignsPath string `json:"campaignsPath" mapstructure:"campaignsPath"`
	BaseURL       string `json:"baseUrl" mapstructure:"baseUrl"`
	APIKey        string `json:"apiKey" mapstructure:"apiKey"`
}

// CameraConfig holds camera tuning for the player.
type CameraConfig struct {
	FollowDuration time.Duration
	FitPadding     float64
	EventZoom      float64
	DefaultCenter  string
	DefaultZoom    float64
}

// OTelConfig holds OpenTelemetry log and metric export settings.
type OTelConfig struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	MetricInterval time.Duration
	Endpoint       string
	Insecure       bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers every default value. Load calls it; commands that
// run without a config file call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("data.source", "file")
	viper.SetDefault("data.routesPath", "./data/routes.geojson")
	viper.SetDefault("data.campaignsPath", "./data/campaigns.json")
	viper.SetDefault("data.baseUrl", "http://localhost:8080/data")
	viper.SetDefault("data.apiKey", "")

	// history.driver is "", "sqlite" or "postgres"; empty keeps history in memory
	viper.SetDefault("history.driver", "")
	viper.SetDefault("history.flushInterval", "2s")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "campaigns")
	viper.SetDefault("sqlite.path", "./campaigns.db")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "campaign-player")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "campaign-player")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("server.address", ":8080")

	viper.SetDefault("playback.frameRate", 60)
	viper.SetDefault("playback.defaultSpeed", 1.0)
	viper.SetDefault("playback.statusInterval", "5s")

	viper.SetDefault("camera.followDuration", "1200ms")
	viper.SetDefault("camera.fitPadding", 120.0)
	viper.SetDefault("camera.eventZoom", 7.8)
	viper.SetDefault("camera.defaultCenter", "22.4,37.3")
	viper.SetDefault("camera.defaultZoom", 6.6)

	viper.SetDefault("viewport.width", 1280)
	viper.SetDefault("viewport.height", 720)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float config value.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration returns a duration config value ("1200ms", "5s").
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetDataConfig returns the data source settings.
func GetDataConfig() DataConfig {
	return DataConfig{
		Source:        viper.GetString("data.source"),
		RoutesPath:    viper.GetString("data.routesPath"),
		CampaignsPath: viper.GetString("data.campaignsPath"),
		BaseURL:       viper.GetString("data.baseUrl"),
		APIKey:        viper.GetString("data.apiKey"),
	}
}

// GetCameraConfig returns the camera tuning.
func GetCameraConfig() CameraConfig {
	return CameraConfig{
		FollowDuration: viper.GetDuration("camera.followDuration"),
		FitPadding:     viper.GetFloat64("camera.fitPadding"),
		EventZoom:      viper.GetFloat64("camera.eventZoom"),
		DefaultCenter:  viper.GetString("camera.defaultCenter"),
		DefaultZoom:    viper.GetFloat64("camera.defaultZoom"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}
