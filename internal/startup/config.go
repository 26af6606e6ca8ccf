package startup

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"video-mosaic/internal/density"
	"video-mosaic/internal/layout"
	"video-mosaic/internal/logging"
	"video-mosaic/internal/output"
	"video-mosaic/internal/storage"
	"video-mosaic/internal/workers"
)

// Index backends selectable with INDEX_BACKEND.
const (
	IndexSQLite = "sqlite"
	IndexPebble = "pebble"
	IndexNone   = "none"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML
// config file. Environment variables override values from the file.
const ConfigFileEnv = "MOSAIC_CONFIG"

// Config holds all application configuration
type Config struct {
	MediaDir        string `koanf:"media_dir"`
	OutputDir       string `koanf:"output_dir"`
	DatabaseDir     string `koanf:"database_dir"`
	IndexBackend    string `koanf:"index_backend"`
	Port            string `koanf:"port"`
	MetricsPort     string `koanf:"metrics_port"`
	MetricsEnabled  bool   `koanf:"metrics_enabled"`
	LogHealthChecks bool   `koanf:"log_health_checks"`

	FFmpegPath  string `koanf:"ffmpeg_path"`
	FFprobePath string `koanf:"ffprobe_path"`

	// Mosaic defaults applied to jobs that do not set their own.
	Width       int     `koanf:"width"`
	Density     string  `koanf:"density"`
	Strategy    string  `koanf:"strategy"`
	Format      string  `koanf:"format"`
	Quality     int     `koanf:"quality"`
	Labels      bool    `koanf:"labels"`
	Footer      bool    `koanf:"footer"`
	AddBorder   bool    `koanf:"add_border"`
	BorderWidth int     `koanf:"border_width"`
	AddShadow   bool    `koanf:"add_shadow"`
	MinDuration float64 `koanf:"min_duration"`

	JobBudget      int           `koanf:"job_budget"`
	ExtractWorkers int           `koanf:"extract_workers"`
	TickInterval   time.Duration `koanf:"tick_interval"`

	Screen  layout.Screen  `koanf:"screen"`
	Storage storage.Config `koanf:"storage"`

	// Derived
	ConfigFile    string          `koanf:"-"`
	DatabasePath  string          `koanf:"-"`
	PebbleDir     string          `koanf:"-"`
	DensityLevel  density.Level   `koanf:"-"`
	LayoutMode    layout.Strategy `koanf:"-"`
	OutputEnabled bool            `koanf:"-"`
}

// DefaultConfig returns the configuration used when neither a file nor the
// environment sets a value.
func DefaultConfig() Config {
	return Config{
		MediaDir:        "/media",
		OutputDir:       "/output",
		DatabaseDir:     "/database",
		IndexBackend:    IndexSQLite,
		Port:            "8080",
		MetricsPort:     "9090",
		MetricsEnabled:  true,
		LogHealthChecks: true,
		FFmpegPath:      "ffmpeg",
		FFprobePath:     "ffprobe",
		Width:           1920,
		Density:         density.M.String(),
		Strategy:        layout.Classic.String(),
		Format:          "jpg",
		Quality:         output.DefaultQuality,
		Labels:          true,
		Footer:          true,
		BorderWidth:     2,
		JobBudget:       workers.ForJobs(),
		ExtractWorkers:  workers.ForExtraction(),
		TickInterval:    time.Second,
	}
}

// LoadConfig loads and validates configuration from an optional YAML file
// and environment variables, then prepares the working directories.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	section("CONFIGURATION")

	cfg, err := loadConfig(getEnv(ConfigFileEnv, ""))
	if err != nil {
		return nil, err
	}
	logConfig(cfg)

	section("DIRECTORY SETUP")

	if err := setupDirectories(cfg); err != nil {
		return nil, err
	}

	logging.Info("")
	field("Index", indexString(cfg))
	field("Local output", enabledString(cfg.OutputEnabled))
	field("Metrics", enabledString(cfg.MetricsEnabled))

	return cfg, nil
}

// loadConfig layers defaults, the YAML file at path (if any) and the
// environment, then validates the result.
func loadConfig(path string) (*Config, error) {
	return loadConfigWith(path, DefaultConfig())
}

// LoadWithDefaults is LoadConfig without the banner and section logging,
// starting from base instead of DefaultConfig.
func LoadWithDefaults(base Config) (*Config, error) {
	cfg, err := loadConfigWith(getEnv(ConfigFileEnv, ""), base)
	if err != nil {
		return nil, err
	}
	if err := setupDirectories(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigWith(path string, cfg Config) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		logging.Info("  Config file:         %s", path)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ConfigFile = path

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.MediaDir = getEnv("MEDIA_DIR", cfg.MediaDir)
	cfg.OutputDir = getEnv("OUTPUT_DIR", cfg.OutputDir)
	cfg.DatabaseDir = getEnv("DATABASE_DIR", cfg.DatabaseDir)
	cfg.IndexBackend = getEnv("INDEX_BACKEND", cfg.IndexBackend)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.MetricsPort = getEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", cfg.LogHealthChecks)

	cfg.FFmpegPath = getEnv("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.FFprobePath = getEnv("FFPROBE_PATH", cfg.FFprobePath)

	cfg.Width = getEnvInt("MOSAIC_WIDTH", cfg.Width)
	cfg.Density = getEnv("MOSAIC_DENSITY", cfg.Density)
	cfg.Strategy = getEnv("MOSAIC_STRATEGY", cfg.Strategy)
	cfg.Format = getEnv("MOSAIC_FORMAT", cfg.Format)
	cfg.Quality = getEnvInt("MOSAIC_QUALITY", cfg.Quality)
	cfg.Labels = getEnvBool("MOSAIC_LABELS", cfg.Labels)
	cfg.Footer = getEnvBool("MOSAIC_FOOTER", cfg.Footer)
	cfg.AddBorder = getEnvBool("MOSAIC_BORDER", cfg.AddBorder)
	cfg.AddShadow = getEnvBool("MOSAIC_SHADOW", cfg.AddShadow)
	cfg.MinDuration = getEnvFloat("MOSAIC_MIN_DURATION", cfg.MinDuration)

	cfg.JobBudget = getEnvInt(workers.EnvJobWorkers, cfg.JobBudget)
	cfg.ExtractWorkers = getEnvInt(workers.EnvExtractWorkers, cfg.ExtractWorkers)
	cfg.TickInterval = getEnvDuration("MOSAIC_TICK_INTERVAL", cfg.TickInterval)

	cfg.Screen.Width = getEnvInt("SCREEN_WIDTH", cfg.Screen.Width)
	cfg.Screen.Height = getEnvInt("SCREEN_HEIGHT", cfg.Screen.Height)
	cfg.Screen.Scale = getEnvFloat("SCREEN_SCALE", cfg.Screen.Scale)

	cfg.Storage.S3Region = getEnv("S3_REGION", cfg.Storage.S3Region)
	cfg.Storage.S3AccessKey = getEnv("S3_ACCESS_KEY", cfg.Storage.S3AccessKey)
	cfg.Storage.S3SecretKey = getEnv("S3_SECRET_KEY", cfg.Storage.S3SecretKey)
	cfg.Storage.S3Endpoint = getEnv("S3_ENDPOINT", cfg.Storage.S3Endpoint)
	cfg.Storage.GCSCredentialsFile = getEnv("GCS_CREDENTIALS_FILE", cfg.Storage.GCSCredentialsFile)
}

func (c *Config) validate() error {
	level, err := density.Parse(c.Density)
	if err != nil {
		return fmt.Errorf("invalid density %q: %w", c.Density, err)
	}
	c.DensityLevel = level

	mode, err := layout.ParseStrategy(c.Strategy)
	if err != nil {
		return fmt.Errorf("invalid strategy %q: %w", c.Strategy, err)
	}
	c.LayoutMode = mode

	if c.Width <= 0 {
		return fmt.Errorf("invalid width %d: must be positive", c.Width)
	}

	c.Format = strings.TrimPrefix(strings.ToLower(c.Format), ".")
	if _, err := output.FormatFromPath("mosaic." + c.Format); err != nil {
		return fmt.Errorf("unsupported output format %q: %w", c.Format, err)
	}

	c.IndexBackend = strings.ToLower(c.IndexBackend)
	switch c.IndexBackend {
	case IndexSQLite, IndexPebble, IndexNone:
	default:
		return fmt.Errorf("unknown index backend %q (want %s, %s or %s)", c.IndexBackend, IndexSQLite, IndexPebble, IndexNone)
	}

	if c.JobBudget < 1 {
		c.JobBudget = 1
	}
	if c.ExtractWorkers < 1 {
		c.ExtractWorkers = 1
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	return nil
}

// ScreenOrNil returns the configured screen, or nil when none is usable.
func (c *Config) ScreenOrNil() *layout.Screen {
	if !c.Screen.Valid() {
		return nil
	}
	s := c.Screen
	return &s
}

// Redacted returns a copy safe to log or serve.
func (c Config) Redacted() Config {
	if c.Storage.S3AccessKey != "" {
		c.Storage.S3AccessKey = "****"
	}
	if c.Storage.S3SecretKey != "" {
		c.Storage.S3SecretKey = "****"
	}
	return c
}

// YAML renders the redacted configuration in the config file format.
func (c *Config) YAML() ([]byte, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(c.Redacted(), "koanf"), nil); err != nil {
		return nil, err
	}
	return k.Marshal(yaml.Parser())
}

func logConfig(cfg *Config) {
	logging.Info("  MEDIA_DIR:           %s", cfg.MediaDir)
	logging.Info("  OUTPUT_DIR:          %s", cfg.OutputDir)
	logging.Info("  DATABASE_DIR:        %s", cfg.DatabaseDir)
	logging.Info("  INDEX_BACKEND:       %s", cfg.IndexBackend)
	logging.Info("  PORT:                %s", cfg.Port)
	logging.Info("  METRICS_PORT:        %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", cfg.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	logging.Info("  Mosaic defaults:     %dpx %s %s .%s q%d", cfg.Width, cfg.DensityLevel, cfg.LayoutMode, cfg.Format, cfg.Quality)
	logging.Info("  Job budget:          %d", cfg.JobBudget)
	logging.Info("  Extract workers:     %d", cfg.ExtractWorkers)
	if s := cfg.ScreenOrNil(); s != nil {
		logging.Info("  Screen:              %dx%d @%.1fx", s.Width, s.Height, s.Scale)
	}

	if logging.IsDebugEnabled() {
		if data, err := cfg.YAML(); err == nil {
			logging.Debug("  Effective config:")
			for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
				logging.Debug("    %s", line)
			}
		}
	}
}

func setupDirectories(cfg *Config) error {
	var err error

	cfg.MediaDir, err = filepath.Abs(cfg.MediaDir)
	if err != nil {
		return fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	logging.Info("  Media directory (absolute): %s", cfg.MediaDir)

	cfg.OutputDir, err = filepath.Abs(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	logging.Info("  Output directory (absolute): %s", cfg.OutputDir)

	if err := ensureDir(cfg.MediaDir); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}

	// Remote targets still work when the local output directory does not.
	cfg.OutputEnabled = optionalDir(cfg.OutputDir, "output")

	if cfg.IndexBackend == IndexNone {
		logging.Info("  Index disabled, skipping database directory")
		return nil
	}

	cfg.DatabaseDir, err = filepath.Abs(cfg.DatabaseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", cfg.DatabaseDir)

	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "mosaics.db")
	cfg.PebbleDir = filepath.Join(cfg.DatabaseDir, "pebble")

	if err := ensureDir(cfg.DatabaseDir); err != nil {
		return fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := checkWritable(cfg.DatabaseDir); err != nil {
		return fmt.Errorf("database directory is not writable (required for the index): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")
	return nil
}

func indexString(cfg *Config) string {
	switch cfg.IndexBackend {
	case IndexSQLite:
		return "SQLITE (" + cfg.DatabasePath + ")"
	case IndexPebble:
		return "PEBBLE (" + cfg.PebbleDir + ")"
	default:
		return "DISABLED"
	}
}
