package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Municipality MunicipalityConfig `yaml:"municipality" mapstructure:"municipality"`
	Growth       GrowthConfig       `yaml:"growth" mapstructure:"growth"`
	Discovery    DiscoveryConfig    `yaml:"discovery" mapstructure:"discovery"`
	Table        TableConfig        `yaml:"table" mapstructure:"table"`
	Economy      EconomyConfig      `yaml:"economy" mapstructure:"economy"`
	Topography   TopographyConfig   `yaml:"topography" mapstructure:"topography"`
	Restrict     RestrictConfig     `yaml:"restrict" mapstructure:"restrict"`
	Pipeline     PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Fetch        FetchConfig        `yaml:"fetch" mapstructure:"fetch"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Metrics      MetricsConfig      `yaml:"metrics" mapstructure:"metrics"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// MunicipalityConfig identifies the target municipality by its INEGI keys.
type MunicipalityConfig struct {
	State    string `yaml:"state" mapstructure:"state"`
	Code     string `yaml:"code" mapstructure:"code"`
	HeadTown string `yaml:"head_town" mapstructure:"head_town"`
	Name     string `yaml:"name" mapstructure:"name"`
}

// GrowthConfig holds the 2020 to 2025 population growth factors per kind.
type GrowthConfig struct {
	Urban float64 `yaml:"urban" mapstructure:"urban"`
	Rural float64 `yaml:"rural" mapstructure:"rural"`
}

// DiscoveryConfig configures how logical sources are located on disk.
// Paths pins a logical source to an explicit file; Names lists the file
// names tried for each logical source, in order.
type DiscoveryConfig struct {
	Root  string              `yaml:"root" mapstructure:"root"`
	Dirs  []string            `yaml:"dirs" mapstructure:"dirs"`
	Paths map[string]string   `yaml:"paths" mapstructure:"paths"`
	Names map[string][]string `yaml:"names" mapstructure:"names"`
}

// TableConfig configures census table decoding.
type TableConfig struct {
	Encodings []string `yaml:"encodings" mapstructure:"encodings"`
	Delimiter string   `yaml:"delimiter" mapstructure:"delimiter"`
}

// EconomyConfig configures the economic unit join.
type EconomyConfig struct {
	CodeField   string `yaml:"code_field" mapstructure:"code_field"`
	SectorTable string `yaml:"sector_table" mapstructure:"sector_table"`
}

// TopographyConfig configures the zonal slope proxy and its fallback.
type TopographyConfig struct {
	Seed        uint64  `yaml:"seed" mapstructure:"seed"`
	FallbackMin float64 `yaml:"fallback_min" mapstructure:"fallback_min"`
	FallbackMax float64 `yaml:"fallback_max" mapstructure:"fallback_max"`
	Scale       float64 `yaml:"scale" mapstructure:"scale"`
	NodataFloor float64 `yaml:"nodata_floor" mapstructure:"nodata_floor"`
}

// RestrictConfig configures hazard and river buffers. BufferMode is either
// "degrees" (buffer in lon/lat) or "metric" (buffer in local UTM meters).
type RestrictConfig struct {
	BufferMode      string   `yaml:"buffer_mode" mapstructure:"buffer_mode"`
	HazardPrefixes  []string `yaml:"hazard_prefixes" mapstructure:"hazard_prefixes"`
	HazardRadiusDeg float64  `yaml:"hazard_radius_deg" mapstructure:"hazard_radius_deg"`
	RiverRadiusDeg  float64  `yaml:"river_radius_deg" mapstructure:"river_radius_deg"`
	HazardRadiusM   float64  `yaml:"hazard_radius_m" mapstructure:"hazard_radius_m"`
	RiverRadiusM    float64  `yaml:"river_radius_m" mapstructure:"river_radius_m"`
	QuadSegs        int      `yaml:"quad_segs" mapstructure:"quad_segs"`
}

// PipelineConfig configures the batch run.
type PipelineConfig struct {
	Parallel bool `yaml:"parallel" mapstructure:"parallel"`
}

// OutputConfig configures where and how zone layers are written.
type OutputConfig struct {
	Dir     string   `yaml:"dir" mapstructure:"dir"`
	Formats []string `yaml:"formats" mapstructure:"formats"`
}

// FetchSource is one downloadable input archive.
type FetchSource struct {
	Name    string `yaml:"name" mapstructure:"name"`
	URL     string `yaml:"url" mapstructure:"url"`
	Extract bool   `yaml:"extract" mapstructure:"extract"`
	// Include limits extraction to entries whose base name matches one of
	// these patterns.
	Include []string `yaml:"include" mapstructure:"include"`
}

// FetchConfig configures `sits fetch`.
type FetchConfig struct {
	DestDir     string        `yaml:"dest_dir" mapstructure:"dest_dir"`
	TimeoutSecs int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string        `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit   float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	Sources     []FetchSource `yaml:"sources" mapstructure:"sources"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port          int      `yaml:"port" mapstructure:"port"`
	DataDir       string   `yaml:"data_dir" mapstructure:"data_dir"`
	CORSOrigins   []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	CacheTTLSecs  int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	CacheCapacity int      `yaml:"cache_capacity" mapstructure:"cache_capacity"`
}

// MetricsConfig configures Prometheus metric export. Textfile, when set, is
// the path a node_exporter textfile collector picks up after each run.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultNames returns the file names tried for each logical source.
func DefaultNames() map[string][]string {
	return map[string][]string{
		"urban_blocks":     {"30m.shp"},
		"rural_localities": {"30l.shp"},
		"economic_units":   {"denue.shp"},
		"rivers":           {"rios.shp", "RH28Ar_hl.shp"},
		"elevation":        {"elevacion.tif", "e15a41d1_ms.tif"},
		"urban_table":      {"conjunto_de_datos_ageb_urbana_30_cpv2020.csv"},
		"rural_table":      {"iter_veracruz_2020.csv", "conjunto_de_datos_iter_30CSV20.csv"},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SITS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("municipality.state", "30")
	v.SetDefault("municipality.code", "032")
	v.SetDefault("municipality.head_town", "0001")
	v.SetDefault("municipality.name", "Catemaco")
	v.SetDefault("growth.urban", 1.048)
	v.SetDefault("growth.rural", 1.012)
	v.SetDefault("discovery.root", ".")
	v.SetDefault("discovery.dirs", []string{
		".", "shp", "tablas", "raster", "data", "processed",
		"data/mapas", "data/tablas", "data/raster",
	})
	v.SetDefault("discovery.names", DefaultNames())
	v.SetDefault("table.encodings", []string{"utf-8", "latin1"})
	v.SetDefault("table.delimiter", ",")
	v.SetDefault("economy.code_field", "codigo_act")
	v.SetDefault("topography.seed", 42)
	v.SetDefault("topography.fallback_min", 1.0)
	v.SetDefault("topography.fallback_max", 30.0)
	v.SetDefault("topography.scale", 5.0)
	v.SetDefault("topography.nodata_floor", -9999.0)
	v.SetDefault("restrict.buffer_mode", "degrees")
	v.SetDefault("restrict.hazard_prefixes", []string{"464", "473"})
	v.SetDefault("restrict.hazard_radius_deg", 0.001)
	v.SetDefault("restrict.river_radius_deg", 0.0002)
	v.SetDefault("restrict.hazard_radius_m", 100.0)
	v.SetDefault("restrict.river_radius_m", 20.0)
	v.SetDefault("restrict.quad_segs", 8)
	v.SetDefault("pipeline.parallel", false)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.formats", []string{"geojson"})
	v.SetDefault("fetch.dest_dir", "data")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.user_agent", "sits/1.0")
	v.SetDefault("fetch.rate_limit", 2.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.data_dir", "output")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.cache_ttl_secs", 300)
	v.SetDefault("server.cache_capacity", 16)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
