package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC health server
	Env      string // "dev" | "prod"

	DB DBConfig

	// Stations are the commissioned gate station ids.
	Stations  []string
	Autostart bool

	MatchThreshold        float64
	DebounceWindow        time.Duration
	DebounceSweepInterval time.Duration // 0 disables sweeping

	LogLevel string
	QRSize   int
}

type DBConfig struct {
	Driver       string
	Path         string // sqlite
	URL          string // postgres
	MaxOpenConns int
}

func (c Config) IsDev() bool { return c.Env == EnvDev }

func Defaults() map[string]any {
	return map[string]any{
		"http_addr":               ":8080",
		"grpc_addr":               ":9090",
		"env":                     EnvDev,
		"db.driver":               DriverSQLite,
		"db.path":                 "./data/gate.db",
		"db.url":                  "",
		"db.max_open_conns":       10,
		"stations":                []string{"gate-1"},
		"autostart":               true,
		"match.threshold":         0.6,
		"debounce.window":         "5s",
		"debounce.sweep_interval": "1m",
		"log.level":               "info",
		"qr.size":                 256,
	}
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"http-addr":       "http_addr",
	"grpc-addr":       "grpc_addr",
	"env":             "env",
	"db-driver":       "db.driver",
	"db-path":         "db.path",
	"db-url":          "db.url",
	"stations":        "stations",
	"autostart":       "autostart",
	"match-threshold": "match.threshold",
	"debounce-window": "debounce.window",
	"log-level":       "log.level",
}

// Load layers defaults, an optional gate.yaml, GATE_* environment variables
// and the flags in fs, in increasing precedence. configFile, if set, must
// exist; otherwise gate.yaml is looked up in the working directory and the
// user config directory.
func Load(configFile string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("gate")
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "gate"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("gate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	return fromViper(v), nil
}

// fromViper reads and normalizes. Invalid values fall back to defaults
// rather than failing startup.
func fromViper(v *viper.Viper) Config {
	def := Defaults()

	env := strings.ToLower(strings.TrimSpace(v.GetString("env")))
	if env != EnvDev && env != EnvProd {
		env = EnvDev
	}

	driver := strings.ToLower(strings.TrimSpace(v.GetString("db.driver")))
	switch driver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		driver = DriverSQLite
	}

	threshold := v.GetFloat64("match.threshold")
	if threshold <= 0 {
		threshold = def["match.threshold"].(float64)
	}

	window := v.GetDuration("debounce.window")
	if window <= 0 {
		window, _ = time.ParseDuration(def["debounce.window"].(string))
	}

	sweep := v.GetDuration("debounce.sweep_interval")
	if sweep < 0 {
		sweep = 0
	}

	maxOpen := v.GetInt("db.max_open_conns")
	if maxOpen <= 0 {
		maxOpen = def["db.max_open_conns"].(int)
	}

	qrSize := v.GetInt("qr.size")
	if qrSize <= 0 {
		qrSize = def["qr.size"].(int)
	}

	return Config{
		HTTPAddr: strings.TrimSpace(v.GetString("http_addr")),
		GRPCAddr: strings.TrimSpace(v.GetString("grpc_addr")),
		Env:      env,
		DB: DBConfig{
			Driver:       driver,
			Path:         v.GetString("db.path"),
			URL:          v.GetString("db.url"),
			MaxOpenConns: maxOpen,
		},
		Stations:              splitList(v.GetStringSlice("stations")),
		Autostart:             v.GetBool("autostart"),
		MatchThreshold:        threshold,
		DebounceWindow:        window,
		DebounceSweepInterval: sweep,
		LogLevel:              strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
		QRSize:                qrSize,
	}
}

// splitList flattens comma-separated entries, so GATE_STATIONS=a,b and a
// YAML list both work. Blanks and duplicates are dropped.
func splitList(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, item := range in {
		for _, p := range strings.Split(item, ",") {
			p = strings.TrimSpace(p)
			if p != "" && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
