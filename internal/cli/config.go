package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	errs "github.com/matzehuels/fibertree/pkg/errors"
	"github.com/matzehuels/fibertree/pkg/pipeline"
)

// Cache backends.
const (
	backendFile  = "file"
	backendRedis = "redis"
	backendNone  = "none"
)

// Config is the TOML config file:
//
//	[cache]
//	backend = "file"          # file, redis or none
//	dir = "/tmp/fibertree"    # file backend only
//	redis_addr = "localhost:6379"
//	ttl = "72h"
//
//	[trace]
//	dir = "traces"
//
//	[log]
//	level = "info"
type Config struct {
	Cache CacheConfig `toml:"cache"`
	Trace TraceConfig `toml:"trace"`
	Log   LogConfig   `toml:"log"`
}

// CacheConfig selects and tunes the result cache.
type CacheConfig struct {
	Backend   string   `toml:"backend"`
	Dir       string   `toml:"dir"`
	RedisAddr string   `toml:"redis_addr"`
	TTL       Duration `toml:"ttl"`
}

// TraceConfig sets where traced runs write their CSV files.
type TraceConfig struct {
	Dir string `toml:"dir"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration decodes TOML strings such as "90m" or "72h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{Backend: backendFile},
		Trace: TraceConfig{Dir: pipeline.DefaultTraceRoot},
	}
}

// LoadConfig reads a TOML config file on top of [DefaultConfig]. Unknown
// keys are rejected so that typos do not pass silently.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, err
		}
		return cfg, errs.Wrap(errs.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, errs.New(errs.ErrCodeInvalidConfig, "config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	switch cfg.Cache.Backend {
	case backendFile, backendRedis, backendNone:
	default:
		return errs.New(errs.ErrCodeInvalidConfig, "unknown cache backend %q (valid: file, redis, none)", cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == backendRedis && cfg.Cache.RedisAddr == "" {
		return errs.New(errs.ErrCodeInvalidConfig, "cache backend redis needs redis_addr")
	}
	if cfg.Cache.TTL.Duration < 0 {
		return errs.New(errs.ErrCodeInvalidConfig, "negative cache ttl %s", cfg.Cache.TTL.Duration)
	}
	if cfg.Trace.Dir == "" {
		return errs.New(errs.ErrCodeInvalidConfig, "empty trace dir")
	}
	return nil
}

// RandomSpec describes a random tensor in TOML. The last density applies
// to every rank below it:
//
//	name = "A"
//	rank_ids = ["M", "K"]
//	shape = [16, 16]
//	density = [0.9, 0.3]
//	interval = 10
//	seed = 7
type RandomSpec struct {
	Name     string    `toml:"name"`
	RankIDs  []string  `toml:"rank_ids"`
	Shape    []int     `toml:"shape"`
	Density  []float64 `toml:"density"`
	Interval int       `toml:"interval"`
	Seed     int64     `toml:"seed"`
}

// LoadRandomSpec reads and validates a random tensor spec file.
func LoadRandomSpec(path string) (RandomSpec, error) {
	spec, err := readRandomSpec(path)
	if err != nil {
		return spec, err
	}
	return spec, spec.validate()
}

// readRandomSpec decodes a spec file without validating it, so that flags
// can complete it first.
func readRandomSpec(path string) (RandomSpec, error) {
	spec := RandomSpec{Interval: 10}
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, errs.Wrap(errs.ErrCodeFileNotFound, err, "read %s", path)
	}
	if err := toml.Unmarshal(data, &spec); err != nil {
		return spec, errs.Wrap(errs.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	return spec, nil
}

func (s RandomSpec) validate() error {
	if len(s.RankIDs) == 0 {
		return errs.New(errs.ErrCodeInvalidConfig, "random spec needs rank_ids")
	}
	if err := errs.ValidateRankIDs(s.RankIDs); err != nil {
		return err
	}
	if len(s.Shape) != len(s.RankIDs) {
		return errs.New(errs.ErrCodeInvalidConfig, "random spec has %d ranks but %d shapes", len(s.RankIDs), len(s.Shape))
	}
	if len(s.Density) == 0 || len(s.Density) > len(s.RankIDs) {
		return errs.New(errs.ErrCodeInvalidConfig, "random spec needs 1 to %d densities, got %d", len(s.RankIDs), len(s.Density))
	}
	for i, d := range s.Density {
		if d < 0 || d > 1 {
			return errs.New(errs.ErrCodeInvalidConfig, "density of rank %s is %v, want 0..1", s.RankIDs[i], d)
		}
	}
	for i, n := range s.Shape {
		if n <= 0 {
			return errs.New(errs.ErrCodeInvalidConfig, "shape of rank %s is %d, want > 0", s.RankIDs[i], n)
		}
	}
	if s.Interval <= 0 {
		return errs.New(errs.ErrCodeInvalidConfig, "interval must be positive, got %d", s.Interval)
	}
	if s.Name != "" {
		return errs.ValidateTensorName(s.Name)
	}
	return nil
}

func (s RandomSpec) String() string {
	return fmt.Sprintf("%s%v shape %v density %v seed %d", s.Name, s.RankIDs, s.Shape, s.Density, s.Seed)
}
