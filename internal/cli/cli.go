// Package cli implements the fibertree command-line interface.
//
// This package provides commands for inspecting and reshaping tensors stored
// as YAML, running co-iteration kernels with metrics and traces, drawing
// fibertree diagrams, and serving the kernels over HTTP. The CLI is built
// using cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - print, stats: Show a tensor and its per-rank occupancy
//   - swizzle, split, flatten, unflatten: Rank transformations
//   - random: Generate a random sparse tensor
//   - run: Execute a kernel and report its metrics
//   - dot: Draw a tensor as DOT, SVG or PNG
//   - browse: Walk a tensor interactively
//   - serve: Expose run over HTTP
//   - cache: Manage the result cache
//
// # Configuration
//
// Defaults come from $XDG_CONFIG_HOME/fibertree/config.toml (see [Config]).
// Flags override the file. All commands support --verbose (-v) for
// debug-level logging.
//
// # Example
//
//	c := cli.New(os.Stderr, cli.LogInfo)
//	if err := c.RootCommand().ExecuteContext(ctx); err != nil {
//	    os.Exit(1)
//	}
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/fibertree/pkg/buildinfo"
	"github.com/matzehuels/fibertree/pkg/cache"
	"github.com/matzehuels/fibertree/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "fibertree"

	// redisPingTimeout bounds the connection check of --redis.
	redisPingTimeout = 3 * time.Second
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config Config

	verbose    bool
	configPath string
	noCache    bool
	redisAddr  string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: DefaultConfig(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	c.Logger.SetReportCaller(level <= log.DebugLevel)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Fibertree builds and runs sparse tensor kernels",
		Long:          `Fibertree stores sparse tensors as trees of fibers, runs co-iteration kernels over them and reports what each rank accessed.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/fibertree/config.toml)")
	flags.BoolVar(&c.noCache, "no-cache", false, "disable the result cache")
	flags.StringVar(&c.redisAddr, "redis", "", "use a Redis cache at host:port or redis:// URL")

	// Register all subcommands
	root.AddCommand(c.printCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.swizzleCommand())
	root.AddCommand(c.swapCommand())
	root.AddCommand(c.splitCommand())
	root.AddCommand(c.flattenCommand())
	root.AddCommand(c.unflattenCommand())
	root.AddCommand(c.randomCommand())
	root.AddCommand(c.runCommand())
	root.AddCommand(c.dotCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the config file, if any, and sets the log level:
// --verbose wins over the config file. A missing default config file is not
// an error.
func (c *CLI) loadConfig() error {
	defer func() {
		if c.verbose {
			c.SetLogLevel(LogDebug)
		}
	}()

	path := c.configPath
	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(dir, "config.toml")
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return nil
		}
		return err
	}
	c.Config = cfg
	if cfg.Log.Level != "" {
		level, err := log.ParseLevel(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("config %s: %w", path, err)
		}
		c.SetLogLevel(level)
	}
	c.Logger.Debug("loaded config", "path", path)
	return nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context) (*pipeline.Runner, error) {
	cc, err := c.newCache(ctx)
	if err != nil {
		return nil, err
	}
	r := pipeline.NewRunner(cc, nil, c.Logger)
	r.TTL = c.Config.Cache.TTL.Duration
	return r, nil
}

// newCache picks the cache backend: --no-cache, then --redis, then the
// config file, then a file cache in the user cache directory.
func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	cfg := c.Config.Cache
	backend := cfg.Backend
	addr := cfg.RedisAddr
	switch {
	case c.noCache:
		backend = backendNone
	case c.redisAddr != "":
		backend, addr = backendRedis, c.redisAddr
	}

	switch backend {
	case backendNone:
		return cache.NewDisabled(), nil
	case backendRedis:
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		rc, err := cache.NewRedisCache(pingCtx, cache.RedisConfig{Addr: addr, KeyPrefix: appName + ":"})
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		c.Logger.Debug("using redis cache", "addr", addr)
		return rc, nil
	}

	dir := cfg.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			return cache.NewDisabled(), nil
		}
		dir = d
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/fibertree/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configDir returns the config directory (~/.config/fibertree/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}
