// Package cmd implements the wgtunnel CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/plexsphere/wgtunnel/internal/backend"
	"github.com/plexsphere/wgtunnel/internal/config"
	"github.com/plexsphere/wgtunnel/internal/keystore"
	"github.com/plexsphere/wgtunnel/internal/resolver"
	"github.com/plexsphere/wgtunnel/internal/store"
	"github.com/plexsphere/wgtunnel/internal/tunnels"
)

// defaultConfigPath is read when present; a missing file at this path
// falls back to built-in defaults.
const defaultConfigPath = "/etc/wgtunnel/config.yaml"

var (
	cfgFile    string
	logLevel   string
	dataDir    string
	socketPath string
)

// Build info set from main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version info from build-time ldflags.
func SetVersionInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("wgtunnel version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

var rootCmd = &cobra.Command{
	Use:   "wgtunnel",
	Short: "wgtunnel manages WireGuard tunnel configurations",
	Long: "wgtunnel is a WireGuard client toolkit. It parses and validates wg-quick\n" +
		"configuration files, stores tunnels with their keys kept apart from metadata,\n" +
		"imports and exports zip archives, and brings tunnels up on a userspace or\n" +
		"kernel backend.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; overrides config)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding the tunnel database and keys (overrides config)")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "control socket path of `wgtunnel up` (overrides config)")

	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("wgtunnel version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and applies CLI flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Parse(cfgFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, err
		}
		cfg = config.Default()
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if socketPath != "" {
		cfg.API.SocketPath = socketPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app bundles what the tunnel commands operate on.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	manager *tunnels.Manager
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dbPath, keysDir := cfg.Store.Paths(cfg.DataDir)
	keys, err := keystore.NewFileStore(keysDir, logger)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(dbPath, keys, logger)
	if err != nil {
		return nil, err
	}

	factory, err := backend.NewFactory(cfg.Backend, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	res, err := resolver.New(cfg.Resolver, nil, logger)
	if err != nil {
		logger.Warn("endpoint resolution unavailable", "error", err)
	}

	var endpoints backend.EndpointResolver
	if res != nil {
		endpoints = res
	}
	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		manager: tunnels.NewManager(st, factory, endpoints, cfg.Backend.MTU, logger),
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.manager.Close(), a.store.Close())
}

func setupLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
