package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"meufin/internal/backend"
	"meufin/internal/cli"
	"meufin/internal/config"
	applog "meufin/internal/log"
)

var version = "dev"

// app carries the resolved settings shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	logger  *applog.Logger
}

func main() {
	cli.LoadEnvFile()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "meufinctl",
		Short: "Operator tool for a meufin database",
		Long: `meufinctl works directly on the meufin SQLite database: summaries,
exports and imports, report housekeeping, the email queue and user admin.

Settings come from flags, MEUFIN_* environment variables and an optional
YAML file, in that order of precedence.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.config/meufin/meufinctl.yaml)")
	root.PersistentFlags().String("db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("database.path", root.PersistentFlags().Lookup("db"))
	_ = a.v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		summaryCmd(a),
		exportCmd(a),
		importCmd(a),
		reportsCmd(a),
		emailCmd(a),
		usersCmd(a),
		migrateCmd(a),
	)
	return root
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".config", "meufin"))
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigName("meufinctl")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("MEUFIN")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	a.logger = applog.New(applog.Config{
		Level:     applog.ParseLevel(a.v.GetString("log.level")),
		Component: applog.ComponentApp,
		Output:    cmd.ErrOrStderr(),
	})
	return nil
}

// config resolves the application configuration from the environment and
// applies the overrides meufinctl knows about.
func (a *app) config() *config.Config {
	cfg := config.Load()
	if p := a.v.GetString("database.path"); p != "" {
		cfg.SQLiteDBPath = p
	}
	if tz := a.v.GetString("timezone"); tz != "" {
		cfg.Timezone = tz
	}
	return cfg
}

// open builds a backend for one command. The caller closes it.
func (a *app) open(ctx context.Context, opts backend.Options) (*backend.Backend, error) {
	b, err := backend.New(ctx, a.config(), a.logger, opts)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	return b, nil
}

// withBackend opens a backend, runs fn and closes the backend.
func (a *app) withBackend(cmd *cobra.Command, opts backend.Options, fn func(*backend.Backend) error) (err error) {
	b, err := a.open(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(b)
}
