package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/fluma/internal/client/client"
	"github.com/dmitrijs2005/fluma/internal/client/config"
	"github.com/dmitrijs2005/fluma/internal/client/services"
)

// ServiceFactory builds the AuthService a command talks to. The returned
// cleanup func releases everything the service holds.
type ServiceFactory func(ctx context.Context, cfg *config.Config) (services.AuthService, func(), error)

// options are the persistent flags shared by all subcommands.
type options struct {
	configFile string
	addr       string
	dbPath     string
	timeout    time.Duration
}

// NewRootCmd creates the root command for the fluma CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(NewAuthService)
}

func newRootCmd(factory ServiceFactory) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "fluma",
		Short: "fluma - command line client for the fluma auth server",
		Long: `fluma talks to the fluma auth server: sign up, log in, reissue
the token pair and log out. The session is kept in a local database.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path")
	cmd.PersistentFlags().StringVarP(&opts.addr, "addr", "a", "", "address and port of the auth server")
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to the local session database")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "timeout of a single command")

	cmd.AddCommand(newSignupCmd(opts, factory))
	cmd.AddCommand(newLoginCmd(opts, factory))
	cmd.AddCommand(newReissueCmd(opts, factory))
	cmd.AddCommand(newLogoutCmd(opts, factory))
	cmd.AddCommand(newWhoamiCmd(opts, factory))
	cmd.AddCommand(newPingCmd(opts, factory))

	return cmd
}

// NewAuthService is the production ServiceFactory: a gRPC client plus the
// local SQLite session store.
func NewAuthService(ctx context.Context, cfg *config.Config) (services.AuthService, func(), error) {
	c, err := client.NewGRPCClient(cfg.ServerEndpointAddr)
	if err != nil {
		return nil, nil, err
	}

	db, err := client.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, nil, errors.Join(err, c.Close())
	}

	svc := services.NewAuthService(c, db)
	cleanup := func() {
		_ = svc.Close(context.Background())
		_ = db.Close()
	}
	return svc, cleanup, nil
}

// resolveConfig loads defaults and the optional JSON file, then applies the
// flags the user set explicitly.
func resolveConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.ServerEndpointAddr = opts.addr
	}
	if flags.Changed("db") {
		cfg.DatabasePath = opts.dbPath
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	return cfg, nil
}

// withService resolves the config, builds the service and runs fn under the
// configured timeout.
func withService(
	cmd *cobra.Command,
	opts *options,
	factory ServiceFactory,
	fn func(ctx context.Context, svc services.AuthService) error,
) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	svc, cleanup, err := factory(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(ctx, svc)
}
