package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sendcertificates/server/internal/app"
	"github.com/sendcertificates/server/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if errRun := newRootCmd().ExecuteContext(ctx); errRun != nil {
		log.WithError(errRun).Error("command failed")
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running without a subcommand starts
// the API server.
func newRootCmd() *cobra.Command {
	var cfgPath string

	resolve := func() (config.AppConfig, error) {
		appCfg, err := config.LoadFromEnv()
		if err != nil {
			return appCfg, err
		}
		if strings.TrimSpace(cfgPath) != "" {
			appCfg.ConfigPath = config.ResolveConfigPath(cfgPath)
		}
		return appCfg, nil
	}

	serve := func(cmd *cobra.Command, _ []string) error {
		appCfg, err := resolve()
		if err != nil {
			return err
		}
		return app.RunServer(cmd.Context(), appCfg)
	}

	root := &cobra.Command{
		Use:           "sendcertificates",
		Short:         "Certificate issuance API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serve,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (or env CONFIG_PATH)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := resolve()
			if err != nil {
				return err
			}
			return app.Migrate(cmd.Context(), appCfg)
		},
	})

	var adminEmail, adminPassword, adminName string
	createAdmin := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator or promote an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := resolve()
			if err != nil {
				return err
			}
			if errCreate := app.CreateAdminUser(cmd.Context(), appCfg, adminEmail, adminPassword, adminName); errCreate != nil {
				return errCreate
			}
			log.WithField("email", strings.ToLower(strings.TrimSpace(adminEmail))).Info("admin account ready")
			return nil
		},
	}
	createAdmin.Flags().StringVar(&adminEmail, "email", "", "administrator email")
	createAdmin.Flags().StringVar(&adminPassword, "password", "", "administrator password (min 8 characters)")
	createAdmin.Flags().StringVar(&adminName, "name", "Administrator", "display name")
	_ = createAdmin.MarkFlagRequired("email")
	_ = createAdmin.MarkFlagRequired("password")
	root.AddCommand(createAdmin)

	return root
}
