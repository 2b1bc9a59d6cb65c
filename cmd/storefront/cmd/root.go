package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/config"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/logging"
)

var (
	cfg        *config.Config
	logger     *logrus.Logger
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront identity and permission service",
	Long: `Storefront keeps the local RBAC store in step with the roles carried in
identity provider tokens, and answers permission checks for the storefront API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger, err = logging.New(cfg.Log, cfg.Debug)
		if err != nil {
			return fmt.Errorf("failed to configure logging: %w", err)
		}
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, json or toml)")
	flags.String("db-url", "", "Database connection URL (env: STOREFRONT_DATABASE_URL)")
	flags.String("server-addr", "", "Server bind address (env: STOREFRONT_SERVER_ADDR)")
	flags.Bool("debug", false, "Enable debug logging (env: STOREFRONT_DEBUG)")

	_ = viper.BindPFlag("database_url", flags.Lookup("db-url"))
	_ = viper.BindPFlag("server_addr", flags.Lookup("server-addr"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
