package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"walletd/config"
)

var (
	envFile string
	cfg     *config.Config
	logger  *zap.Logger
)

func Execute() error {
	root := &cobra.Command{
		Use:           "walletd",
		Short:         "Wallet session bridge for the DataAPI web app",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			if envFile != "" {
				files = append(files, envFile)
			}
			c, err := config.Load(files...)
			if err != nil {
				return err
			}
			l, err := c.NewLogger()
			if err != nil {
				return err
			}
			cfg, logger = c, l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")

	root.AddCommand(serveCmd(), statusCmd(), networksCmd())
	return root.Execute()
}
