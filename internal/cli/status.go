package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"walletd/internal/apiclient"
)

func statusCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the wallet session of a running walletd",
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				server = "http://localhost:" + cfg.Port
			}
			s, err := apiclient.New(server).Session(cmd.Context())
			if err != nil {
				return err
			}

			switch {
			case !s.IsReady:
				fmt.Println("Wallet: not initialized")
			case !s.IsConnected:
				fmt.Println("Wallet: ready, not connected")
			default:
				fmt.Printf("Wallet: connected as %s (%s)\n", s.ShortAddress, s.Address)
			}
			if !s.UpdatedAt.IsZero() {
				fmt.Printf("Source: %s, updated %s\n", s.Source, s.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "walletd base URL (default http://localhost:$PORT)")
	return cmd
}
