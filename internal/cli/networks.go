package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"walletd/internal/network"
)

func networksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List the chains the wallet can be switched to",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tCHAIN ID\tNAME\tCURRENCY\tSELECTED")
			for _, n := range network.All() {
				selected := ""
				if n.Key == cfg.SelectedNetwork().Key {
					selected = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.Key, n.ChainID, n.Name, n.CurrencySymbol, selected)
			}
			return tw.Flush()
		},
	}
}
