package cmd

import (
	"fmt"
	"time"

	"live-relay/internal/config"
	"live-relay/pkg/discovery"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List relays broadcasting on the LAN",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		port := viper.GetInt(config.KeyDiscoveryPort)

		found, err := discovery.Discover(cmd.Context(), fmt.Sprintf(":%d", port), timeout)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no relay found")
			return nil
		}
		for _, ann := range found {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", ann.Name, ann.SignalURL())
		}
		return nil
	},
}

func init() {
	discoverCmd.Flags().Duration("timeout", 3*time.Second, "how long to listen for announcements")
	rootCmd.AddCommand(discoverCmd)
}
