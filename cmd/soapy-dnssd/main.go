// Soapy-dnssd is a discovery utility for SoapyRemote SDR servers.
//
// It announces a local server on the network via mDNS/DNS-SD, scans for
// servers announced by peers, and can watch the network live. Servers
// are identified by the UUID carried in their DNS-SD TXT record; the
// returned URLs are ready to hand to a SoapyRemote client.
//
// Usage:
//
//	soapy-dnssd [command] [flags]
//
// Running without arguments scans the network once.
// See 'soapy-dnssd --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soapysdr/go-dnssd/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "soapy-dnssd",
	Short: "SoapyRemote Server Discovery Utility",
	Long: `A standalone utility for discovering and announcing SoapyRemote
SDR servers on the local network with mDNS/DNS-SD.

Provides one-shot scanning, server announcement, a live watch view,
and a summary of the local mDNS connection.

If no command is specified, a one-shot scan runs.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: scan when no subcommand provided
		return runScan(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("soapy-dnssd %s (commit: %s)\n", version.Version, version.Commit)
	},
}
