package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soapysdr/go-dnssd/internal/config"
	"github.com/soapysdr/go-dnssd/internal/dnssd"
	"github.com/soapysdr/go-dnssd/internal/logging"
	"github.com/soapysdr/go-dnssd/internal/ui"
)

// Command flags
var (
	ipVerFlag  string
	serverUUID string
	serverPort string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&ipVerFlag, "ipver", "", "IP version for discovery: any, v4 or v6 (default from config)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(announceCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(nameCmd)
}

// initSession sets up logging and opens a discovery session.
func initSession() (*dnssd.DNSSD, *config.Registry, dnssd.IPVersion, error) {
	reg, err := config.LoadRegistry()
	if err != nil {
		return nil, nil, dnssd.IPvUnspecified, fmt.Errorf("failed to load config: %w", err)
	}

	level := os.Getenv(logging.LogLevelEnvVar)
	if level == "" && reg.Preferences != nil {
		level = reg.Preferences.LogLevel
	}
	if err := logging.Initialize(level); err != nil {
		return nil, nil, dnssd.IPvUnspecified, err
	}

	spelling := ipVerFlag
	if spelling == "" && reg.Preferences != nil {
		spelling = reg.Preferences.IPVersion
	}
	ipVer, err := dnssd.ParseIPVersion(spelling)
	if err != nil {
		return nil, nil, dnssd.IPvUnspecified, err
	}

	return dnssd.New(), reg, ipVer, nil
}

// scanCmd discovers servers on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for SoapyRemote servers on the network",
	Long: `Scan for SoapyRemote servers using mDNS/DNS-SD discovery.

This command browses for ` + dnssd.ServiceType + ` services, waits for the
initial scan to settle, and prints every discovered server with its UUID
and per-IP-version URL. Sightings are recorded in the config registry.`,
	Example: `  # Scan on both IP versions
  soapy-dnssd scan

  # IPv4 only
  soapy-dnssd scan --ipver v4`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	sd, reg, ipVer, err := initSession()
	if err != nil {
		return err
	}
	defer logging.Sync()
	defer sd.Close()

	if !sd.Status() {
		fmt.Println("mDNS is unavailable on this host; no servers can be discovered.")
		return nil
	}

	fmt.Printf("Scanning for SoapyRemote servers (%s)...\n\n", ipVer)

	servers := sd.ServerURLs(ipVer)
	if len(servers) == 0 {
		fmt.Println("No servers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the server was started with remote discovery enabled")
		fmt.Println("  - Check that this machine and the server share a link")
		fmt.Println("  - IPv6 link-local servers need --ipver v6 or --ipver any")
		return nil
	}

	fmt.Printf("Found %d server(s):\n\n", len(servers))
	printServers(servers, reg)

	recordServers(reg, servers)
	if err := reg.Save(); err != nil {
		logging.Warn("failed to save config registry: " + err.Error())
	}

	return nil
}

// announceCmd registers a server announcement
var announceCmd = &cobra.Command{
	Use:   "announce",
	Short: "Announce a SoapyRemote server on the network",
	Long: `Announce a SoapyRemote server via mDNS/DNS-SD.

The announcement carries the server's TCP port and its UUID in the TXT
record. It stays up until the command is interrupted. Normally the
SoapyRemote server process announces itself; this command exists for
testing and for fronting servers that cannot.`,
	Example: `  # Announce a server on port 55132 with a generated UUID
  soapy-dnssd announce --port 55132

  # Announce with a fixed UUID, IPv4 only
  soapy-dnssd announce --port 55132 --uuid 11111111-2222-3333-4444-555555555555 --ipver v4`,
	RunE: runAnnounce,
}

func init() {
	announceCmd.Flags().StringVar(&serverPort, "port", "55132", "TCP port the server listens on")
	announceCmd.Flags().StringVar(&serverUUID, "uuid", "", "Server UUID (generated when omitted)")
}

func runAnnounce(cmd *cobra.Command, args []string) error {
	sd, _, ipVer, err := initSession()
	if err != nil {
		return err
	}
	defer logging.Sync()
	defer sd.Close()

	if !sd.Status() {
		return fmt.Errorf("mDNS is unavailable on this host")
	}

	id := serverUUID
	if id == "" {
		id = uuid.NewString()
	}

	sd.PrintInfo()
	sd.RegisterService(id, serverPort, ipVer)

	fmt.Printf("Announcing \"SoapyRemote @ %s\" on port %s (%s)\n", sd.Hostname(), serverPort, ipVer)
	fmt.Printf("UUID: %s\n", id)
	fmt.Println("Press Ctrl+C to withdraw the announcement.")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	fmt.Println("\nWithdrawing announcement.")
	return nil
}

// infoCmd summarizes the local mDNS connection
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show local mDNS connection details",
	RunE: func(cmd *cobra.Command, args []string) error {
		sd, _, _, err := initSession()
		if err != nil {
			return err
		}
		defer logging.Sync()
		defer sd.Close()

		sd.PrintInfo()

		fmt.Printf("Backend:  %s\n", sd.Version())
		fmt.Printf("Hostname: %s\n", sd.Hostname())
		fmt.Printf("Domain:   %s\n", sd.Domain())
		fmt.Printf("FQDN:     %s\n", sd.FQDN())
		if sd.Status() {
			fmt.Println("Status:   ok")
		} else {
			fmt.Println("Status:   unavailable")
		}
		return nil
	},
}

// watchCmd shows a live view of discovered servers
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the network for SoapyRemote servers",
	Long: `Continuously watch for SoapyRemote servers.

The first snapshot blocks until the initial scan settles; after that the
discovery event pump runs in the background and the view refreshes as
servers appear and disappear.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	sd, reg, ipVer, err := initSession()
	if err != nil {
		return err
	}
	defer logging.Sync()
	defer sd.Close()

	if !sd.Status() {
		return fmt.Errorf("mDNS is unavailable on this host")
	}

	snapshot := func() map[string]map[dnssd.IPVersion]string {
		return sd.ServerURLs(ipVer)
	}
	nickname := func(uuid string) string {
		if s := reg.GetServer(uuid); s != nil {
			return s.Nickname
		}
		return ""
	}

	model := ui.NewWatchModel(snapshot, nickname)
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// nameCmd assigns a nickname to a known server
var nameCmd = &cobra.Command{
	Use:   "name <uuid> <nickname>",
	Short: "Assign a nickname to a server UUID",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := config.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		reg.SetNickname(args[0], args[1])
		if err := reg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Printf("Server %s is now %q\n", args[0], args[1])
		return nil
	},
}

func printServers(servers map[string]map[dnssd.IPVersion]string, reg *config.Registry) {
	uuids := make([]string, 0, len(servers))
	for id := range servers {
		uuids = append(uuids, id)
	}
	sort.Strings(uuids)

	for i, id := range uuids {
		label := id
		if s := reg.GetServer(id); s != nil && s.Nickname != "" {
			label = fmt.Sprintf("%s (%s)", id, s.Nickname)
		}
		fmt.Printf("%d. %s\n", i+1, label)

		urls := servers[id]
		versions := make([]dnssd.IPVersion, 0, len(urls))
		for v := range urls {
			versions = append(versions, v)
		}
		sort.Slice(versions, func(a, b int) bool { return versions[a] < versions[b] })
		for _, v := range versions {
			fmt.Printf("   %-5s %s\n", v, urls[v])
		}
		fmt.Println()
	}
}

func recordServers(reg *config.Registry, servers map[string]map[dnssd.IPVersion]string) {
	for id, urls := range servers {
		byName := make(map[string]string, len(urls))
		for v, url := range urls {
			byName[v.String()] = url
		}
		reg.RecordSighting(id, byName)
	}
}
