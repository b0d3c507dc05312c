package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/soapysdr/go-dnssd/internal/dnssd"
)

// SnapshotFunc returns the current discovery view. The watch screen polls
// it periodically; after the first call the facade serves the snapshot
// from its background-maintained store, so polling is cheap.
type SnapshotFunc func() map[string]map[dnssd.IPVersion]string

// NicknameFunc maps a server UUID to a user-assigned name, or "".
type NicknameFunc func(uuid string) string

// pollInterval is how often the watch screen refreshes its snapshot.
const pollInterval = 2 * time.Second

type snapshotMsg struct {
	servers map[string]map[dnssd.IPVersion]string
}

type pollTickMsg struct{}

// watchKeyMap defines key bindings for the watch screen
type watchKeyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k watchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k watchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Refresh, k.Quit},
	}
}

// WatchModel is the live discovery screen: a continuously refreshed list
// of SoapyRemote servers on the local network.
type WatchModel struct {
	Snapshot SnapshotFunc
	Nickname NicknameFunc

	servers  map[string]map[dnssd.IPVersion]string
	scanned  bool
	started  time.Time
	width    int
	height   int
	spin     spinner.Model
	helpView help.Model
	keys     watchKeyMap
}

// NewWatchModel creates the watch screen around a snapshot source.
func NewWatchModel(snapshot SnapshotFunc, nickname NicknameFunc) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	keys := watchKeyMap{
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh now"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}

	return WatchModel{
		Snapshot: snapshot,
		Nickname: nickname,
		started:  time.Now(),
		spin:     s,
		helpView: help.New(),
		keys:     keys,
	}
}

// Init starts the first snapshot and the poll timer.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.takeSnapshot, m.spin.Tick)
}

// takeSnapshot queries the facade. The very first call blocks until the
// initial browse settles, which is why it runs as a command off the
// update loop.
func (m WatchModel) takeSnapshot() tea.Msg {
	return snapshotMsg{servers: m.Snapshot()}
}

func pollTick() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollTickMsg{} })
}

// Update handles messages and updates the model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.takeSnapshot
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case snapshotMsg:
		m.servers = msg.servers
		m.scanned = true
		return m, pollTick()

	case pollTickMsg:
		return m, m.takeSnapshot

	case spinner.TickMsg:
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the watch screen
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("SOAPY REMOTE SERVERS"))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("  watching %s via mDNS, refresh every %s", dnssd.ServiceType, pollInterval)))
	b.WriteString("\n\n")

	switch {
	case !m.scanned:
		b.WriteString(fmt.Sprintf("  %s scanning the local network...\n", m.spin.View()))

	case len(m.servers) == 0:
		b.WriteString("  ")
		b.WriteString(WarnStyle.Render("No SoapyRemote servers on the network"))
		b.WriteString("\n\n")
		b.WriteString(SubtitleStyle.Render("  Servers appear here as soon as they announce themselves."))
		b.WriteString("\n")

	default:
		for _, uuid := range sortedUUIDs(m.servers) {
			b.WriteString(m.renderServer(uuid, m.servers[uuid]))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.helpView.View(m.keys))
	b.WriteString("\n")

	return b.String()
}

func (m WatchModel) renderServer(uuid string, urls map[dnssd.IPVersion]string) string {
	var content strings.Builder

	title := UUIDStyle.Render(uuid)
	if m.Nickname != nil {
		if nick := m.Nickname(uuid); nick != "" {
			title += "  " + NicknameStyle.Render("("+nick+")")
		}
	}
	content.WriteString(title)
	content.WriteString("\n")

	for _, ipVer := range sortedVersions(urls) {
		content.WriteString(IPVerStyle.Render(fmt.Sprintf("%-5s", ipVer.String())))
		content.WriteString(" ")
		content.WriteString(URLStyle.Render(urls[ipVer]))
		content.WriteString("\n")
	}

	return CardStyle.Render(strings.TrimRight(content.String(), "\n"))
}

func sortedUUIDs(servers map[string]map[dnssd.IPVersion]string) []string {
	uuids := make([]string, 0, len(servers))
	for uuid := range servers {
		uuids = append(uuids, uuid)
	}
	sort.Strings(uuids)
	return uuids
}

func sortedVersions(urls map[dnssd.IPVersion]string) []dnssd.IPVersion {
	versions := make([]dnssd.IPVersion, 0, len(urls))
	for v := range urls {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions
}
