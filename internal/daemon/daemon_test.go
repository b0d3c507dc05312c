package daemon

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestProtocolTrafficRoundTrip(t *testing.T) {
	for _, p := range []Protocol{ProtoUnspec, ProtoInet, ProtoInet6} {
		if got := trafficProtocol(ipTraffic(p)); got != p {
			t.Errorf("trafficProtocol(ipTraffic(%v)) = %v", p, got)
		}
	}
}

func TestProtocolString(t *testing.T) {
	tests := []struct {
		proto Protocol
		want  string
	}{
		{ProtoUnspec, "any"},
		{ProtoInet, "ipv4"},
		{ProtoInet6, "ipv6"},
		{Protocol(42), "any"},
	}
	for _, tt := range tests {
		if got := tt.proto.String(); got != tt.want {
			t.Errorf("Protocol(%d).String() = %q, want %q", tt.proto, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateConnecting, "connecting"},
		{StateRegistering, "registering"},
		{StateRunning, "running"},
		{StateCollision, "collision"},
		{StateFailure, "failure"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestDomainOrDefault(t *testing.T) {
	if got := domainOrDefault(""); got != "local." {
		t.Errorf("domainOrDefault(\"\") = %q, want \"local.\"", got)
	}
	if got := domainOrDefault("example."); got != "example." {
		t.Errorf("domainOrDefault kept = %q, want \"example.\"", got)
	}
}

func TestClientReachesTerminalState(t *testing.T) {
	p := NewPoller()
	defer p.Quit()

	c := Connect(p, nil)
	if c == nil {
		t.Fatal("Connect() = nil; construction must not fail")
	}

	// The probe result arrives through the poller. Whether it lands on
	// Running or Failure depends on the host, but it must settle.
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := c.State()
		if s == StateRunning || s == StateFailure {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("client state stuck at %v", s)
		}
		p.Iterate(10 * time.Millisecond)
	}

	if c.Hostname() == "" {
		t.Error("Hostname() is empty")
	}
	if c.Domain() != "local" {
		t.Errorf("Domain() = %q, want \"local\"", c.Domain())
	}
	if want := c.Hostname() + ".local"; c.FQDN() != want {
		t.Errorf("FQDN() = %q, want %q", c.FQDN(), want)
	}
	if c.Version() == "" {
		t.Error("Version() is empty")
	}
}

func TestGroupAddService(t *testing.T) {
	p := NewPoller()
	defer p.Quit()
	c := Connect(p, nil)

	g, err := c.NewGroup(nil)
	if err != nil {
		t.Fatalf("NewGroup() error = %v", err)
	}

	svc := Service{
		Iface: AnyInterface,
		Proto: ProtoUnspec,
		Name:  "SoapyRemote @ testhost",
		Type:  "_soapy._tcp",
		Port:  55132,
		Txt:   []string{"uuid=abc"},
	}
	if err := g.AddService(svc); err != nil {
		t.Fatalf("AddService() error = %v", err)
	}

	// Only one service per group
	if err := g.AddService(svc); err == nil {
		t.Error("second AddService() should fail")
	}

	// The empty domain is defaulted at staging time
	if g.svc.Domain != "local." {
		t.Errorf("staged domain = %q, want \"local.\"", g.svc.Domain)
	}

	if g.State() != GroupUncommitted {
		t.Errorf("State() = %v before Commit, want uncommitted", g.State())
	}
}

func TestGroupCommitEmpty(t *testing.T) {
	p := NewPoller()
	defer p.Quit()
	c := Connect(p, nil)

	g, err := c.NewGroup(nil)
	if err != nil {
		t.Fatalf("NewGroup() error = %v", err)
	}
	if err := g.Commit(); err == nil {
		t.Error("Commit() of an empty group should fail")
	}
}

func TestGroupStateString(t *testing.T) {
	tests := []struct {
		state GroupState
		want  string
	}{
		{GroupUncommitted, "uncommitted"},
		{GroupRegistering, "registering"},
		{GroupEstablished, "established"},
		{GroupCollision, "collision"},
		{GroupFailure, "failure"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("GroupState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestEntryEvents(t *testing.T) {
	v4 := net.ParseIP("192.168.1.42")
	v6 := net.ParseIP("fe80::1")

	entry := func(ttl uint32, v4s, v6s []net.IP) *zeroconf.ServiceEntry {
		e := &zeroconf.ServiceEntry{
			ServiceRecord: *zeroconf.NewServiceRecord("box", "_soapy._tcp", "local."),
			TTL:           ttl,
		}
		e.AddrIPv4 = v4s
		e.AddrIPv6 = v6s
		return e
	}

	tests := []struct {
		name       string
		entry      *zeroconf.ServiceEntry
		browsed    Protocol
		wantOps    []BrowseOp
		wantProtos []Protocol
	}{
		{
			name:       "dual-stack entry fans out per family",
			entry:      entry(120, []net.IP{v4}, []net.IP{v6}),
			browsed:    ProtoUnspec,
			wantOps:    []BrowseOp{BrowseNew, BrowseNew},
			wantProtos: []Protocol{ProtoInet, ProtoInet6},
		},
		{
			name:       "v4-only browse suppresses the v6 half",
			entry:      entry(120, []net.IP{v4}, []net.IP{v6}),
			browsed:    ProtoInet,
			wantOps:    []BrowseOp{BrowseNew},
			wantProtos: []Protocol{ProtoInet},
		},
		{
			name:       "v6-only browse suppresses the v4 half",
			entry:      entry(120, []net.IP{v4}, []net.IP{v6}),
			browsed:    ProtoInet6,
			wantOps:    []BrowseOp{BrowseNew},
			wantProtos: []Protocol{ProtoInet6},
		},
		{
			name:       "goodbye maps to remove",
			entry:      entry(0, []net.IP{v4}, nil),
			browsed:    ProtoUnspec,
			wantOps:    []BrowseOp{BrowseRemove},
			wantProtos: []Protocol{ProtoInet},
		},
		{
			name:       "no addresses falls back to the browsed protocol",
			entry:      entry(120, nil, nil),
			browsed:    ProtoInet6,
			wantOps:    []BrowseOp{BrowseNew},
			wantProtos: []Protocol{ProtoInet6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := entryEvents(tt.entry, 0, tt.browsed)
			if len(events) != len(tt.wantOps) {
				t.Fatalf("got %d events, want %d", len(events), len(tt.wantOps))
			}
			for i, ev := range events {
				if ev.Op != tt.wantOps[i] {
					t.Errorf("event %d op = %v, want %v", i, ev.Op, tt.wantOps[i])
				}
				if ev.Proto != tt.wantProtos[i] {
					t.Errorf("event %d proto = %v, want %v", i, ev.Proto, tt.wantProtos[i])
				}
				if ev.Name != "box" {
					t.Errorf("event %d name = %q, want \"box\"", i, ev.Name)
				}
			}
		})
	}
}

func TestPickAddr(t *testing.T) {
	v4 := net.ParseIP("192.168.1.42")
	v6 := net.ParseIP("fe80::1")
	entry := &zeroconf.ServiceEntry{}
	entry.AddrIPv4 = []net.IP{v4}
	entry.AddrIPv6 = []net.IP{v6}

	if got := pickAddr(entry, ProtoInet); !got.Equal(v4) {
		t.Errorf("pickAddr(inet) = %v, want %v", got, v4)
	}
	if got := pickAddr(entry, ProtoInet6); !got.Equal(v6) {
		t.Errorf("pickAddr(inet6) = %v, want %v", got, v6)
	}
	if got := pickAddr(entry, ProtoUnspec); !got.Equal(v4) {
		t.Errorf("pickAddr(unspec) = %v, want v4 %v", got, v4)
	}

	v6only := &zeroconf.ServiceEntry{}
	v6only.AddrIPv6 = []net.IP{v6}
	if got := pickAddr(v6only, ProtoUnspec); !got.Equal(v6) {
		t.Errorf("pickAddr(unspec, v6-only) = %v, want %v", got, v6)
	}
	if got := pickAddr(v6only, ProtoInet); got != nil {
		t.Errorf("pickAddr(inet, v6-only) = %v, want nil", got)
	}
}

func TestBrowseTrackerObserve(t *testing.T) {
	tr := newBrowseTracker()
	now := time.Now()

	newA := BrowseEvent{Op: BrowseNew, Iface: 2, Proto: ProtoInet, Name: "a", Service: "_soapy._tcp", Domain: "local."}

	if _, ok := tr.observe(newA, now); !ok {
		t.Fatal("first announcement should surface")
	}
	if _, ok := tr.observe(newA, now.Add(time.Second)); ok {
		t.Error("repeat announcement should be suppressed")
	}

	// Same instance on the other address family is distinct.
	newA6 := newA
	newA6.Proto = ProtoInet6
	if _, ok := tr.observe(newA6, now); !ok {
		t.Error("announcement on a second family should surface")
	}

	bye := newA
	bye.Op = BrowseRemove
	if out, ok := tr.observe(bye, now.Add(2*time.Second)); !ok || out.Op != BrowseRemove {
		t.Error("goodbye for a live instance should surface as a removal")
	}
	if _, ok := tr.observe(bye, now.Add(3*time.Second)); ok {
		t.Error("goodbye for an unknown instance should be dropped")
	}

	// After the goodbye the instance can come back.
	if _, ok := tr.observe(newA, now.Add(4*time.Second)); !ok {
		t.Error("re-announcement after a goodbye should surface again")
	}
}

func TestBrowseTrackerSweep(t *testing.T) {
	tr := newBrowseTracker()
	start := time.Now()

	stale := BrowseEvent{Op: BrowseNew, Iface: 2, Proto: ProtoInet, Name: "stale", Service: "_soapy._tcp", Domain: "local."}
	fresh := BrowseEvent{Op: BrowseNew, Iface: 2, Proto: ProtoInet, Name: "fresh", Service: "_soapy._tcp", Domain: "local."}

	tr.observe(stale, start)
	tr.observe(fresh, start)

	// A refresh inside the window keeps an instance alive.
	tr.observe(fresh, start.Add(presenceWindow))

	gone := tr.sweep(start.Add(presenceWindow + time.Second))
	if len(gone) != 1 {
		t.Fatalf("sweep reported %d removals, want 1", len(gone))
	}
	ev := gone[0]
	if ev.Op != BrowseRemove || ev.Name != "stale" {
		t.Errorf("sweep reported %+v, want a removal of %q", ev, "stale")
	}
	if ev.Iface != 2 || ev.Proto != ProtoInet || ev.Service != "_soapy._tcp" || ev.Domain != "local." {
		t.Errorf("synthetic goodbye lost the announcement identity: %+v", ev)
	}

	// Sweeping again reports nothing; the stale instance is forgotten.
	if again := tr.sweep(start.Add(presenceWindow + 2*time.Second)); len(again) != 0 {
		t.Errorf("second sweep reported %d removals, want 0", len(again))
	}

	// The removed instance can be announced again.
	if _, ok := tr.observe(stale, start.Add(presenceWindow+3*time.Second)); !ok {
		t.Error("announcement after a swept removal should surface")
	}
}

func TestBrowseOpString(t *testing.T) {
	ops := map[BrowseOp]string{
		BrowseNew:            "new",
		BrowseRemove:         "remove",
		BrowseAllForNow:      "all-for-now",
		BrowseCacheExhausted: "cache-exhausted",
		BrowseFailure:        "failure",
	}
	for op, want := range ops {
		if got := op.String(); got != want {
			t.Errorf("BrowseOp(%d).String() = %q, want %q", op, got, want)
		}
	}
}
