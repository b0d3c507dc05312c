package dnssd

import (
	"sync"

	"go.uber.org/zap"

	"github.com/soapysdr/go-dnssd/internal/daemon"
	"github.com/soapysdr/go-dnssd/internal/logging"
)

// ServiceType is the DNS-SD service type SoapyRemote servers announce.
const ServiceType = "_soapy._tcp"

// serviceNamePrefix is the human-visible half of the instance name. The
// identity lives in the TXT uuid field, not here.
const serviceNamePrefix = "SoapyRemote"

// conn abstracts the daemon client so session behavior can be exercised
// with a scripted connection in tests.
type conn interface {
	State() daemon.State
	Err() error
	Hostname() string
	Domain() string
	FQDN() string
	Version() string
	NewGroup(h daemon.GroupHandler) (group, error)
	NewBrowser(iface int, proto daemon.Protocol, service, domain string, h daemon.BrowseHandler) (browser, error)
	NewResolver(iface int, proto daemon.Protocol, name, service, domain string, aproto daemon.Protocol, h daemon.ResolveHandler) (resolver, error)
	Close()
}

type group interface {
	AddService(svc daemon.Service) error
	Commit() error
	Free()
}

type browser interface {
	Free()
}

type resolver interface {
	Free()
}

// clientConn adapts the concrete daemon client to the conn seam.
type clientConn struct {
	*daemon.Client
}

func (c clientConn) NewGroup(h daemon.GroupHandler) (group, error) {
	g, err := c.Client.NewGroup(h)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (c clientConn) NewBrowser(iface int, proto daemon.Protocol, service, domain string, h daemon.BrowseHandler) (browser, error) {
	b, err := c.Client.NewBrowser(iface, proto, service, domain, h)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c clientConn) NewResolver(iface int, proto daemon.Protocol, name, service, domain string, aproto daemon.Protocol, h daemon.ResolveHandler) (resolver, error) {
	r, err := c.Client.NewResolver(iface, proto, name, service, domain, aproto, h)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// DNSSD is one discovery session: a poll driver, a daemon connection, at
// most one publisher and at most one browser for the session lifetime.
type DNSSD struct {
	log    *zap.Logger
	poller *daemon.Poller
	conn   conn

	mu                sync.Mutex
	cond              *sync.Cond
	group             group
	browser           browser
	resolvers         []resolver
	resolversInFlight int
	browseComplete    bool

	// pumpStarted means some goroutine owns the event loop: either the
	// first ServerURLs call iterating inline, or the detached background
	// pump. pumpDetached means the background goroutine exists.
	pumpStarted  bool
	pumpDetached bool

	pumpDone chan struct{}

	results *resultStore
}

// Option configures a session.
type Option func(*DNSSD)

// WithLogger overrides the package logger for this session.
func WithLogger(l *zap.Logger) Option {
	return func(d *DNSSD) { d.log = l }
}

// New opens a discovery session. Construction never fails: an absent or
// broken mDNS layer surfaces later as Status() == false and empty
// discovery results.
func New(opts ...Option) *DNSSD {
	d := newSession(nil, opts...)
	d.conn = clientConn{daemon.Connect(d.poller, d.onClientState)}
	return d
}

// newSession wires everything except the connection; tests inject their
// own conn here.
func newSession(c conn, opts ...Option) *DNSSD {
	d := &DNSSD{
		log:      logging.GetLogger(),
		poller:   daemon.NewPoller(),
		conn:     c,
		pumpDone: make(chan struct{}),
		results:  newResultStore(),
	}
	d.cond = sync.NewCond(&d.mu)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Status reports whether the daemon connection is usable.
func (d *DNSSD) Status() bool {
	return d.conn.State() != daemon.StateFailure
}

// Hostname returns the daemon-reported local host name.
func (d *DNSSD) Hostname() string { return d.conn.Hostname() }

// Domain returns the mDNS domain.
func (d *DNSSD) Domain() string { return d.conn.Domain() }

// FQDN returns the fully qualified local host name.
func (d *DNSSD) FQDN() string { return d.conn.FQDN() }

// Version identifies the mDNS backend.
func (d *DNSSD) Version() string { return d.conn.Version() }

// PrintInfo logs a summary of the daemon connection. Servers call this
// once at startup.
func (d *DNSSD) PrintInfo() {
	d.log.Info("mDNS version", zap.String("version", d.conn.Version()))
	d.log.Info("mDNS hostname", zap.String("hostname", d.conn.Hostname()))
	d.log.Info("mDNS domain", zap.String("domain", d.conn.Domain()))
	d.log.Info("mDNS FQDN", zap.String("fqdn", d.conn.FQDN()))
}

// RegisterService announces this server on the local network. The TXT
// record carries uuid as the stable cross-session identity. Failures are
// logged and leave the session unregistered; nothing is returned.
//
// Only one registration is allowed per session; repeat calls are logged
// and ignored.
func (d *DNSSD) RegisterService(uuid, port string, ipVer IPVersion) {
	d.mu.Lock()
	if d.group != nil {
		d.mu.Unlock()
		d.log.Error("service already registered in this session")
		return
	}
	d.mu.Unlock()

	portNum := parsePort(port)
	if portNum == 0 {
		d.log.Error("service port is not numeric", zap.String("port", port))
		return
	}

	g, err := d.conn.NewGroup(d.onGroupState)
	if err != nil {
		d.log.Error("entry group allocation failed", zap.Error(err))
		return
	}

	svc := daemon.Service{
		Iface: daemon.AnyInterface,
		Proto: ipVer.protocol(),
		Name:  serviceNamePrefix + " @ " + d.conn.Hostname(),
		Type:  ServiceType,
		Port:  portNum,
		Txt:   []string{"uuid=" + uuid},
	}
	if err := g.AddService(svc); err != nil {
		d.log.Error("entry group add service failed", zap.Error(err))
		g.Free()
		return
	}
	if err := g.Commit(); err != nil {
		d.log.Error("entry group commit failed", zap.Error(err))
		g.Free()
		return
	}

	d.mu.Lock()
	if d.group != nil {
		d.mu.Unlock()
		g.Free()
		d.log.Error("service already registered in this session")
		return
	}
	d.group = g
	d.mu.Unlock()

	d.log.Debug("service registration committed",
		zap.String("name", svc.Name),
		zap.Int("port", portNum),
		zap.Stringer("ipver", ipVer))

	// Pump in the background from here so group state events flow while
	// the server goes about its business.
	d.startPump()
}

// ServerURLs browses for SoapyRemote servers and returns their URLs keyed
// by UUID, then by IP version. The first call creates the browser and
// blocks until the initial scan settles; later calls return the live
// snapshot maintained by the background pump. The browser keeps the IP
// version of the first call for the rest of the session.
func (d *DNSSD) ServerURLs(ipVer IPVersion) map[string]map[IPVersion]string {
	d.mu.Lock()
	if d.browser != nil {
		d.mu.Unlock()
		return d.results.snapshot()
	}

	b, err := d.conn.NewBrowser(daemon.AnyInterface, ipVer.protocol(), ServiceType, "", d.onBrowse)
	if err != nil {
		d.mu.Unlock()
		d.log.Error("service browser allocation failed", zap.Error(err))
		return map[string]map[IPVersion]string{}
	}
	d.browser = b
	// Claim the loop in the same critical section that creates the
	// browser, or a registration racing with the first scan could detach
	// a second pumper while the inline loop is still iterating.
	owned := !d.pumpStarted
	if owned {
		d.pumpStarted = true
	}
	d.mu.Unlock()

	if !owned {
		// The background pump owns the event loop (the session registered
		// a service first). Wait for it to finish the scan instead of
		// iterating from two goroutines at once.
		d.mu.Lock()
		for !(d.browseComplete && d.resolversInFlight == 0) && !d.poller.Done() {
			d.cond.Wait()
		}
		d.mu.Unlock()
	} else {
		for {
			d.mu.Lock()
			done := d.browseComplete && d.resolversInFlight == 0
			d.mu.Unlock()
			if done {
				break
			}
			if !d.poller.Iterate(-1) {
				break
			}
		}
		d.detachPump()
	}

	return d.results.snapshot()
}

// Close tears the session down: stop the pump, join it, then free the
// browser, the resolvers, the publisher, and the connection, in that
// order.
func (d *DNSSD) Close() {
	d.poller.Quit()

	d.mu.Lock()
	detached := d.pumpDetached
	b, g := d.browser, d.group
	rs := d.resolvers
	d.browser, d.group, d.resolvers = nil, nil, nil
	d.cond.Broadcast()
	d.mu.Unlock()

	if detached {
		<-d.pumpDone
	}
	if b != nil {
		b.Free()
	}
	for _, r := range rs {
		// Completed resolvers have already released themselves; freeing
		// again is a no-op.
		r.Free()
	}
	if g != nil {
		g.Free()
	}
	if d.conn != nil {
		d.conn.Close()
	}
}

// startPump claims the event loop for the background goroutine. When an
// inline scan already owns the loop this is a no-op; the scan detaches
// the pump itself once it settles. At most one goroutine ever drives the
// Poller, no matter how registration and discovery calls interleave.
func (d *DNSSD) startPump() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pumpStarted || d.poller.Done() {
		return
	}
	d.pumpStarted = true
	d.detachLocked()
}

// detachPump hands an already-claimed loop over to the background
// goroutine.
func (d *DNSSD) detachPump() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detachLocked()
}

func (d *DNSSD) detachLocked() {
	if d.pumpDetached || d.poller.Done() {
		return
	}
	d.pumpDetached = true
	go func() {
		d.poller.RunForever()
		d.mu.Lock()
		d.cond.Broadcast()
		d.mu.Unlock()
		close(d.pumpDone)
	}()
}

func (d *DNSSD) onClientState(state daemon.State, err error) {
	switch state {
	case daemon.StateRunning:
		d.log.Debug("daemon client running")
	case daemon.StateCollision, daemon.StateFailure:
		d.log.Error("daemon client failure", zap.Stringer("state", state), zap.Error(err))
		d.poller.Quit()
		d.mu.Lock()
		d.cond.Broadcast()
		d.mu.Unlock()
	}
}

func (d *DNSSD) onGroupState(state daemon.GroupState, err error) {
	switch state {
	case daemon.GroupEstablished:
		d.log.Debug("entry group established")
	case daemon.GroupCollision, daemon.GroupFailure:
		d.log.Error("entry group failure", zap.Stringer("state", state), zap.Error(err))
		d.poller.Quit()
	}
}

func (d *DNSSD) onBrowse(ev daemon.BrowseEvent) {
	switch ev.Op {
	case daemon.BrowseNew:
		d.log.Debug("service appeared",
			zap.String("name", ev.Name),
			zap.Stringer("proto", ev.Proto),
			zap.Int("iface", ev.Iface))
		// Resolve with the protocol the instance was browsed on, or a v4
		// request can come back with a v6 address.
		r, err := d.conn.NewResolver(ev.Iface, ev.Proto, ev.Name, ev.Service, ev.Domain, ev.Proto, d.onResolve)
		if err != nil {
			d.log.Error("service resolver allocation failed", zap.Error(err))
			return
		}
		d.mu.Lock()
		d.resolvers = append(d.resolvers, r)
		d.resolversInFlight++
		d.mu.Unlock()

	case daemon.BrowseRemove:
		key := serviceKey{ev.Iface, ev.Proto, ev.Name, ev.Service, ev.Domain}
		if prev, ok := d.results.remove(key); ok {
			d.log.Debug("removed server",
				zap.String("url", prev.url),
				zap.String("uuid", prev.uuid),
				zap.Stringer("ipver", prev.ipVer))
		}

	case daemon.BrowseAllForNow, daemon.BrowseCacheExhausted:
		d.mu.Lock()
		d.browseComplete = true
		d.cond.Broadcast()
		d.mu.Unlock()

	case daemon.BrowseFailure:
		d.log.Error("service browser failure", zap.Error(ev.Err))
		d.mu.Lock()
		d.resolversInFlight = 0
		d.browseComplete = true
		d.cond.Broadcast()
		d.mu.Unlock()
	}
}

func (d *DNSSD) onResolve(ev daemon.ResolveEvent) {
	if ev.Found && ev.Addr != nil {
		fields := parseTxt(ev.Txt)
		if uuid := fields["uuid"]; uuid != "" {
			key := serviceKey{ev.Iface, ev.Proto, ev.Name, ev.Service, ev.Domain}
			value := resolvedService{
				uuid:  uuid,
				ipVer: versionOf(ev.Proto),
				url:   serverURL(ev.Addr.String(), ev.Iface, ev.Proto, ev.Port),
			}
			d.results.add(key, value)
			d.log.Debug("discovered server",
				zap.String("url", value.url),
				zap.String("uuid", value.uuid),
				zap.Stringer("ipver", value.ipVer))
		}
	}

	d.mu.Lock()
	if d.resolversInFlight > 0 {
		d.resolversInFlight--
	}
	d.cond.Broadcast()
	d.mu.Unlock()
}
