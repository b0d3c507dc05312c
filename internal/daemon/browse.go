package daemon

import (
	"context"
	"time"

	"github.com/grandcat/zeroconf"
)

// BrowseOp discriminates browser events.
type BrowseOp int

const (
	// BrowseNew announces a service instance not previously reported.
	BrowseNew BrowseOp = iota
	// BrowseRemove reports a goodbye for a previously reported instance.
	BrowseRemove
	// BrowseAllForNow marks the end of the initial scan; more events may
	// still trickle in afterwards.
	BrowseAllForNow
	// BrowseCacheExhausted marks the end of cached records.
	BrowseCacheExhausted
	// BrowseFailure reports a terminal browser error.
	BrowseFailure
)

func (op BrowseOp) String() string {
	switch op {
	case BrowseNew:
		return "new"
	case BrowseRemove:
		return "remove"
	case BrowseAllForNow:
		return "all-for-now"
	case BrowseCacheExhausted:
		return "cache-exhausted"
	case BrowseFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// BrowseEvent is one browser callback payload.
type BrowseEvent struct {
	Op      BrowseOp
	Iface   int
	Proto   Protocol
	Name    string
	Service string
	Domain  string
	Err     error
}

// BrowseHandler receives browser events on the Poller goroutine.
type BrowseHandler func(ev BrowseEvent)

// settleWindow is how long after browse start the initial scan is
// considered complete. Responders refresh the cache well inside this.
const settleWindow = 1200 * time.Millisecond

// rescanInterval is how often the backend subscription is restarted. The
// backend delivers each instance at most once per subscription, so fresh
// rounds are the only way to observe that an instance is still answering.
const rescanInterval = 15 * time.Second

// presenceWindow is how long an instance stays live without a rescan
// confirming it. Two full rescans have to miss an instance before it is
// reported as removed.
const presenceWindow = 2*rescanInterval + settleWindow

// Browser is a running subscription to announcements of one service type.
type Browser struct {
	client *Client
	cancel context.CancelFunc
}

// NewBrowser subscribes to service-type announcements and reports them to
// handler through the Poller. After the initial scan window an AllForNow
// event is delivered. Instances that stop answering rescans are reported
// as removed.
func (c *Client) NewBrowser(iface int, proto Protocol, service, domain string, handler BrowseHandler) (*Browser, error) {
	ctx, cancel := context.WithCancel(context.Background())

	entries, stop, err := startBrowseRound(ctx, service, domain, proto)
	if err != nil {
		cancel()
		return nil, err
	}

	b := &Browser{client: c, cancel: cancel}

	go c.browseLoop(ctx, iface, proto, service, domain, handler, entries, stop)

	settle := time.AfterFunc(settleWindow, func() {
		c.poller.Post(func() {
			handler(BrowseEvent{Op: BrowseAllForNow, Iface: iface, Proto: proto, Service: service})
		})
	})
	go func() {
		<-ctx.Done()
		settle.Stop()
	}()

	return b, nil
}

// startBrowseRound opens one backend subscription.
func startBrowseRound(parent context.Context, service, domain string, proto Protocol) (<-chan *zeroconf.ServiceEntry, context.CancelFunc, error) {
	resolver, err := zeroconf.NewResolver(zeroconf.SelectIPTraffic(ipTraffic(proto)))
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithCancel(parent)
	entries := make(chan *zeroconf.ServiceEntry, 16)
	if err := resolver.Browse(ctx, service, domainOrDefault(domain), entries); err != nil {
		cancel()
		return nil, nil, err
	}
	return entries, cancel, nil
}

// browseLoop feeds backend entries through a liveness tracker and restarts
// the subscription every rescanInterval so refresh announcements are
// observed again.
func (c *Client) browseLoop(ctx context.Context, iface int, proto Protocol, service, domain string, handler BrowseHandler, entries <-chan *zeroconf.ServiceEntry, stop context.CancelFunc) {
	tracker := newBrowseTracker()
	rescan := time.NewTicker(rescanInterval)
	defer rescan.Stop()

	post := func(ev BrowseEvent) {
		c.poller.Post(func() { handler(ev) })
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return

		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			now := time.Now()
			for _, ev := range entryEvents(entry, iface, proto) {
				if out, surfaced := tracker.observe(ev, now); surfaced {
					post(out)
				}
			}

		case <-rescan.C:
			for _, ev := range tracker.sweep(time.Now()) {
				post(ev)
			}
			stop()
			next, nextStop, err := startBrowseRound(ctx, service, domain, proto)
			if err != nil {
				post(BrowseEvent{Op: BrowseFailure, Iface: iface, Proto: proto, Service: service, Err: err})
				return
			}
			entries, stop = next, nextStop
		}
	}
}

// liveKey identifies one instance on one address family.
type liveKey struct {
	name  string
	proto Protocol
}

// browseTracker keeps the live-instance set for one subscription across
// rescan rounds. Repeat announcements only refresh the seen time;
// instances no round has confirmed inside presenceWindow get a synthetic
// goodbye from sweep.
type browseTracker struct {
	live map[liveKey]*liveEntry
}

type liveEntry struct {
	ev   BrowseEvent
	seen time.Time
}

func newBrowseTracker() *browseTracker {
	return &browseTracker{live: make(map[liveKey]*liveEntry)}
}

// observe folds one event into the tracker and reports whether it should
// be surfaced to the handler.
func (t *browseTracker) observe(ev BrowseEvent, now time.Time) (BrowseEvent, bool) {
	key := liveKey{name: ev.Name, proto: ev.Proto}

	if ev.Op == BrowseRemove {
		if _, ok := t.live[key]; !ok {
			return ev, false
		}
		delete(t.live, key)
		return ev, true
	}

	if le, ok := t.live[key]; ok {
		le.seen = now
		return ev, false
	}
	t.live[key] = &liveEntry{ev: ev, seen: now}
	return ev, true
}

// sweep reports a goodbye for every instance whose last confirmation is
// older than presenceWindow and forgets it.
func (t *browseTracker) sweep(now time.Time) []BrowseEvent {
	cutoff := now.Add(-presenceWindow)
	var gone []BrowseEvent
	for key, le := range t.live {
		if le.seen.Before(cutoff) {
			ev := le.ev
			ev.Op = BrowseRemove
			gone = append(gone, ev)
			delete(t.live, key)
		}
	}
	return gone
}

// entryEvents maps one backend service entry onto browser events, one per
// address family the entry answers on. A zero TTL maps to a goodbye for
// backends that deliver them; against zeroconf disappearance is detected
// by the rescan sweep instead, since its mainloop swallows TTL-0 entries
// before they reach the entries channel.
func entryEvents(entry *zeroconf.ServiceEntry, iface int, browsed Protocol) []BrowseEvent {
	op := BrowseNew
	if entry.TTL == 0 {
		op = BrowseRemove
	}

	base := BrowseEvent{
		Op:      op,
		Iface:   iface,
		Name:    entry.Instance,
		Service: entry.Service,
		Domain:  entry.Domain,
	}

	var events []BrowseEvent
	if len(entry.AddrIPv4) > 0 && browsed != ProtoInet6 {
		ev := base
		ev.Proto = ProtoInet
		events = append(events, ev)
	}
	if len(entry.AddrIPv6) > 0 && browsed != ProtoInet {
		ev := base
		ev.Proto = ProtoInet6
		events = append(events, ev)
	}
	if len(events) == 0 {
		// No addresses resolved yet, report on the browsed protocol and
		// let the per-instance resolver sort it out.
		ev := base
		ev.Proto = browsed
		events = append(events, ev)
	}
	return events
}

// Free cancels the subscription. Events already queued on the Poller may
// still be delivered.
func (b *Browser) Free() {
	if b.cancel != nil {
		b.cancel()
	}
}
