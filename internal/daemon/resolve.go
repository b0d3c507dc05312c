package daemon

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
)

// ResolveEvent is the outcome of a one-shot service resolution.
type ResolveEvent struct {
	Found   bool
	Iface   int
	Proto   Protocol
	Name    string
	Service string
	Domain  string
	Host    string
	Addr    net.IP
	Port    int
	Txt     []string
	Err     error
}

// ResolveHandler receives exactly one event per resolver, on the Poller
// goroutine.
type ResolveHandler func(ev ResolveEvent)

// resolveTimeout bounds a single instance lookup.
const resolveTimeout = 2 * time.Second

// Resolver is a one-shot lookup turning a browsed instance into address,
// port and TXT fields. It frees itself once the event is delivered.
type Resolver struct {
	cancel context.CancelFunc
}

// NewResolver starts resolving the named instance. aproto selects the
// address family of the lookup; using the protocol the instance was
// browsed on avoids handing back a v6 address for a v4 request.
func (c *Client) NewResolver(iface int, proto Protocol, name, service, domain string, aproto Protocol, handler ResolveHandler) (*Resolver, error) {
	backend, err := zeroconf.NewResolver(zeroconf.SelectIPTraffic(ipTraffic(aproto)))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	entries := make(chan *zeroconf.ServiceEntry, 4)

	if err := backend.Lookup(ctx, name, service, domainOrDefault(domain), entries); err != nil {
		cancel()
		return nil, err
	}

	r := &Resolver{cancel: cancel}

	go func() {
		defer cancel()
		ev := ResolveEvent{
			Iface:   iface,
			Proto:   proto,
			Name:    name,
			Service: service,
			Domain:  domain,
		}
		for {
			select {
			case <-ctx.Done():
				ev.Err = errors.New("resolution timed out")
				c.poller.Post(func() { handler(ev) })
				return
			case entry, ok := <-entries:
				if !ok {
					ev.Err = errors.New("lookup closed without a result")
					c.poller.Post(func() { handler(ev) })
					return
				}
				addr := pickAddr(entry, aproto)
				if addr == nil {
					continue
				}
				ev.Found = true
				ev.Host = entry.HostName
				ev.Addr = addr
				ev.Port = entry.Port
				ev.Txt = append([]string(nil), entry.Text...)
				c.poller.Post(func() { handler(ev) })
				return
			}
		}
	}()

	return r, nil
}

// pickAddr selects an address of the requested family from a resolved
// entry. For ProtoUnspec v4 wins when both are present.
func pickAddr(entry *zeroconf.ServiceEntry, proto Protocol) net.IP {
	switch proto {
	case ProtoInet:
		if len(entry.AddrIPv4) > 0 {
			return entry.AddrIPv4[0]
		}
	case ProtoInet6:
		if len(entry.AddrIPv6) > 0 {
			return entry.AddrIPv6[0]
		}
	default:
		if len(entry.AddrIPv4) > 0 {
			return entry.AddrIPv4[0]
		}
		if len(entry.AddrIPv6) > 0 {
			return entry.AddrIPv6[0]
		}
	}
	return nil
}

// Free abandons the lookup. The handler still fires once, reporting a
// timeout, so in-flight accounting stays balanced.
func (r *Resolver) Free() {
	if r.cancel != nil {
		r.cancel()
	}
}
