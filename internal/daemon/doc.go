// Package daemon is the connection layer between the discovery facade and
// the local mDNS machinery.
//
// It mirrors the shape of a responder-daemon client library: a Poller pumps
// all events on a single goroutine, a Client tracks the connection state
// machine, and Group/Browser/Resolver handles publish and look up services.
// Every callback is delivered through the Poller, so handler code never
// needs its own locking against other handlers.
//
// The backend is grandcat/zeroconf, which speaks mDNS directly rather than
// talking to an external responder process. The state machine and event
// surface are kept daemon-shaped so the facade above is indifferent to
// which of the two is underneath.
package daemon
