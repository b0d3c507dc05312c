package daemon

import (
	"errors"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
)

// State is the client connection state machine. It follows the usual
// responder-daemon progression: Connecting, then Registering while the
// local host records settle, then Running. Collision and Failure are
// terminal.
type State int

const (
	StateConnecting State = iota
	StateRegistering
	StateRunning
	StateCollision
	StateFailure
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRegistering:
		return "registering"
	case StateRunning:
		return "running"
	case StateCollision:
		return "collision"
	case StateFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// StateHandler receives client state transitions on the Poller goroutine.
type StateHandler func(state State, err error)

// Client is the connection to the local mDNS machinery. Connect never
// fails; if the host cannot do multicast the client transitions to
// StateFailure through the Poller instead.
type Client struct {
	poller  *Poller
	handler StateHandler

	mu      sync.Mutex
	state   State
	lastErr error

	hostname string
	domain   string
}

// Connect builds a client and probes the host asynchronously. The state
// transition (Running or Failure) is delivered via the Poller, so it is
// only observed once someone pumps.
func Connect(poller *Poller, handler StateHandler) *Client {
	host, _ := os.Hostname()
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	c := &Client{
		poller:   poller,
		handler:  handler,
		state:    StateConnecting,
		hostname: host,
		domain:   "local",
	}
	go c.probe()
	return c
}

// probe checks that at least one interface can carry multicast traffic.
func (c *Client) probe() {
	ifaces, err := multicastInterfaces()
	if err == nil && len(ifaces) == 0 {
		err = errors.New("no multicast-capable network interfaces")
	}
	if err != nil {
		c.setState(StateFailure, err)
		return
	}
	c.setState(StateRegistering, nil)
	c.setState(StateRunning, nil)
}

func (c *Client) setState(s State, err error) {
	c.poller.Post(func() {
		c.mu.Lock()
		c.state = s
		if err != nil {
			c.lastErr = err
		}
		c.mu.Unlock()
		if c.handler != nil {
			c.handler(s, err)
		}
	})
}

// Fail forces the client into StateFailure. Used when a backend operation
// reveals mid-session that the mDNS layer is gone.
func (c *Client) Fail(err error) {
	c.setState(StateFailure, err)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the most recent connection error, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Hostname returns the unqualified local host name.
func (c *Client) Hostname() string { return c.hostname }

// Domain returns the mDNS domain, normally "local".
func (c *Client) Domain() string { return c.domain }

// FQDN returns the host name qualified with the mDNS domain.
func (c *Client) FQDN() string { return c.hostname + "." + c.domain }

// Version identifies the backend for informational logging.
func (c *Client) Version() string {
	return "grandcat/zeroconf (" + runtime.Version() + ")"
}

// Close tears the client down. The zeroconf backend holds no persistent
// daemon socket, so there is nothing to release beyond the handles the
// caller already freed; Close exists for teardown symmetry.
func (c *Client) Close() {}

func multicastInterfaces() ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var usable []net.Interface
	for _, ifc := range all {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagMulticast == 0 {
			continue
		}
		usable = append(usable, ifc)
	}
	return usable, nil
}
