package daemon

import (
	"errors"
	"sync"

	"github.com/grandcat/zeroconf"
)

// GroupState tracks an entry group through publication.
type GroupState int

const (
	GroupUncommitted GroupState = iota
	GroupRegistering
	GroupEstablished
	GroupCollision
	GroupFailure
)

func (s GroupState) String() string {
	switch s {
	case GroupUncommitted:
		return "uncommitted"
	case GroupRegistering:
		return "registering"
	case GroupEstablished:
		return "established"
	case GroupCollision:
		return "collision"
	case GroupFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// GroupHandler receives group state transitions on the Poller goroutine.
type GroupHandler func(state GroupState, err error)

// Service is one published service definition.
type Service struct {
	Iface  int
	Proto  Protocol
	Name   string
	Type   string
	Domain string
	Port   int
	Txt    []string
}

// Group is an entry group: a set of records published under one commit.
// It holds at most one service.
type Group struct {
	client  *Client
	handler GroupHandler

	mu    sync.Mutex
	state GroupState
	svc   *Service
	srv   *zeroconf.Server
	freed bool
}

// NewGroup allocates an empty entry group.
func (c *Client) NewGroup(handler GroupHandler) (*Group, error) {
	if c.State() == StateFailure {
		return nil, errors.New("client not connected")
	}
	return &Group{client: c, handler: handler}, nil
}

// AddService stages a service in the group. The group only carries one;
// a second call is an error.
func (g *Group) AddService(svc Service) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.svc != nil {
		return errors.New("entry group already holds a service")
	}
	if g.state != GroupUncommitted {
		return errors.New("entry group already committed")
	}
	staged := svc
	staged.Domain = domainOrDefault(svc.Domain)
	g.svc = &staged
	return nil
}

// Commit publishes the staged service. The registration itself runs off
// the pump goroutine; Established or Failure arrives via the Poller. The
// zeroconf backend answers for every address family the host carries, so
// the staged Proto is advisory on the publish side; family selection is
// enforced by the browsing peer.
func (g *Group) Commit() error {
	g.mu.Lock()
	if g.svc == nil {
		g.mu.Unlock()
		return errors.New("entry group is empty")
	}
	if g.state != GroupUncommitted {
		g.mu.Unlock()
		return errors.New("entry group already committed")
	}
	g.state = GroupRegistering
	svc := *g.svc
	g.mu.Unlock()

	g.setState(GroupRegistering, nil)

	go func() {
		srv, err := zeroconf.Register(svc.Name, svc.Type, svc.Domain, svc.Port, svc.Txt, nil)
		g.mu.Lock()
		if g.freed {
			g.mu.Unlock()
			if srv != nil {
				srv.Shutdown()
			}
			return
		}
		if err != nil {
			g.state = GroupFailure
			g.mu.Unlock()
			g.setState(GroupFailure, err)
			return
		}
		g.srv = srv
		g.state = GroupEstablished
		g.mu.Unlock()
		g.setState(GroupEstablished, nil)
	}()
	return nil
}

func (g *Group) setState(s GroupState, err error) {
	if g.handler == nil {
		return
	}
	g.client.poller.Post(func() { g.handler(s, err) })
}

// State returns the current group state.
func (g *Group) State() GroupState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Free withdraws the published records and releases the group.
func (g *Group) Free() {
	g.mu.Lock()
	srv := g.srv
	g.srv = nil
	g.freed = true
	g.mu.Unlock()
	if srv != nil {
		srv.Shutdown()
	}
}
