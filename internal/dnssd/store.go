package dnssd

import (
	"sync"

	"github.com/soapysdr/go-dnssd/internal/daemon"
)

// serviceKey identifies a browsed service instance. The responder keeps
// names unique per (interface, protocol), so the full tuple is the key.
type serviceKey struct {
	iface   int
	proto   daemon.Protocol
	name    string
	service string
	domain  string
}

// resolvedService is what a completed resolution contributes.
type resolvedService struct {
	uuid  string
	ipVer IPVersion
	url   string
}

// resultStore aggregates resolver results. All methods are safe for
// concurrent use.
type resultStore struct {
	mu      sync.Mutex
	entries map[serviceKey]resolvedService
}

func newResultStore() *resultStore {
	return &resultStore{entries: make(map[serviceKey]resolvedService)}
}

// add inserts or replaces the value for key. Entries without a uuid are
// not SoapyRemote peers and are rejected.
func (s *resultStore) add(key serviceKey, value resolvedService) bool {
	if value.uuid == "" {
		return false
	}
	s.mu.Lock()
	s.entries[key] = value
	s.mu.Unlock()
	return true
}

// remove deletes key if present and returns the previous value.
func (s *resultStore) remove(key serviceKey) (resolvedService, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	return prev, ok
}

// snapshot projects the store into the per-UUID view handed to callers.
// A server answering on both families contributes one URL per version.
func (s *resultStore) snapshot() map[string]map[IPVersion]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[IPVersion]string, len(s.entries))
	for _, v := range s.entries {
		urls, ok := out[v.uuid]
		if !ok {
			urls = make(map[IPVersion]string, 2)
			out[v.uuid] = urls
		}
		urls[v.ipVer] = v.url
	}
	return out
}
