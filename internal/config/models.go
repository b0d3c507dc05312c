package config

import "time"

// Registry represents the entire user configuration file.
// This stores client-side metadata for discovered servers and application
// preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Servers     map[string]*Server `yaml:"servers,omitempty"` // Keyed by server UUID
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Server represents client-side metadata for one SoapyRemote server.
// This is keyed by the server's UUID in the Registry; the UUID is the only
// identity that survives across sessions.
type Server struct {
	Nickname string            `yaml:"nickname,omitempty"`  // User-friendly name
	LastURLs map[string]string `yaml:"last_urls,omitempty"` // Last known URLs keyed by IP version ("IPv4"/"IPv6")
	LastSeen time.Time         `yaml:"last_seen,omitempty"` // Last discovery time
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	IPVersion string `yaml:"ip_version"`          // Default IP version for discovery: "any", "v4", "v6"
	LogLevel  string `yaml:"log_level,omitempty"` // Default log level when the env var is unset
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Servers: make(map[string]*Server),
		Preferences: &Preferences{
			IPVersion: "any",
		},
	}
}

// GetServer retrieves server metadata by UUID.
// Returns nil if the server doesn't exist in the registry.
func (r *Registry) GetServer(uuid string) *Server {
	return r.Servers[uuid]
}

// EnsureServer ensures a server entry exists in the registry.
// If the server doesn't exist, creates a new entry with default values.
// Returns the server entry (existing or newly created).
func (r *Registry) EnsureServer(uuid string) *Server {
	if r.Servers == nil {
		r.Servers = make(map[string]*Server)
	}

	if server, exists := r.Servers[uuid]; exists {
		return server
	}

	server := &Server{
		LastURLs: make(map[string]string),
	}
	r.Servers[uuid] = server
	return server
}

// RecordSighting updates the last seen timestamp and URLs for a server
// after a successful discovery pass.
func (r *Registry) RecordSighting(uuid string, urls map[string]string) {
	server := r.EnsureServer(uuid)
	server.LastSeen = time.Now()
	if server.LastURLs == nil {
		server.LastURLs = make(map[string]string)
	}
	for ipVer, url := range urls {
		server.LastURLs[ipVer] = url
	}
}

// SetNickname sets or updates the user-friendly name for a server.
func (r *Registry) SetNickname(uuid, nickname string) {
	r.EnsureServer(uuid).Nickname = nickname
}
