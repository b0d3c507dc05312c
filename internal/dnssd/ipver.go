package dnssd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/soapysdr/go-dnssd/internal/daemon"
)

// IPVersion selects the address family of an announcement or a browse.
type IPVersion int

const (
	// IPvUnspecified covers both IPv4 and IPv6.
	IPvUnspecified IPVersion = iota
	// IPv4 only.
	IPv4
	// IPv6 only.
	IPv6
)

func (v IPVersion) String() string {
	switch v {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "IPvAny"
	}
}

// ParseIPVersion reads the CLI/config spelling of an IP version.
func ParseIPVersion(s string) (IPVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any", "auto", "unspec":
		return IPvUnspecified, nil
	case "4", "v4", "ipv4", "inet":
		return IPv4, nil
	case "6", "v6", "ipv6", "inet6":
		return IPv6, nil
	default:
		return IPvUnspecified, fmt.Errorf("unknown IP version %q", s)
	}
}

func (v IPVersion) protocol() daemon.Protocol {
	switch v {
	case IPv4:
		return daemon.ProtoInet
	case IPv6:
		return daemon.ProtoInet6
	default:
		return daemon.ProtoUnspec
	}
}

func versionOf(p daemon.Protocol) IPVersion {
	switch p {
	case daemon.ProtoInet:
		return IPv4
	case daemon.ProtoInet6:
		return IPv6
	default:
		return IPvUnspecified
	}
}

// serverURL builds the URL handed back to clients. IPv6 addresses carry
// the interface index as a zone suffix so link-local routing works.
func serverURL(addr string, iface int, proto daemon.Protocol, port int) string {
	if proto == daemon.ProtoInet6 {
		if iface < 0 {
			iface = 0
		}
		addr = addr + "%" + strconv.Itoa(iface)
	}
	return "tcp://" + addr + ":" + strconv.Itoa(port)
}

// parsePort reads the leading numeric prefix of a service port string.
// Anything non-numeric yields 0, which callers treat as a failure.
func parsePort(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		if n > 0xffff {
			return 0
		}
	}
	return n
}

// parseTxt turns "key=value" TXT strings into a map. Duplicate keys keep
// the last value; a key without '=' maps to the empty string.
func parseTxt(txt []string) map[string]string {
	fields := make(map[string]string, len(txt))
	for _, entry := range txt {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) == 2 {
			fields[parts[0]] = parts[1]
		} else {
			fields[parts[0]] = ""
		}
	}
	return fields
}
