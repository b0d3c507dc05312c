package daemon

import "github.com/grandcat/zeroconf"

// Protocol selects the IP family a publish or lookup applies to.
type Protocol int

const (
	// ProtoUnspec means both IPv4 and IPv6.
	ProtoUnspec Protocol = iota
	// ProtoInet is IPv4 only.
	ProtoInet
	// ProtoInet6 is IPv6 only.
	ProtoInet6
)

// AnyInterface publishes or browses on all usable network interfaces.
const AnyInterface = -1

// DefaultDomain is the mDNS domain used when a caller passes an empty one.
const DefaultDomain = "local."

func (p Protocol) String() string {
	switch p {
	case ProtoInet:
		return "ipv4"
	case ProtoInet6:
		return "ipv6"
	default:
		return "any"
	}
}

// ipTraffic maps a Protocol onto the backend's traffic selector.
func ipTraffic(p Protocol) zeroconf.IPType {
	switch p {
	case ProtoInet:
		return zeroconf.IPv4
	case ProtoInet6:
		return zeroconf.IPv6
	default:
		return zeroconf.IPv4AndIPv6
	}
}

// trafficProtocol is the inverse of ipTraffic.
func trafficProtocol(t zeroconf.IPType) Protocol {
	switch t {
	case zeroconf.IPv4:
		return ProtoInet
	case zeroconf.IPv6:
		return ProtoInet6
	default:
		return ProtoUnspec
	}
}

func domainOrDefault(domain string) string {
	if domain == "" {
		return DefaultDomain
	}
	return domain
}
