// Package dnssd advertises SoapyRemote servers on the local network and
// discovers the ones announced by peers, using mDNS/DNS-SD semantics.
//
// Servers call RegisterService once at startup to publish a _soapy._tcp
// service carrying their UUID in the TXT record. Clients call ServerURLs
// to browse; the first call pumps the discovery event loop inline until
// the initial scan settles, after which a background goroutine keeps the
// view current and later calls return the live snapshot immediately.
//
// Discovery is advisory: nothing here returns an error to the caller.
// Failures are logged and fold into a false Status or an empty result.
package dnssd
