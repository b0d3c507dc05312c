// Package config manages the user configuration file for the discovery
// CLI.
//
// The registry is a YAML file in the OS-appropriate config directory. It
// stores client-side metadata for servers seen on the network (nickname,
// last known URLs, last seen time, keyed by server UUID) along with
// application preferences such as the default IP version for discovery.
//
// Discovery itself never reads this file; the results the facade returns
// always come from the live mDNS view. The registry only enriches CLI
// output and remembers servers across runs.
package config
