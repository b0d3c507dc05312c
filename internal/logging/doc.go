// Package logging provides structured logging for the discovery library
// and the CLI.
//
// It wraps zap with a package-level logger. Logging is silent unless the
// SOAPY_DNSSD_LOG_LEVEL environment variable (or an explicit Initialize
// call) turns it on, so library consumers and scripted CLI use see no
// unexpected output.
//
// Levels follow the discovery core's conventions: Debug for per-event
// lifecycle (services appearing, resolving, being removed), Info for the
// version/hostname summary at startup, Error for daemon, publisher and
// browser failures.
//
// Initialize at startup:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
package logging
