// Package version holds build identity, overridable at link time.
package version

// Version is the gateway version reported by the service root endpoint.
// Overridden by the release build via -ldflags "-X ...version.Version=".
var Version = "dev"
