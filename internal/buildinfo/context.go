// Package buildinfo carries build-time metadata separate from user configuration
package buildinfo

import (
	"fmt"
	"runtime"
)

// UnknownValue is reported for metadata not injected at build time
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
// It is injected at startup through -ldflags.
type Context struct {
	version   string
	buildDate string
}

// NewContext creates a Context.
func NewContext(version, buildDate string) *Context {
	return &Context{version: version, buildDate: buildDate}
}

// Version returns the build version string.
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build date string.
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// UserAgent identifies this build in outbound requests
func (c *Context) UserAgent() string {
	return fmt.Sprintf("birdnet-display/%s (%s/%s)", c.Version(), runtime.GOOS, runtime.GOARCH)
}

// String implements fmt.Stringer.
func (c *Context) String() string {
	return fmt.Sprintf("%s (built %s, %s)", c.Version(), c.BuildDate(), runtime.Version())
}
