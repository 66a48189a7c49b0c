// Package buildinfo holds build-time metadata — version, build date, and a
// per-deployment system identifier — injected at link time via -ldflags
// rather than read from configuration, so a binary's provenance survives
// independently of whatever config.yaml/parameters.json it's started with.
package buildinfo

// UnknownValue is returned for any field that was never set, including
// calls on a nil *Context.
const UnknownValue = "unknown"

// Version, BuildDate and SystemID are overridden at link time via
// -ldflags "-X github.com/robudan/acoustic-logger/internal/buildinfo.Version=...".
// Default returns a Context built from their current values.
var (
	Version   = ""
	BuildDate = ""
	SystemID  = ""
)

// Default returns a Context reflecting the package-level, link-time
// overridable vars above.
func Default() *Context {
	return NewContext(Version, BuildDate, SystemID)
}

// BuildInfo provides an interface for accessing build-time metadata. This
// interface makes testing easier and allows for different implementations.
type BuildInfo interface {
	Version() string
	BuildDate() string
	SystemID() string
}

// Context contains build-time metadata that is not user-configurable.
// This data is injected at application startup and should not be part of
// the configuration system.
type Context struct {
	version   string
	buildDate string
	systemID  string
}

// NewContext returns a Context. An empty field reads back as UnknownValue
// rather than "", so log lines and the /metrics build-info gauge never
// emit a blank label.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{version: version, buildDate: buildDate, systemID: systemID}
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

// SystemID returns the unique system identifier.
func (c *Context) SystemID() string {
	if c == nil || c.systemID == "" {
		return UnknownValue
	}
	return c.systemID
}

// GetVersion is a deprecated alias for Version, kept for callers ported
// from the pre-NewContext interface shape.
func (c *Context) GetVersion() string { return c.Version() }

// GetBuildDate is a deprecated alias for BuildDate.
func (c *Context) GetBuildDate() string { return c.BuildDate() }

// GetSystemID is a deprecated alias for SystemID.
func (c *Context) GetSystemID() string { return c.SystemID() }

// ValidationResult holds validation outcomes separately from
// configuration: hard errors and non-fatal warnings accumulated in a
// single pass.
type ValidationResult struct {
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Valid    bool     `json:"valid"`
}

// NewValidationResult creates a new validation result with Valid set to true.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// AddWarning adds a warning to the validation result.
func (r *ValidationResult) AddWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

// AddError adds an error to the validation result and marks it invalid.
func (r *ValidationResult) AddError(message string) {
	r.Errors = append(r.Errors, message)
	r.Valid = false
}

// HasIssues returns true if there are any warnings or errors.
func (r *ValidationResult) HasIssues() bool {
	return len(r.Warnings) > 0 || len(r.Errors) > 0
}
