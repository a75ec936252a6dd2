package common

const (
	// Defaults mirror the options a fresh install starts with.
	DefaultQuality     = 45
	DefaultResizeToFit = true
	DefaultConvertPNGs = true
	DefaultOversample  = 2.0

	MaxConcurrencyLimit = 8

	// File operation constants
	DefaultFilePermissions = 0755

	// Event names emitted to the desktop frontend
	EventSessionUpdate = "session:update"
	EventImageFocus    = "image:focus"
	EventCompressError = "compress:error"
	EventStatsUpdate   = "stats:update"
)
