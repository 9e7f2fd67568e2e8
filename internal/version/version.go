package version

const APP = "siteguard"

// Overridden at build time via -ldflags "-X siteguard/internal/version.VERSION=...".
var (
	VERSION = "dev"
	COMMIT  = "none"
)
