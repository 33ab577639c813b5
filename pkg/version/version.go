package version

// Version is overridden at build time with -ldflags "-X .../pkg/version.Version=...".
var Version = "0.1.0"

const ProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists the MCP revisions the tool server will echo
// back during initialize negotiation, newest first.
var SupportedProtocolVersions = []string{
	"2025-06-18",
	"2025-03-26",
	"2024-11-05",
}
