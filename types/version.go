package types

// Version is the canonical project version.
// CLI and protocol implementation share this version per the lockstep
// versioning policy. PROTOCOL.md must reference this constant.
const Version = "0.2.0"
