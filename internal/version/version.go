package version

// Version is overridden at build time with -ldflags "-X flightrecorder/internal/version.Version=...".
var Version = "dev"
