package version

// Version is set at build time with -ldflags "-X github.com/gchaimke/netscan/version.Version=..."
var Version string
