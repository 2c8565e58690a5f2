// Package internal holds build information shared by the burnkit binaries.
package internal

// Version is the build version, overridden at build time with
// -ldflags "-X github.com/proofofburn/burnkit/internal.Version=v1.2.3".
var Version = "dev"
