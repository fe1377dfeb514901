// Package version reports the build of the agent.
//
// Version, commit and build time are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/monitkit/version.Version=1.0.0" ./cmd/monitexec
//
// Unset values fall back to the VCS stamps the go tool embeds.
package version
