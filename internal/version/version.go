// Package version holds build identification, overridden at link time:
//
//	go build -ldflags "-X .../internal/version.Version=v1.2.0"
package version

var (
	// Version is the release tag of this build.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String renders the build identification on one line.
func String() string {
	return Version + " (" + GitSHA + ", built " + BuildTime + ")"
}
