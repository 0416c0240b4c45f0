// Package buildinfo carries values stamped in at link time:
//
//	go build -ldflags "-X github.com/waseemkhan00777/askify-gemini/internal/buildinfo.Version=v1.2.0"
package buildinfo

var (
	Version = "dev"
	Commit  = "none"
	BuiltAt = "unknown"
)
