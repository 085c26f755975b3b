// Package buildvars holds the values injected at build time with
// `-ldflags "-X github.com/xaionaro-go/predictctl/pkg/buildvars.Version=..."`.
package buildvars

import (
	"fmt"
	"strconv"
	"time"
)

var (
	GitCommit       string
	Version         string
	BuildDateString string
	BuildDate       *time.Time

	// TwitchClientID and TwitchClientSecret are the default application
	// credentials for new settings files.
	TwitchClientID     string
	TwitchClientSecret string
)

func init() {
	unixTS, err := strconv.ParseInt(BuildDateString, 10, 64)
	if err == nil {
		t := time.Unix(unixTS, 0)
		BuildDate = &t
	}
}

// String is a one-line description of the build.
func String() string {
	version := Version
	if version == "" {
		version = "devel"
	}
	s := version
	if GitCommit != "" {
		s += fmt.Sprintf(" (commit %s)", GitCommit)
	}
	if BuildDate != nil {
		s += fmt.Sprintf(", built at %s", BuildDate.UTC().Format(time.RFC3339))
	}
	return s
}
