// Package vars holds build-time variables populated via the linker (ldflags).
package vars

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"
)

// License of the project
const License = "AGPL-3.0"

var (
	// Name of the project
	Name = "gamestatus"

	// Version of application (git tag) semver/tag, e.g. v1.2.3
	Version = "dev"

	// Commit is the current git commit, full or short git SHA
	Commit = "unknown"

	// Revision build, count of commits
	Revision = 0

	// BuildTime is the time of start build app, RFC3339 UTC
	BuildTime = time.Unix(0, 0)

	// URL to repository (https)
	URL = "https://github.com/woozymasta/gamestatus"

	_revision  string
	_buildTime string
)

// BuildInfo exposes the build metadata over the API.
type BuildInfo struct {
	// betteralign:ignore

	// Project name
	Name string `json:"name" example:"gamestatus"`

	// Version of application (git tag) semver/tag, e.g. v1.2.3
	Version string `json:"version" example:"v1.2.3"`

	// Current git commit, full or short git SHA
	Commit string `json:"commit" example:"da15c174cd2ada1ad247906536c101e8f6799def"`

	// Current git commit short SHA
	CommitShort string `json:"commit_short,omitempty" example:"da15c17"`

	// Revision build, count of commits
	Revision int `json:"revision,omitempty" example:"1337"`

	// Time of start build app, RFC3339 UTC
	BuildTime time.Time `json:"build_time,omitzero" example:"1970-01-01T00:00:00Z"`

	// URL to repository (https)
	URL string `json:"url,omitempty" example:"https://github.com/woozymasta/gamestatus"`

	// License
	License string `json:"license,omitempty" example:"AGPL-3.0"`

	// Go toolchain the binary was built with
	GoVersion string `json:"go_version,omitempty" example:"go1.25.5"`
}

func init() {
	if n, err := strconv.Atoi(_revision); err == nil {
		Revision = n
	}

	if _buildTime != "" {
		if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
			BuildTime = t.UTC()
		}
	}
}

// Print writes the build information to the standard output.
func Print() {
	Fprint(os.Stdout)
}

// Fprint writes the build information to w, one aligned key per line.
func Fprint(w io.Writer) {
	info := Info()
	rows := [][2]string{
		{"name", info.Name},
		{"url", info.URL},
		{"file", os.Args[0]},
		{"version", info.Version},
		{"commit", info.Commit},
		{"revision", strconv.Itoa(info.Revision)},
		{"built", info.BuildTime.Format(time.RFC3339)},
		{"go", info.GoVersion},
		{"license", info.License},
	}

	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%-9s %s\n", row[0]+":", row[1])
	}
}

// Info returns the full build metadata.
func Info() BuildInfo {
	return BuildInfo{
		Name:        Name,
		Version:     Version,
		Commit:      Commit,
		CommitShort: CommitShort(),
		Revision:    Revision,
		BuildTime:   BuildTime,
		URL:         URL,
		License:     License,
		GoVersion:   runtime.Version(),
	}
}

// Ver returns the versioning subset served by /api/version.
func Ver() BuildInfo {
	return BuildInfo{
		Name:        Name,
		Version:     Version,
		Commit:      Commit,
		CommitShort: CommitShort(),
		Revision:    Revision,
	}
}

// UserAgent is sent with outgoing HTTP requests.
func UserAgent() string {
	return Name + "/" + Version + " (+" + URL + ")"
}

// CommitShort returns the first 7 characters of the git commit hash.
func CommitShort() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}

	return Commit
}
