package cli

import (
	"fmt"
	"runtime"

	"github.com/badalhalder99/vital/internal/output"
)

// VersionCmd prints build information
type VersionCmd struct{}

// VersionOutput represents the NDJSON output for version info
type VersionOutput struct {
	Type          string `json:"type"` // "version"
	SchemaVersion int    `json:"schemaVersion"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	GoVersion     string `json:"go_version"`
	GoInstall     string `json:"go_install"`
}

const goInstallCmd = "go install github.com/badalhalder99/vital/cmd/vital@latest"

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(VersionOutput{
			Type:          "version",
			SchemaVersion: 1,
			Version:       Version,
			Commit:        Commit,
			GoVersion:     runtime.Version(),
			GoInstall:     goInstallCmd,
		})
	}
	fmt.Fprintf(globals.Stdout, "vital %s (%s, %s)\n", Version, Commit, runtime.Version())
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "To upgrade:")
	fmt.Fprintf(globals.Stdout, "  %s\n", goInstallCmd)
	return nil
}
