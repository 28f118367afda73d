package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/badalhalder99/vital/internal/output"
)

// CommandError is a failure that has already been reported to the user.
// Code is the machine-readable error code also used in ndjson error lines.
type CommandError struct {
	Code    string
	Message string
	Hint    string
}

func (e *CommandError) Error() string { return e.Message }

// usage errors exit with 2, everything else with 1
var usageCodes = map[string]bool{
	"INVALID_FLAGS":           true,
	"INVALID_PATTERN":         true,
	"INVALID_EXCLUDE_PATTERN": true,
	"INVALID_WHERE":           true,
	"INVALID_REPLAY":          true,
	"CONFIRMATION_REQUIRED":   true,
}

// ExitCode maps a command error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *CommandError
	if errors.As(err, &ce) && usageCodes[ce.Code] {
		return 2
	}
	return 1
}

func (e *CommandError) writeText(w io.Writer) {
	fmt.Fprintf(w, "Error [%s]: %s\n", e.Code, e.Message)
	if hint := strings.TrimSpace(e.Hint); hint != "" {
		fmt.Fprintf(w, "  hint: %s\n", hint)
	}
}

// outputErrorCommon reports a failure in the selected format and returns it
// as a *CommandError. ndjson mode writes an error line to stdout so the
// stream stays parseable; text mode writes to stderr.
func outputErrorCommon(globals *Globals, code, message string, hint ...string) error {
	e := &CommandError{Code: code, Message: message}
	if len(hint) > 0 {
		e.Hint = hint[0]
	}
	switch {
	case globals == nil:
	case globals.Format == "ndjson":
		_ = output.NewNDJSONWriter(globals.Stdout).WriteError(e.Code, e.Message, e.Hint)
	default:
		e.writeText(globals.Stderr)
	}
	return e
}
