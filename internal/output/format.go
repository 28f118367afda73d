package output

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ResolveFormat turns "auto" (or empty) into text on a terminal and ndjson
// everywhere else
func ResolveFormat(format string, w io.Writer) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		return "text"
	case "ndjson", "json":
		return "ndjson"
	}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return "text"
	}
	return "ndjson"
}
