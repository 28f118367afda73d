package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/badalhalder99/vital/internal/domain"
)

// TextWriter renders human readable output
type TextWriter struct {
	w       io.Writer
	heading lipgloss.Style
	label   lipgloss.Style
	accent  lipgloss.Style
	dim     lipgloss.Style
}

// NewTextWriter creates a text writer. Colors are only emitted when w is a
// terminal.
func NewTextWriter(w io.Writer) *TextWriter {
	r := lipgloss.NewRenderer(w)
	return &TextWriter{
		w:       w,
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:   r.NewStyle().Foreground(lipgloss.Color("8")),
		accent:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		dim:     r.NewStyle().Faint(true),
	}
}

func (t *TextWriter) field(name string, value interface{}) {
	fmt.Fprintf(t.w, "  %s %v\n", t.label.Render(fmt.Sprintf("%-22s", name+":")), value)
}

// WriteFingerprint prints the fingerprint fields and device description
func (t *TextWriter) WriteFingerprint(fp domain.DeviceFingerprint, hash string, device domain.DeviceInfo) error {
	fmt.Fprintln(t.w, t.heading.Render("Device Fingerprint"))
	t.field("hash", t.accent.Render(hash))
	t.field("screen", fmt.Sprintf("%dx%d @ %d-bit", fp.ScreenWidth, fp.ScreenHeight, fp.ColorDepth))
	t.field("timezone", fp.Timezone)
	t.field("language", fp.Language)
	t.field("platform", fp.Platform)
	t.field("user agent", fp.UserAgent)
	t.field("browser", strings.TrimSpace(device.Browser+" "+device.BrowserVersion))
	t.field("os", strings.TrimSpace(device.OS+" "+device.OSVersion))
	t.field("device type", device.DeviceType)
	return nil
}

// WriteGuest prints the guest view and, when a visit just opened, a line
// announcing it
func (t *TextWriter) WriteGuest(v *domain.GuestView) error {
	if v.Change != nil {
		t.WriteVisitChange(v.Change)
	}
	status := "new"
	if v.IsReturning {
		status = "returning"
	}
	fmt.Fprintln(t.w, t.heading.Render("Guest "+v.GuestID))
	t.field("status", t.accent.Render(status))
	t.field("visit count", v.VisitCount)
	t.field("decision", v.Decision)
	t.field("first visit", v.FirstVisit.Format(time.RFC3339))
	t.field("last interaction", v.LastInteractionTime.Format(time.RFC3339))
	t.field("current visit", fmt.Sprintf("#%d, %s", v.Session.VisitNumber, formatMs(v.CurrentSessionDuration)))
	t.field("interactions", fmt.Sprintf("%d clicks, %d moves, %d scrolls", v.Session.ClickCount, v.Session.MoveCount, v.Session.ScrollCount))
	t.field("pages", strings.Join(v.Session.Pages, ", "))
	t.field("total time (closed)", formatMs(v.TotalTimeSpent))
	t.field("session id", t.dim.Render(v.SessionID))
	return nil
}

// WriteVisitChange prints visit boundary events
func (t *TextWriter) WriteVisitChange(c *domain.VisitChange) {
	if c.EndVisit != nil {
		fmt.Fprintf(t.w, "%s visit #%d closed after %s (%d interactions)\n",
			t.dim.Render("--"), c.EndVisit.Visit, formatMs(c.EndVisit.Summary.DurationMs), c.EndVisit.Summary.Interactions)
	}
	if c.StartVisit != nil {
		fmt.Fprintf(t.w, "%s visit #%d started (%s)\n",
			t.accent.Render("++"), c.StartVisit.Visit, c.StartVisit.Reason)
	}
}

// WriteVisits prints closed visits as a table
func (t *TextWriter) WriteVisits(recs []domain.SessionRecord) error {
	fmt.Fprintln(t.w, t.heading.Render(fmt.Sprintf("Return Visits (%d)", len(recs))))
	if len(recs) == 0 {
		fmt.Fprintln(t.w, t.dim.Render("  no closed visits"))
		return nil
	}

	table := tablewriter.NewWriter(t.w)
	table.Header("Visit", "Start", "Duration", "Clicks", "Moves", "Scrolls", "Pages")
	for _, r := range recs {
		if err := table.Append([]string{
			strconv.Itoa(r.VisitNumber),
			r.StartTime.Format(time.RFC3339),
			formatMs(r.Detail.DurationMs),
			strconv.Itoa(r.Detail.ClickCount),
			strconv.Itoa(r.Detail.MoveCount),
			strconv.Itoa(r.Detail.ScrollCount),
			strings.Join(r.Detail.Pages, " "),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func formatMs(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}
