package cli

import (
	"context"
	"fmt"
	"regexp"

	"github.com/badalhalder99/vital/internal/domain"
	"github.com/badalhalder99/vital/internal/filter"
	"github.com/badalhalder99/vital/internal/fingerprint"
	"github.com/badalhalder99/vital/internal/output"
)

// FingerprintCmd prints the configured device's fingerprint
type FingerprintCmd struct{}

// Run executes the fingerprint command
func (c *FingerprintCmd) Run(globals *Globals) error {
	env := globals.cfg().Device
	fp, hash := fingerprint.Of(env)
	device := fingerprint.Describe(env)
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).WriteFingerprint(fp, hash, device)
	}
	return output.NewTextWriter(globals.Stdout).WriteFingerprint(fp, hash, device)
}

// VisitCmd records a page load
type VisitCmd struct {
	Page string `short:"p" default:"/" help:"Page path"`
	URL  string `short:"u" help:"Full page URL"`
}

// Run executes the visit command
func (c *VisitCmd) Run(globals *Globals) error {
	if err := validateFlags(globals); err != nil {
		return err
	}
	env, err := openTracker(globals, nil, globals.clk(), c.Page, c.URL)
	if err != nil {
		return err
	}
	defer env.Close()

	view, _ := env.tracker.RecordPageVisit(context.Background(), c.Page, c.URL)
	return writeGuest(globals, view)
}

// InteractionFlags are shared by click, move and scroll
type InteractionFlags struct {
	X         int    `short:"x" help:"Viewport x coordinate"`
	Y         int    `short:"y" help:"Viewport y coordinate"`
	Page      string `short:"p" default:"/" help:"Page the interaction happened on"`
	Element   string `short:"e" help:"Tag name of the clicked element"`
	ElementID string `help:"id attribute of the clicked element"`
	Class     string `help:"class attribute of the clicked element"`
	Text      string `help:"Text content of the clicked element"`
}

func (f InteractionFlags) interaction(kind domain.InteractionType) domain.Interaction {
	in := domain.Interaction{
		Type:     kind,
		Position: domain.Position{X: f.X, Y: f.Y},
		Page:     f.Page,
	}
	if f.Element != "" || f.ElementID != "" || f.Class != "" || f.Text != "" {
		in.Element = &domain.ElementInfo{Tag: f.Element, ID: f.ElementID, ClassName: f.Class, Text: f.Text}
	}
	return in
}

func runInteraction(globals *Globals, f InteractionFlags, kind domain.InteractionType) error {
	if err := validateFlags(globals); err != nil {
		return err
	}
	env, err := openTracker(globals, nil, globals.clk(), f.Page, "")
	if err != nil {
		return err
	}
	defer env.Close()

	view := env.tracker.RecordInteraction(context.Background(), f.interaction(kind))
	return writeGuest(globals, view)
}

// ClickCmd records a click
type ClickCmd struct {
	InteractionFlags `embed:""`
}

// Run executes the click command
func (c *ClickCmd) Run(globals *Globals) error {
	return runInteraction(globals, c.InteractionFlags, domain.InteractionClick)
}

// MoveCmd records a pointer move
type MoveCmd struct {
	InteractionFlags `embed:""`
}

// Run executes the move command
func (c *MoveCmd) Run(globals *Globals) error {
	return runInteraction(globals, c.InteractionFlags, domain.InteractionMove)
}

// ScrollCmd records a scroll
type ScrollCmd struct {
	InteractionFlags `embed:""`
}

// Run executes the scroll command
func (c *ScrollCmd) Run(globals *Globals) error {
	return runInteraction(globals, c.InteractionFlags, domain.InteractionScroll)
}

// ShowCmd prints the stored identity. It never creates a guest.
type ShowCmd struct {
	Pattern string   `short:"p" help:"Only list visits with a page matching this regex"`
	Exclude []string `short:"x" help:"Drop visits with a page matching this regex (repeatable)"`
	Where   []string `short:"w" help:"Field filter, e.g. clicks>=3 or page~/pricing (repeatable)"`
}

// Run executes the show command
func (c *ShowCmd) Run(globals *Globals) error {
	pipeline, err := c.pipeline(globals)
	if err != nil {
		return err
	}
	env, err := openTracker(globals, nil, globals.clk(), "", "")
	if err != nil {
		return err
	}
	defer env.Close()

	view, ok := env.tracker.Lookup(context.Background())
	if !ok {
		return writeNoGuest(globals, env.tracker.SessionID())
	}
	visits := pipeline.Apply(view.ReturnVisits)

	if globals.Format == "ndjson" {
		w := output.NewNDJSONWriter(globals.Stdout)
		if err := w.WriteGuest(view); err != nil {
			return err
		}
		return w.WriteVisits(view.GuestID, visits)
	}
	tw := output.NewTextWriter(globals.Stdout)
	if err := tw.WriteGuest(view); err != nil {
		return err
	}
	fmt.Fprintln(globals.Stdout)
	return tw.WriteVisits(visits)
}

// NoGuestOutput is the ndjson shape of show on a device with no guest yet
type NoGuestOutput struct {
	Type          string `json:"type"` // "no_guest"
	SchemaVersion int    `json:"schemaVersion"`
	SessionID     string `json:"sessionId"`
}

func writeNoGuest(globals *Globals, sessionID string) error {
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(NoGuestOutput{
			Type:          "no_guest",
			SchemaVersion: 1,
			SessionID:     sessionID,
		})
	}
	fmt.Fprintln(globals.Stdout, "No guest recorded yet. Run `vital visit` to create one.")
	return nil
}

func (c *ShowCmd) pipeline(globals *Globals) (*filter.Pipeline, error) {
	var pattern *regexp.Regexp
	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return nil, outputErrorCommon(globals, "INVALID_PATTERN", fmt.Sprintf("invalid page pattern: %s", err))
		}
		pattern = re
	}
	var excludes []*regexp.Regexp
	for _, x := range c.Exclude {
		re, err := regexp.Compile(x)
		if err != nil {
			return nil, outputErrorCommon(globals, "INVALID_EXCLUDE_PATTERN", fmt.Sprintf("invalid exclude pattern: %s", err))
		}
		excludes = append(excludes, re)
	}
	where, err := filter.NewWhereFilter(c.Where)
	if err != nil {
		return nil, outputErrorCommon(globals, "INVALID_WHERE", err.Error(), "use field op value, e.g. clicks>=3")
	}
	return filter.NewPipeline(pattern, excludes, where), nil
}

// ResetCmd deletes the stored guest id and every guest record
type ResetCmd struct {
	Yes bool `short:"y" help:"Do not ask for confirmation"`
}

// ResetOutput is the ndjson shape of a reset
type ResetOutput struct {
	Type          string `json:"type"` // "reset"
	SchemaVersion int    `json:"schemaVersion"`
	SessionID     string `json:"sessionId"`
}

// Run executes the reset command
func (c *ResetCmd) Run(globals *Globals) error {
	if !c.Yes {
		return outputErrorCommon(globals, "CONFIRMATION_REQUIRED", "reset deletes all guest data", "re-run with --yes")
	}
	env, err := openTracker(globals, nil, globals.clk(), "", "")
	if err != nil {
		return err
	}
	defer env.Close()

	env.tracker.Reset(context.Background())
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(ResetOutput{
			Type:          "reset",
			SchemaVersion: 1,
			SessionID:     env.tracker.SessionID(),
		})
	}
	fmt.Fprintln(globals.Stdout, "Guest data cleared.")
	return nil
}

// writeGuest emits a tracker view in the selected format. In quiet mode only
// visit boundary events are written.
func writeGuest(globals *Globals, v *domain.GuestView) error {
	if globals.Format == "ndjson" {
		w := output.NewNDJSONWriter(globals.Stdout)
		if globals.Quiet {
			if v.Change == nil {
				return nil
			}
			if v.Change.EndVisit != nil {
				if err := w.Write(v.Change.EndVisit); err != nil {
					return err
				}
			}
			return w.Write(v.Change.StartVisit)
		}
		return w.WriteGuest(v)
	}
	return output.NewTextWriter(globals.Stdout).WriteGuest(v)
}
