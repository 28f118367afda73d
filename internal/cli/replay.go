package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"

	"github.com/badalhalder99/vital/internal/domain"
	"github.com/badalhalder99/vital/internal/output"
	"github.com/badalhalder99/vital/internal/store"
)

// ReplayCmd feeds recorded browser events through a single tracker on a
// simulated clock
type ReplayCmd struct {
	File    string `arg:"" help:"NDJSON event file ('-' for stdin)"`
	Persist bool   `help:"Use the configured guest store instead of a throwaway in-memory one"`
}

// ReplayEvent is one line of a replay file
type ReplayEvent struct {
	At      time.Time           `json:"at"`
	Type    string              `json:"type"` // page_visit, click, move, scroll, close, reset
	Page    string              `json:"page,omitempty"`
	URL     string              `json:"url,omitempty"`
	X       int                 `json:"x,omitempty"`
	Y       int                 `json:"y,omitempty"`
	Element *domain.ElementInfo `json:"element,omitempty"`
}

// ReplaySummary closes a replay run
type ReplaySummary struct {
	Type          string `json:"type"` // "replay_summary"
	SchemaVersion int    `json:"schemaVersion"`
	Events        int    `json:"events"`
	VisitsStarted int    `json:"visitsStarted"`
	Debounced     int    `json:"debounced"`
	GuardBlocked  int    `json:"guardBlocked"`
	GuestID       string `json:"guestId,omitempty"`
	VisitCount    int    `json:"visitCount"`
}

// ClosedVisitOutput is emitted for a close event
type ClosedVisitOutput struct {
	Type          string `json:"type"` // "visit_closed"
	SchemaVersion int    `json:"schemaVersion"`
	domain.SessionRecord
}

// Run executes the replay command
func (c *ReplayCmd) Run(globals *Globals) error {
	if err := validateFlags(globals); err != nil {
		return err
	}

	var r io.Reader = os.Stdin
	if c.File != "-" {
		f, err := os.Open(c.File)
		if err != nil {
			return outputErrorCommon(globals, "REPLAY_OPEN_FAILED", fmt.Sprintf("cannot open replay file: %s", err))
		}
		defer f.Close()
		r = f
	}

	events, err := readReplayEvents(r)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_REPLAY", err.Error(), "each line must be {\"at\":RFC3339,\"type\":...}")
	}
	if len(events) == 0 {
		return outputErrorCommon(globals, "INVALID_REPLAY", "replay file has no events")
	}

	mock := clock.NewMock()
	mock.Set(events[0].At)

	var st store.Store
	if !c.Persist {
		st = store.NewMemoryStore()
	}
	env, err := openTracker(globals, st, mock, events[0].Page, events[0].URL)
	if err != nil {
		return err
	}
	defer env.Close()

	tr := env.tracker
	dbg := newAgentLogger(globals, env.logger, tr.SessionID(), tr.CurrentVisit)
	w := output.NewNDJSONWriter(globals.Stdout)
	var tw *output.TextWriter
	if globals.Format != "ndjson" {
		tw = output.NewTextWriter(globals.Stdout)
	}

	ctx := context.Background()
	summary := ReplaySummary{Type: "replay_summary", SchemaVersion: 1}
	var last *domain.GuestView

	for i, ev := range events {
		if !ev.At.IsZero() {
			mock.Set(ev.At)
		}
		prevIdle := int64(0)
		if last != nil {
			prevIdle = mock.Now().Sub(last.LastInteractionTime).Milliseconds()
		}

		var view *domain.GuestView
		event := ev.Type
		switch ev.Type {
		case "page_visit":
			var accepted bool
			view, accepted = tr.RecordPageVisit(ctx, ev.Page, ev.URL)
			if !accepted {
				summary.Debounced++
				event = "page_visit_debounced"
			}
		case "click", "move", "scroll":
			kind, _ := domain.ParseInteractionType(ev.Type)
			view = tr.RecordInteraction(ctx, domain.Interaction{
				Type:     kind,
				Position: domain.Position{X: ev.X, Y: ev.Y},
				Element:  ev.Element,
				Page:     ev.Page,
			})
		case "close":
			rec := tr.CloseSession()
			dbg.Debug("event %d: close", i+1)
			if err := c.writeClosed(globals, w, tw, rec); err != nil {
				return err
			}
			summary.Events++
			continue
		case "reset":
			tr.Reset(ctx)
			last = nil
			dbg.Debug("event %d: reset", i+1)
			summary.Events++
			continue
		default:
			return outputErrorCommon(globals, "INVALID_REPLAY", fmt.Sprintf("line %d: unknown event type %q", i+1, ev.Type))
		}

		summary.Events++
		if view.Decision.StartsVisit() {
			summary.VisitsStarted++
		}
		if view.Decision == domain.DecisionGuardSuppressed {
			summary.GuardBlocked++
		}
		dbg.Debug("event %d: %s -> %s", i+1, event, view.Decision)

		if globals.Verbose && tw == nil {
			if err := w.Write(domain.VisitDebug{
				Type:          "visit_debug",
				SchemaVersion: 1,
				GuestID:       view.GuestID,
				Visit:         view.VisitCount,
				Event:         event,
				Reason:        view.Decision,
				IdleMs:        prevIdle,
			}); err != nil {
				return err
			}
		}
		if tw != nil {
			if view.Change != nil {
				tw.WriteVisitChange(view.Change)
			}
		} else if err := writeGuest(globals, view); err != nil {
			return err
		}
		last = view
	}

	if last != nil {
		summary.GuestID = last.GuestID
		summary.VisitCount = last.VisitCount
	}
	if tw != nil {
		fmt.Fprintf(globals.Stdout, "Replayed %d events: %d visits started, %d page visits debounced, %d transitions held by the guard\n",
			summary.Events, summary.VisitsStarted, summary.Debounced, summary.GuardBlocked)
		if last != nil {
			return tw.WriteGuest(last)
		}
		return nil
	}
	return w.Write(summary)
}

func (c *ReplayCmd) writeClosed(globals *Globals, w *output.NDJSONWriter, tw *output.TextWriter, rec domain.SessionRecord) error {
	if tw != nil {
		fmt.Fprintf(globals.Stdout, "visit #%d closed after %d interactions\n", rec.VisitNumber, rec.InteractionCount)
		return nil
	}
	if globals.Quiet {
		return nil
	}
	return w.Write(ClosedVisitOutput{Type: "visit_closed", SchemaVersion: 1, SessionRecord: rec})
}

// readReplayEvents parses NDJSON events, skipping blank lines and # comments.
// Timestamps must not go backwards.
func readReplayEvents(r io.Reader) ([]ReplayEvent, error) {
	var events []ReplayEvent
	var prev time.Time

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var ev ReplayEvent
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ev.Type = strings.ToLower(strings.TrimSpace(ev.Type))
		if ev.Type == "" {
			return nil, fmt.Errorf("line %d: missing event type", line)
		}
		if !ev.At.IsZero() {
			if ev.At.Before(prev) {
				return nil, fmt.Errorf("line %d: timestamp %s is before the previous event", line, ev.At.Format(time.RFC3339))
			}
			prev = ev.At
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(events) > 0 && events[0].At.IsZero() {
		return nil, fmt.Errorf("the first event needs an \"at\" timestamp")
	}
	return events, nil
}
