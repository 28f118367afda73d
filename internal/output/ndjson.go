package output

import (
	"io"
	"sync"

	"github.com/goccy/go-json"

	"github.com/badalhalder99/vital/internal/domain"
)

// NDJSONWriter writes one JSON document per line
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONWriter creates a writer over w
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONWriter{enc: enc}
}

// Write encodes v as a single line
func (w *NDJSONWriter) Write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// ErrorOutput is the ndjson shape of a command failure
type ErrorOutput struct {
	Type          string `json:"type"` // "error"
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// WriteError writes an error line
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	out := ErrorOutput{Type: "error", SchemaVersion: 1, Code: code, Message: message}
	if len(hint) > 0 {
		out.Hint = hint[0]
	}
	return w.Write(out)
}

// FingerprintOutput is the ndjson shape of `vital fingerprint`
type FingerprintOutput struct {
	Type          string `json:"type"` // "fingerprint"
	SchemaVersion int    `json:"schemaVersion"`
	domain.DeviceFingerprint
	Hash   string            `json:"hash"`
	Device domain.DeviceInfo `json:"device"`
}

// WriteFingerprint writes a fingerprint line
func (w *NDJSONWriter) WriteFingerprint(fp domain.DeviceFingerprint, hash string, device domain.DeviceInfo) error {
	return w.Write(FingerprintOutput{
		Type:              "fingerprint",
		SchemaVersion:     1,
		DeviceFingerprint: fp,
		Hash:              hash,
		Device:            device,
	})
}

// WriteGuest writes the guest view, preceded by visit_end/visit_start lines
// when the event opened a visit
func (w *NDJSONWriter) WriteGuest(v *domain.GuestView) error {
	if v.Change != nil {
		if v.Change.EndVisit != nil {
			if err := w.Write(v.Change.EndVisit); err != nil {
				return err
			}
		}
		if v.Change.StartVisit != nil {
			if err := w.Write(v.Change.StartVisit); err != nil {
				return err
			}
		}
	}
	return w.Write(v)
}

// VisitOutput wraps a closed visit for `vital show`
type VisitOutput struct {
	Type          string `json:"type"` // "visit"
	SchemaVersion int    `json:"schemaVersion"`
	GuestID       string `json:"guestId"`
	domain.SessionRecord
}

// WriteVisits writes one line per closed visit
func (w *NDJSONWriter) WriteVisits(guestID string, recs []domain.SessionRecord) error {
	for _, r := range recs {
		if err := w.Write(VisitOutput{Type: "visit", SchemaVersion: 1, GuestID: guestID, SessionRecord: r}); err != nil {
			return err
		}
	}
	return nil
}
