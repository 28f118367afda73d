package cli

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// SchemaCmd outputs JSON Schema for vital output types
type SchemaCmd struct {
	Type []string `short:"t" help:"Output types to include (guest,visit_start,visit_end,visit,no_guest,fingerprint,error). Default: all"`
	List bool     `help:"List the output types instead of printing schemas"`
}

var schemaTypes = []string{"guest", "visit_start", "visit_end", "visit", "no_guest", "fingerprint", "error"}

// Run executes the schema command
func (c *SchemaCmd) Run(globals *Globals) error {
	if c.List {
		c.outputTextHelp(globals)
		return nil
	}

	schemas := map[string]interface{}{
		"guest":       guestSchema(),
		"visit_start": visitStartSchema(),
		"visit_end":   visitEndSchema(),
		"visit":       visitSchema(),
		"no_guest":    noGuestSchema(),
		"fingerprint": fingerprintSchema(),
		"error":       errorSchema(),
	}

	typesToOutput := c.Type
	if len(typesToOutput) == 0 {
		typesToOutput = schemaTypes
	}

	output := map[string]interface{}{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "vital Output Schemas",
		"description": "JSON Schema definitions for all vital NDJSON output types",
		"definitions": map[string]interface{}{},
	}

	defs := output["definitions"].(map[string]interface{})
	for _, t := range typesToOutput {
		t = strings.ToLower(strings.TrimSpace(t))
		if schema, ok := schemas[t]; ok {
			defs[t] = schema
		}
	}

	encoder := json.NewEncoder(globals.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func constProp(value string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "const": value}
}

func timeProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "format": "date-time", "description": description}
}

func sessionRecordProps() map[string]interface{} {
	return map[string]interface{}{
		"visitNumber":      prop("integer", "1-based visit number"),
		"startTime":        timeProp("When the visit opened"),
		"endTime":          timeProp("When the visit closed"),
		"interactionCount": prop("integer", "Clicks, moves and scrolls during the visit"),
		"sessionData": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"clickCount":   prop("integer", "Clicks during the visit"),
				"moveCount":    prop("integer", "Pointer moves during the visit (all, not just sampled)"),
				"scrollCount":  prop("integer", "Scrolls during the visit"),
				"interactions": prop("array", "Sampled interaction log, oldest first"),
				"pages":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				"duration":     prop("integer", "Visit length in milliseconds"),
			},
		},
	}
}

func guestSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Guest",
		"description": "Guest identity as seen after one tracker event",
		"properties": map[string]interface{}{
			"type":                   constProp("guest"),
			"schemaVersion":          prop("integer", "Output schema version"),
			"guestId":                prop("string", "Stable guest id, guest_<hash>_<ulid>"),
			"fingerprint":            prop("object", "Fingerprint snapshot taken when the identity was created"),
			"firstVisit":             timeProp("Creation time of the identity"),
			"visitCount":             prop("integer", "Number of visits including the open one"),
			"lastInteractionTime":    timeProp("Time of the last interaction or visit start"),
			"currentSessionStart":    timeProp("Start of the open visit"),
			"totalTimeSpent":         prop("integer", "Sum of closed visit durations in milliseconds"),
			"returnVisits":           map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "object", "properties": sessionRecordProps()}},
			"isReturning":            prop("boolean", "True when visitCount > 1"),
			"currentSessionDuration": prop("integer", "Milliseconds since the open visit started"),
			"sessionId":              prop("string", "Id of the page instance (changes on reset)"),
			"sessionStats":           prop("object", "Live counters of the open visit"),
			"decision": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"created", "page_visit", "inactivity", "continued", "guard_suppressed", "read_only"},
				"description": "What the transition guard did with the event",
			},
		},
		"required": []string{"type", "guestId", "visitCount", "returnVisits", "decision"},
	}
}

func visitStartSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Visit Start",
		"description": "Emitted before the guest line when an event opened a visit",
		"properties": map[string]interface{}{
			"type":          constProp("visit_start"),
			"schemaVersion": prop("integer", "Output schema version"),
			"alert": map[string]interface{}{
				"type":        "string",
				"const":       "RETURNING_GUEST",
				"description": "Present from the second visit on",
			},
			"guestId": prop("string", "Guest id"),
			"visit":   prop("integer", "Number of the visit that opened"),
			"reason": map[string]interface{}{
				"type": "string",
				"enum": []string{"created", "page_visit", "inactivity"},
			},
			"page":      prop("string", "Page the visit opened on"),
			"timestamp": timeProp("Visit start time"),
		},
		"required": []string{"type", "guestId", "visit", "reason", "timestamp"},
	}
}

func visitEndSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Visit End",
		"description": "Emitted when a transition closes the previous visit",
		"properties": map[string]interface{}{
			"type":          constProp("visit_end"),
			"schemaVersion": prop("integer", "Output schema version"),
			"guestId":       prop("string", "Guest id"),
			"visit":         prop("integer", "Number of the visit that closed"),
			"summary": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"clicks":       prop("integer", "Clicks"),
					"moves":        prop("integer", "Pointer moves"),
					"scrolls":      prop("integer", "Scrolls"),
					"interactions": prop("integer", "Total interactions"),
					"pages":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"duration_ms":  prop("integer", "Visit length in milliseconds"),
				},
			},
		},
		"required": []string{"type", "guestId", "visit", "summary"},
	}
}

func visitSchema() map[string]interface{} {
	props := sessionRecordProps()
	props["type"] = constProp("visit")
	props["schemaVersion"] = prop("integer", "Output schema version")
	props["guestId"] = prop("string", "Guest id")
	return map[string]interface{}{
		"type":        "object",
		"title":       "Closed Visit",
		"description": "One entry of the guest's returnVisits, as listed by vital show",
		"properties":  props,
		"required":    []string{"type", "guestId", "visitNumber", "startTime", "endTime"},
	}
}

func noGuestSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "No Guest",
		"description": "Written by vital show when no guest has been recorded on this device",
		"properties": map[string]interface{}{
			"type":          constProp("no_guest"),
			"schemaVersion": prop("integer", "Output schema version"),
			"sessionId":     prop("string", "Id of the page instance"),
		},
		"required": []string{"type"},
	}
}

func fingerprintSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Device Fingerprint",
		"description": "Fingerprint fields, their hash and the parsed user agent",
		"properties": map[string]interface{}{
			"type":          constProp("fingerprint"),
			"schemaVersion": prop("integer", "Output schema version"),
			"screenWidth":   prop("integer", "Screen width in pixels"),
			"screenHeight":  prop("integer", "Screen height in pixels"),
			"colorDepth":    prop("integer", "Color depth in bits"),
			"timezone":      prop("string", "IANA timezone"),
			"language":      prop("string", "Primary language subtag"),
			"platform":      prop("string", "Platform string"),
			"userAgent":     prop("string", "User agent with version numbers removed"),
			"hash":          prop("string", "Base-36 hash of the canonical fingerprint JSON"),
			"device":        prop("object", "Browser, OS and device type"),
		},
		"required": []string{"type", "hash"},
	}
}

func errorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Error",
		"description": "Error message from vital",
		"properties": map[string]interface{}{
			"type": constProp("error"),
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Error code (e.g., STORE_OPEN_FAILED, INVALID_WHERE)",
				"enum": []string{
					"INVALID_FLAGS",
					"INVALID_PATTERN",
					"INVALID_EXCLUDE_PATTERN",
					"INVALID_WHERE",
					"INVALID_REPLAY",
					"REPLAY_OPEN_FAILED",
					"STORE_PATH_FAILED",
					"STORE_OPEN_FAILED",
					"CONFIRMATION_REQUIRED",
					"SERVE_FAILED",
				},
			},
			"message": prop("string", "Human-readable error description"),
			"hint":    prop("string", "Suggested fix"),
		},
		"required": []string{"type", "code", "message"},
	}
}

func (c *SchemaCmd) outputTextHelp(globals *Globals) {
	fmt.Fprintln(globals.Stdout, "vital output types:")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "  guest       - Guest identity after an event")
	fmt.Fprintln(globals.Stdout, "  visit_start - A visit opened")
	fmt.Fprintln(globals.Stdout, "  visit_end   - The previous visit closed")
	fmt.Fprintln(globals.Stdout, "  visit       - A closed visit listed by show")
	fmt.Fprintln(globals.Stdout, "  no_guest    - show found no stored guest")
	fmt.Fprintln(globals.Stdout, "  fingerprint - Device fingerprint")
	fmt.Fprintln(globals.Stdout, "  error       - Error from vital")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "Use --type to filter: vital schema --type guest,error")
}
