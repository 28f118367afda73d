package cli

import "github.com/badalhalder99/vital/internal/store"

// validateFlags centralizes common flag combinations to keep behavior consistent.
func validateFlags(globals *Globals) error {
	if globals == nil {
		return nil
	}
	// quiet drops the guest lines, which leaves nothing readable in text mode
	if globals.Format == "text" && globals.Quiet {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--quiet is only supported with ndjson output", "switch to --format ndjson or drop --quiet")
	}
	if globals.Quiet && globals.Verbose {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--quiet cannot be combined with --verbose", "drop one of the two")
	}
	if globals.Store == store.BackendRedis && globals.cfg().Store.RedisAddr == "" {
		return outputErrorCommon(globals, "INVALID_FLAGS", "the redis backend needs store.redis_addr", "set VITAL_REDIS_ADDR or store.redis_addr in vital.yaml")
	}
	return nil
}
