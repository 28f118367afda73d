package cli

import (
	"fmt"

	"github.com/badalhalder99/vital/internal/config"
	"github.com/badalhalder99/vital/internal/output"
)

// ConfigCmd groups configuration subcommands
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show the effective configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show which config file was loaded"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a sample vital.yaml"`
}

// ConfigShowOutput is the ndjson shape of `vital config show`
type ConfigShowOutput struct {
	Type          string                 `json:"type"` // "config"
	SchemaVersion int                    `json:"schemaVersion"`
	ConfigFile    string                 `json:"configFile,omitempty"`
	Format        string                 `json:"format"`
	Level         string                 `json:"level"`
	TenantID      string                 `json:"tenantId,omitempty"`
	Store         map[string]interface{} `json:"store"`
	Mirror        map[string]interface{} `json:"mirror"`
	Tracker       map[string]interface{} `json:"tracker"`
	Device        map[string]interface{} `json:"device"`
	Collector     map[string]interface{} `json:"collector"`
}

// ConfigShowCmd prints the effective configuration
type ConfigShowCmd struct{}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.cfg()
	file := config.ConfigFile()

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(ConfigShowOutput{
			Type:          "config",
			SchemaVersion: 1,
			ConfigFile:    file,
			Format:        globals.Format,
			Level:         globals.Level,
			TenantID:      cfg.TenantID,
			Store: map[string]interface{}{
				"backend":    globals.Store,
				"path":       globals.StorePath,
				"redis_addr": cfg.Store.RedisAddr,
				"redis_db":   cfg.Store.RedisDB,
				"prefix":     cfg.Store.Prefix,
			},
			Mirror: map[string]interface{}{
				"endpoint":   globals.Mirror,
				"timeout_ms": cfg.Mirror.Timeout.Milliseconds(),
			},
			Tracker: map[string]interface{}{
				"inactivity_timeout_ms":  cfg.Tracker.InactivityTimeout.Milliseconds(),
				"transition_guard_ms":    cfg.Tracker.TransitionGuard.Milliseconds(),
				"page_visit_debounce_ms": cfg.Tracker.PageVisitDebounce.Milliseconds(),
				"move_sample_rate":       cfg.Tracker.MoveSampleRate,
				"max_log_entries":        cfg.Tracker.MaxLogEntries,
			},
			Device: map[string]interface{}{
				"screen_width":  cfg.Device.ScreenWidth,
				"screen_height": cfg.Device.ScreenHeight,
				"color_depth":   cfg.Device.ColorDepth,
				"timezone":      cfg.Device.Timezone,
				"language":      cfg.Device.Language,
				"platform":      cfg.Device.Platform,
				"user_agent":    cfg.Device.UserAgent,
			},
			Collector: map[string]interface{}{
				"addr": cfg.Collector.Addr,
			},
		})
	}

	out := globals.Stdout
	fmt.Fprintln(out, "Current Configuration:")
	if file != "" {
		fmt.Fprintf(out, "  (loaded from %s)\n", file)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  format:    %s\n", globals.Format)
	fmt.Fprintf(out, "  level:     %s\n", globals.Level)
	fmt.Fprintf(out, "  tenant_id: %s\n", cfg.TenantID)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Store:")
	fmt.Fprintf(out, "  backend:    %s\n", globals.Store)
	fmt.Fprintf(out, "  path:       %s\n", globals.StorePath)
	fmt.Fprintf(out, "  redis_addr: %s\n", cfg.Store.RedisAddr)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Mirror:")
	fmt.Fprintf(out, "  endpoint: %s\n", globals.Mirror)
	fmt.Fprintf(out, "  timeout:  %s\n", cfg.Mirror.Timeout)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Tracker:")
	fmt.Fprintf(out, "  inactivity_timeout:  %s\n", cfg.Tracker.InactivityTimeout)
	fmt.Fprintf(out, "  transition_guard:    %s\n", cfg.Tracker.TransitionGuard)
	fmt.Fprintf(out, "  page_visit_debounce: %s\n", cfg.Tracker.PageVisitDebounce)
	fmt.Fprintf(out, "  move_sample_rate:    %d\n", cfg.Tracker.MoveSampleRate)
	fmt.Fprintf(out, "  max_log_entries:     %d\n", cfg.Tracker.MaxLogEntries)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Device:")
	fmt.Fprintf(out, "  screen:     %dx%d @ %d-bit\n", cfg.Device.ScreenWidth, cfg.Device.ScreenHeight, cfg.Device.ColorDepth)
	fmt.Fprintf(out, "  timezone:   %s\n", cfg.Device.Timezone)
	fmt.Fprintf(out, "  language:   %s\n", cfg.Device.Language)
	fmt.Fprintf(out, "  user_agent: %s\n", cfg.Device.UserAgent)
	return nil
}

// ConfigPathCmd prints the loaded config file path
type ConfigPathCmd struct{}

// ConfigPathOutput is the ndjson shape of `vital config path`
type ConfigPathOutput struct {
	Type          string `json:"type"` // "config_path"
	SchemaVersion int    `json:"schemaVersion"`
	Path          string `json:"path"`
	Found         bool   `json:"found"`
}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Write(ConfigPathOutput{
			Type:          "config_path",
			SchemaVersion: 1,
			Path:          path,
			Found:         path != "",
		})
	}
	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found.")
		fmt.Fprintln(globals.Stdout, "Searched: /etc/vital/vital.yaml, $XDG_CONFIG_HOME/vital/vital.yaml, ~/vital.yaml, ./vital.yaml, .vitalrc")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}

// ConfigGenerateCmd prints a sample configuration file
type ConfigGenerateCmd struct{}

const sampleConfig = `# vital configuration file
# Save as vital.yaml in ~/.config/vital/, your home directory or the
# working directory. Every key can be overridden with VITAL_<SECTION>_<KEY>,
# e.g. VITAL_STORE_BACKEND or VITAL_MIRROR_ENDPOINT. VITAL_REDIS_ADDR is
# accepted for store.redis_addr.

format: auto          # auto, text or ndjson
level: info           # debug, info, warn, error
tenant_id: ""         # sent with mirror writes, selects tenant_<id> in the collector

store:
  backend: file       # memory, file, badger, redis
  path: ""            # defaults to ~/.vital/store.json (file) or ~/.vital/badger
  redis_addr: ""      # host:port for the redis backend
  redis_db: 0
  prefix: "vital:"

mirror:
  endpoint: ""        # e.g. http://localhost:5000, empty disables mirroring
  timeout: 5s

tracker:
  inactivity_timeout: 5m
  transition_guard: 2s
  page_visit_debounce: 2s
  move_sample_rate: 10
  max_log_entries: 1000

device:
  screen_width: 1920
  screen_height: 1080
  color_depth: 24
  viewport_width: 1920
  viewport_height: 969
  timezone: UTC
  language: en-US
  platform: Linux x86_64
  user_agent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

collector:
  addr: ":5000"
`

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	fmt.Fprint(globals.Stdout, sampleConfig)
	return nil
}
