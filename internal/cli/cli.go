package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/badalhalder99/vital/internal/config"
	"github.com/badalhalder99/vital/internal/fingerprint"
	"github.com/badalhalder99/vital/internal/mirror"
	"github.com/badalhalder99/vital/internal/output"
	"github.com/badalhalder99/vital/internal/session"
	"github.com/badalhalder99/vital/internal/store"
)

// Version and Commit are set at build time via ldflags
var (
	Version = "dev"
	Commit  = "none"
)

// CLI is the root command structure for kong
type CLI struct {
	Format    string `short:"f" default:"${config_format}" enum:"auto,text,ndjson" help:"Output format: auto, text or ndjson"`
	Level     string `short:"l" default:"${config_level}" enum:"debug,info,warn,error" help:"Log level for diagnostics on stderr"`
	Quiet     bool   `short:"q" help:"Only emit visit boundary events and errors (ndjson only)"`
	Verbose   bool   `short:"v" help:"Debug logging and visit_debug events"`
	Store     string `default:"${config_store}" enum:"memory,file,badger,redis" help:"Guest store backend (VITAL_STORE_BACKEND)"`
	StorePath string `default:"${config_store_path}" help:"File or directory for the file and badger backends"`
	Tenant    string `default:"${config_tenant}" help:"Tenant id sent with mirror writes"`
	Mirror    string `default:"${config_mirror}" help:"Collector base URL for guest visit mirroring, empty disables (VITAL_MIRROR_ENDPOINT)"`

	Fingerprint FingerprintCmd `cmd:"" help:"Print the device fingerprint and its hash"`
	Visit       VisitCmd       `cmd:"" help:"Record a page visit"`
	Click       ClickCmd       `cmd:"" help:"Record a click"`
	Move        MoveCmd        `cmd:"" help:"Record a pointer move"`
	Scroll      ScrollCmd      `cmd:"" help:"Record a scroll"`
	Show        ShowCmd        `cmd:"" help:"Show the guest identity and closed visits"`
	Replay      ReplayCmd      `cmd:"" help:"Replay an NDJSON event file through one tracker"`
	Reset       ResetCmd       `cmd:"" help:"Delete all stored guest data"`
	Serve       ServeCmd       `cmd:"" help:"Run the guest visit collector"`
	Config      ConfigCmd      `cmd:"" help:"Show or generate configuration"`
	Schema      SchemaCmd      `cmd:"" help:"Print JSON Schemas for ndjson output"`
	Version     VersionCmd     `cmd:"" help:"Print version information"`
}

// KongVars exposes config values as flag defaults
func KongVars(cfg *config.Config) kong.Vars {
	return kong.Vars{
		"config_format":     cfg.Format,
		"config_level":      cfg.Level,
		"config_store":      cfg.Store.Backend,
		"config_store_path": cfg.Store.Path,
		"config_tenant":     cfg.TenantID,
		"config_mirror":     cfg.Mirror.Endpoint,
	}
}

// Globals holds resolved global flags shared by every command
type Globals struct {
	Format    string
	Level     string
	Quiet     bool
	Verbose   bool
	Store     string
	StorePath string
	Tenant    string
	Mirror    string
	Stdout    io.Writer
	Stderr    io.Writer
	Config    *config.Config

	// clock overrides the wall clock in tests
	clock clock.Clock
}

// NewGlobalsWithConfig merges parsed flags with config fallbacks
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Globals{
		Format:    output.ResolveFormat(c.Format, os.Stdout),
		Level:     c.Level,
		Quiet:     c.Quiet || cfg.Quiet,
		Verbose:   c.Verbose || cfg.Verbose,
		Store:     c.Store,
		StorePath: c.StorePath,
		Tenant:    c.Tenant,
		Mirror:    c.Mirror,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Config:    cfg,
	}
	if g.Level == "" {
		g.Level = cfg.Level
	}
	if g.Store == "" {
		g.Store = cfg.Store.Backend
	}
	return g
}

func (g *Globals) clk() clock.Clock {
	if g.clock != nil {
		return g.clock
	}
	return clock.New()
}

func (g *Globals) cfg() *config.Config {
	if g.Config == nil {
		g.Config = config.Default()
	}
	return g.Config
}

// storeOptions fills in backend-specific default paths under ~/.vital
func (g *Globals) storeOptions() (store.Options, error) {
	cfg := g.cfg()
	opts := store.Options{
		Backend:   g.Store,
		Path:      g.StorePath,
		RedisAddr: cfg.Store.RedisAddr,
		RedisDB:   cfg.Store.RedisDB,
		Prefix:    cfg.Store.Prefix,
	}
	if opts.Backend == "" {
		opts.Backend = cfg.Store.Backend
	}
	if opts.Path != "" {
		return opts, nil
	}
	switch opts.Backend {
	case "", store.BackendFile:
		p, err := store.DefaultFilePath()
		if err != nil {
			return opts, err
		}
		opts.Path = p
	case store.BackendBadger:
		p, err := store.DefaultFilePath()
		if err != nil {
			return opts, err
		}
		opts.Path = filepath.Join(filepath.Dir(p), "badger")
	}
	return opts, nil
}

// trackerEnv is everything a tracker-backed command needs to release
type trackerEnv struct {
	tracker *session.Tracker
	store   store.Store
	mirror  mirror.Mirror
	logger  *zap.Logger
}

// Close waits for mirror writes, then closes the store
func (e *trackerEnv) Close() {
	if err := e.mirror.Close(); err != nil {
		e.logger.Warn("failed to close mirror", zap.Error(err))
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close guest store", zap.Error(err))
	}
	_ = e.logger.Sync()
}

// openTracker builds a tracker for one page load of page/url
func openTracker(globals *Globals, st store.Store, clk clock.Clock, page, url string) (*trackerEnv, error) {
	logger := newLogger(globals)
	cfg := globals.cfg()

	if st == nil {
		opts, err := globals.storeOptions()
		if err != nil {
			return nil, outputErrorCommon(globals, "STORE_PATH_FAILED", fmt.Sprintf("cannot resolve store path: %s", err), "pass --store-path")
		}
		st, err = store.Open(opts)
		if err != nil {
			return nil, outputErrorCommon(globals, "STORE_OPEN_FAILED", err.Error(), "check --store and --store-path")
		}
		logger.Debug("guest store opened", zap.String("backend", opts.Backend), zap.String("path", opts.Path))
	}

	var m mirror.Mirror = mirror.Nop{}
	if globals.Mirror != "" {
		m = mirror.New(globals.Mirror,
			mirror.WithTimeout(cfg.Mirror.Timeout),
			mirror.WithLogger(logger))
	}

	tenant := globals.Tenant
	if tenant == "" {
		tenant = cfg.TenantID
	}

	t := session.NewTracker(st, fingerprint.StaticInspector{Env: cfg.Device},
		session.WithClock(clk),
		session.WithMirror(m),
		session.WithLogger(logger),
		session.WithTenant(tenant),
		session.WithPage(page, url),
		session.WithThresholds(session.Thresholds{
			InactivityTimeout: cfg.Tracker.InactivityTimeout,
			TransitionGuard:   cfg.Tracker.TransitionGuard,
			PageVisitDebounce: cfg.Tracker.PageVisitDebounce,
			MoveSampleRate:    cfg.Tracker.MoveSampleRate,
			MaxLogEntries:     cfg.Tracker.MaxLogEntries,
		}),
	)
	return &trackerEnv{tracker: t, store: st, mirror: m, logger: logger}, nil
}
