package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/badalhalder99/vital/internal/collector"
	"github.com/badalhalder99/vital/internal/store"
)

// ServeCmd runs the HTTP collector that receives guest visit mirror writes
type ServeCmd struct {
	Addr string `short:"a" help:"Listen address (default: collector.addr from config)"`
}

// Run executes the serve command
func (c *ServeCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logger := newLogger(globals)
	defer logger.Sync()

	opts, err := globals.storeOptions()
	if err != nil {
		return outputErrorCommon(globals, "STORE_PATH_FAILED", err.Error(), "pass --store-path")
	}
	st, err := store.Open(opts)
	if err != nil {
		return outputErrorCommon(globals, "STORE_OPEN_FAILED", err.Error(), "check --store and --store-path")
	}
	defer st.Close()

	addr := c.Addr
	if addr == "" {
		addr = globals.cfg().Collector.Addr
	}

	h := collector.NewHandler(collector.NewRepository(st), globals.clk(), logger)
	e := collector.NewServer(h, logger)
	logger.Info("collector starting", zap.String("addr", addr), zap.String("store", opts.Backend))

	if err := collector.Run(ctx, e, addr, logger); err != nil {
		return outputErrorCommon(globals, "SERVE_FAILED", err.Error())
	}
	return nil
}
