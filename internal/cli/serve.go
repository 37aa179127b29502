package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/bitfsorg/libmarket-go/api"
)

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the settlement API on the configured listen address",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	l, err := a.openLedger()
	if err != nil {
		return err
	}
	defer l.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	engine, err := a.newEngine(ctx, l, reg)
	if err != nil {
		return err
	}

	log.Infow("serving", "datadir", a.cfg.DataDir, "ledger", l.Path(), "marketplace", a.cfg.Marketplace)
	return api.NewServer(engine, l, reg).ListenAndServe(ctx, a.cfg.ListenAddr)
}
