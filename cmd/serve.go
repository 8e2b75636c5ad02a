package main

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/songbook/internal/catalog"
	"github.com/desertthunder/songbook/internal/server"
	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/tasks"
)

// Serve runs the HTTP API, the change feed worker and the periodic reconciler
// until the context is cancelled or one of them fails.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}

	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}
	idx, err := r.openIndex(ctx, st)
	if err != nil {
		return err
	}
	fulltext, err := r.openSearch(ctx, st)
	if err != nil {
		return err
	}
	defer fulltext.Close()

	deps := server.Deps{
		Store:        st,
		Index:        idx,
		Search:       fulltext,
		Importer:     tasks.NewImporter(st, r.logger, r.metrics),
		Metrics:      r.metrics,
		OAuth:        server.NewOAuthConfig(r.config.Auth.OAuth),
		Logger:       r.logger,
		Listing:      r.listingOptions(),
		SecureCookie: r.config.Auth.SecureCookie,
	}
	switch svc, err := r.authService(st); {
	case errors.Is(err, shared.ErrMissingConfig):
		r.logger.Warn("auth secrets not configured, sessions, playlists and admin routes are disabled")
	case err != nil:
		return err
	default:
		deps.Auth = svc
	}

	syncer := r.synchronizer(idx, st)
	watcher := r.watcher(st, syncer, fulltext)
	reconciler := catalog.NewReconciler(st, idx, syncer, r.logger)
	srv := server.New(cfg, deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx) })
	g.Go(func() error { return ignoreCanceled(watcher.Run(gctx)) })
	if interval := r.config.Sync.ReconcileInterval.Duration; interval > 0 {
		r.logger.Info("periodic reconcile enabled", "interval", interval)
		g.Go(func() error { return ignoreCanceled(reconciler.Run(gctx, interval)) })
	}
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
