package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"stacks-fundraising/internal/api"
	"stacks-fundraising/internal/notify"
	"stacks-fundraising/internal/observability"
	"stacks-fundraising/internal/query"
	"stacks-fundraising/internal/signer"
	"stacks-fundraising/internal/stacks"
)

const shutdownTimeout = 30 * time.Second

var serveCommand = cli.Command{
	Name:   "serve",
	Usage:  "Poll the campaign and serve the HTTP API",
	Flags:  []cli.Flag{httpAddrFlag},
	Action: serveAction,
}

func serveAction(cliCtx *cli.Context) error {
	cfg := getConfig(cliCtx)
	if cliCtx.IsSet(httpAddrFlagName) {
		cfg.HTTPAddr = cliCtx.String(httpAddrFlagName)
	}

	c, err := newComponents(cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cliCtx.Context)
	defer cancel()

	hub := notify.NewHub(cfg.AllowedWSOrigins, c.metrics)
	defer hub.Close()

	bridge := signer.NewBridge(hub, cfg.SignTimeout, c.metrics)
	exec, err := c.newExecutor(bridge, notify.Multi{notify.LogNotifier{}, hub})
	if err != nil {
		return err
	}

	var blocks <-chan stacks.BlockEvent
	if cfg.WSURL != "" {
		ws, err := stacks.NewWSClient(ctx, cfg.WSURL, nil)
		if err != nil {
			log.WithError(err).Warn("block subscription unavailable, polling only")
		} else {
			defer ws.Close()
			blocks = ws.Blocks()
		}
	}

	sched := query.NewScheduler(query.NewCache(),
		query.WithInterval(cfg.PollInterval),
		query.WithMetrics(c.metrics),
	)
	defer sched.Stop()

	svc, err := c.newService(exec, sched, hub, blocks)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(svc, api.Options{
			Bridge:      bridge,
			Wallets:     c.selector,
			WS:          hub,
			Metrics:     observability.Handler(),
			DownloadURL: cfg.DownloadURL,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":     cfg.HTTPAddr,
			"env":      c.env.String(),
			"strategy": exec.Strategy(),
		}).Info("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Infof("received signal %v, shutting down", sig)
	case err, ok := <-serverErr:
		if ok {
			return err
		}
	}

	// A second signal forces exit.
	go func() {
		select {
		case sig := <-sigCh:
			log.Warnf("received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-ctx.Done():
		}
	}()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown")
	}
	log.Info("shutdown complete")
	return nil
}
