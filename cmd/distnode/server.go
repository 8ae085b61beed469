package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nspcc-dev/clusterlink/internal/fakeregistry"
	"github.com/nspcc-dev/clusterlink/pkg/dist"
	"github.com/nspcc-dev/clusterlink/pkg/dist/distlog"
	"github.com/nspcc-dev/clusterlink/pkg/dist/distmetrics"
	"github.com/nspcc-dev/clusterlink/pkg/distconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config-path",
		Aliases: []string{"c"},
		Usage:   "Path to the node options YAML file",
	}
	listenFlag = &cli.StringFlag{
		Name:  "listen",
		Usage: "Address to accept distribution connections on",
		Value: "127.0.0.1:9735",
	}
	metricsFlag = &cli.StringFlag{
		Name:  "metrics-listen",
		Usage: "Address to serve Prometheus metrics on",
		Value: "127.0.0.1:9736",
	}
	auditFlag = &cli.StringFlag{
		Name:  "audit-db",
		Usage: "Path to the bbolt connection audit trail (disabled if empty)",
	}
	nameFlag = &cli.StringFlag{
		Name:  "name",
		Usage: "Our node name, e.g. relay@127.0.0.1 (overrides config-path)",
	}
	cookieFlag = &cli.StringFlag{
		Name:  "cookie",
		Usage: "Shared cluster cookie (overrides config-path)",
	}
)

// NewCommands returns the 'listen' command.
func NewCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "listen",
			Usage:     "Accept distribution connections and dispatch to a stand-in registry",
			UsageText: "distnode listen [--config-path file] [--listen addr] [--metrics-listen addr] [--audit-db path]",
			Action:    runListener,
			Flags:     []cli.Flag{configFlag, listenFlag, metricsFlag, auditFlag, nameFlag, cookieFlag},
		},
	}
}

func loadOptions(ctx *cli.Context) (*distconfig.Options, error) {
	if path := ctx.String("config-path"); path != "" {
		opts, err := distconfig.Load(path)
		if err != nil {
			return nil, err
		}
		if n := ctx.String("name"); n != "" {
			opts.Name = n
		}
		if c := ctx.String("cookie"); c != "" {
			opts.Cookie = c
		}
		return opts, nil
	}
	opts := &distconfig.Options{
		Name:   ctx.String("name"),
		Cookie: ctx.String("cookie"),
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

func runListener(ctx *cli.Context) error {
	opts, err := loadOptions(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}

	log, err := zap.NewProduction()
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to initialize logger: %w", err), 1)
	}
	defer func() { _ = log.Sync() }()

	var audit *distlog.Store
	if path := ctx.String("audit-db"); path != "" {
		audit, err = distlog.Open(path)
		if err != nil {
			return cli.Exit(err, 1)
		}
		defer func() { _ = audit.Close() }()
	}

	reg := fakeregistry.New()

	promReg := prometheus.NewRegistry()
	distmetrics.Register(promReg)
	metricsSrv := &http.Server{
		Addr:    ctx.String("metrics-listen"),
		Handler: promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	defer func() { _ = metricsSrv.Close() }()

	ln, err := net.Listen("tcp", ctx.String("listen"))
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to listen: %w", err), 1)
	}
	defer func() { _ = ln.Close() }()

	grace, cancel := newGraceContext()
	defer cancel()

	log.Info("distribution node listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("name", opts.Name))

	go func() {
		<-grace.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if grace.Err() != nil {
				log.Info("listener shutting down")
				return nil
			}
			log.Warn("accept failed", zap.Error(err))
			continue
		}
		c := dist.NewConnection(conn, opts, reg, log)
		if audit != nil {
			c.SetAudit(audit)
		}
		go func() {
			if err := c.Serve(grace); err != nil {
				log.Info("connection ended", zap.Error(err))
			}
		}()
	}
}

func newGraceContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
