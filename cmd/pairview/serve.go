// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ZSC714725/pairview/internal/api"
	"github.com/ZSC714725/pairview/internal/compose"
	"github.com/ZSC714725/pairview/internal/config"
	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/engine"
	"github.com/ZSC714725/pairview/internal/logger"
	"github.com/ZSC714725/pairview/internal/player"
	"github.com/ZSC714725/pairview/internal/telemetry"
	"github.com/ZSC714725/pairview/internal/worker"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	Bind   string
	Left   string
	Right  string
	Width  int
	Height int
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	so := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the player and its HTTP control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, so)
		},
	}
	cmd.Flags().StringVarP(&so.Bind, "bind", "b", "", "Bind address (overrides config)")
	cmd.Flags().StringVar(&so.Left, "left", "", "Left source to open at start")
	cmd.Flags().StringVar(&so.Right, "right", "", "Right source to open at start")
	cmd.Flags().IntVar(&so.Width, "width", 1280, "Canvas width")
	cmd.Flags().IntVar(&so.Height, "height", 720, "Canvas height")
	return cmd
}

func newSpawner(opts *rootOptions, cfg *config.Config, log logger.Logger) (worker.Spawner, error) {
	if cfg.Engine.Isolation == config.IsolationLocal {
		newDecoder, err := newDecoderFactory(cfg)
		if err != nil {
			return nil, err
		}
		return &worker.LocalSpawner{NewDecoder: newDecoder, Poll: cfg.Engine.PollInterval(), Logger: log}, nil
	}
	s, err := worker.SelfSpawner(opts.workerArgs(cfg), cfg.Engine.PollInterval(), log)
	if err != nil {
		return nil, err
	}
	s.LogLines = 100
	return s, nil
}

func runServe(opts *rootOptions, so *serveOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if so.Bind != "" {
		cfg.Server.Bind = so.Bind
	}

	log := logger.New("pairview", opts.Verbose)
	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	if tc, err := decoder.DetectToolchain(context.Background(), cfg.FFmpeg.Path); err != nil {
		log.Warn("ffmpeg not usable, only synthetic sources will open: %v", err)
	} else {
		log.Info("using ffmpeg %s with %d video decoders", tc.Version, len(tc.VideoDecoders))
	}

	spawner, err := newSpawner(opts, cfg, log.With("worker"))
	if err != nil {
		return err
	}
	exporter, err := telemetry.New("pairview", prom.DefaultRegisterer)
	if err != nil {
		return err
	}

	composer := compose.New(cfg.View.FontColor, cfg.View.FontLocation)
	facade, err := engine.New(engine.Config{
		Spawner:           spawner,
		Composer:          composer,
		Observer:          exporter,
		Logger:            log.With("engine"),
		Mode:              cfg.View.Mode,
		PollInterval:      cfg.Engine.PollInterval(),
		BootstrapAttempts: cfg.Engine.BootstrapAttempts,
		QueueSize:         cfg.Engine.QueueSize,
		OpenTimeout:       cfg.Engine.OpenTimeout(),
	})
	if err != nil {
		return err
	}

	p := player.New(player.Config{
		Facade:   facade,
		Composer: composer,
		Logger:   log.With("player"),
		Canvas:   decoder.Size{W: so.Width, H: so.Height},
	})
	defer p.Close()

	if cfg.Metrics.File != "" {
		// a broken report leaves the overlay empty
		_ = p.LoadMetrics(cfg.Metrics.File)
	}
	if len(cfg.Metrics.Enabled) > 0 {
		if err := p.EnableMetrics(cfg.Metrics.Enabled); err != nil {
			return err
		}
	}
	if so.Left != "" {
		if err := p.Open(engine.SideLeft, so.Left); err != nil {
			log.Error("%v", err)
		}
	}
	if so.Right != "" {
		if err := p.Open(engine.SideRight, so.Right); err != nil {
			log.Error("%v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go p.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.Server.Bind,
		Handler: api.NewRouter(api.NewHandler(p), prom.DefaultGatherer, log.With("http")),
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("PairView listening on %s (isolation: %s)", cfg.Server.Bind, cfg.Engine.Isolation)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
