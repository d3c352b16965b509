// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZSC714725/pairview/internal/logger"
	"github.com/ZSC714725/pairview/internal/worker"

	"github.com/spf13/cobra"
)

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:    "worker --source <path>",
		Short:  "Serve decode requests for one source over stdin/stdout",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			newDecoder, err := newDecoderFactory(cfg)
			if err != nil {
				return err
			}

			// stdout carries replies; logs go to stderr, which the parent keeps
			log := logger.New("worker", opts.Verbose)
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
			defer stop()
			return worker.ServeStdio(ctx, newDecoder(), source, os.Stdin, os.Stdout, log)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "Source to open")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
