package main

import (
	"context"
	"log"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/rahul/agentview/internal/agent"
	"github.com/rahul/agentview/internal/observability"
	"github.com/rahul/agentview/internal/server"
)

var (
	serveAddr   string
	serveDetect bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and inbox relay",
	Long: `Serve the HTTP API: ask, run step timelines, stored financial activity and
support docs, and the live inbox relay.

With --detect the financial activity detector runs alongside the API. When a
Telegram gateway is configured, chat messages are answered as questions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgFile, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		addr := serveAddr
		if addr == "" {
			addr = a.cfg.Server.Addr
		}
		orch := a.orchestrator()

		opts := server.Options{
			Runner: orch,
			Steps:  a.steps,
			Store:  a.db,
			Stream: a.capture,
			Policy: a.policy,
			APIKey: a.apiKey,
		}

		p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
		if serveDetect {
			det, err := a.detector()
			if err != nil {
				return err
			}
			opts.Status = det.Status
			p.Go(det.Start)
		}
		if a.telegram != nil {
			a.telegram.Asker = orch
			p.Go(a.telegram.Start)
		}
		srv := server.New(opts)
		p.Go(func(ctx context.Context) error {
			return srv.Run(ctx, addr)
		})

		err = p.Wait()
		log.Println("agentview stopped")
		return err
	},
}

func (a *app) detector() (*agent.Detector, error) {
	svc, err := a.financeInference()
	if err != nil {
		return nil, err
	}
	det := agent.NewDetector(a.capture, a.financeWorker(), svc, a.apiKey)
	det.Status = observability.NewDetectorStatus()
	return det, nil
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveDetect, "detect", false, "also run the financial activity detector")
	rootCmd.AddCommand(serveCmd)
}
