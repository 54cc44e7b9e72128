package main

import (
	"log"
	"time"

	"github.com/spf13/cobra"
)

var detectHeartbeat time.Duration

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Watch the live capture feed for financial activity",
	Long: `Stream OCR events from the capture service and store invoices, payments,
receipts and subscriptions detected with enough confidence. Runs until
interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgFile, verbose)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		det, err := a.detector()
		if err != nil {
			return err
		}
		if detectHeartbeat > 0 {
			det.Heartbeat = detectHeartbeat
		}
		if err := det.Start(ctx); err != nil {
			return err
		}
		snap := det.Status.Snapshot()
		log.Printf("detector stopped after %d detections", snap.Detected)
		return nil
	},
}

func init() {
	detectCmd.Flags().DurationVar(&detectHeartbeat, "heartbeat", 30*time.Second, "heartbeat interval")
	rootCmd.AddCommand(detectCmd)
}
