package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/ingest/execution"
)

var flagExtractPoll time.Duration

var extractCmd = &cobra.Command{
	Use:   "extract <schema> <pipeline>",
	Short: "Run an ingestion pipeline and wait for it to finish",
	Args:  cobra.ExactArgs(2),
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().DurationVar(&flagExtractPoll, "poll", time.Second, "progress polling interval")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app) error {
		info, err := a.extract.Start(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		a.logger.Info("Extraction started", zap.Stringer("job_id", info.ID))

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(quit)

		ticker := time.NewTicker(flagExtractPoll)
		defer ticker.Stop()
		for !info.Status.Final() {
			select {
			case <-quit:
				if info, err = a.extract.Cancel(info.ID); err != nil {
					return err
				}
			case <-ticker.C:
				if info, err = a.extract.Job(info.ID); err != nil {
					return err
				}
				a.logger.Info("Extraction progress",
					zap.String("status", string(info.Status)),
					zap.Int64("processed", info.Processed),
					zap.Int64("failed", info.Failed),
				)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(info); err != nil {
			return err
		}
		if info.Status != execution.StatusCompleted {
			return fmt.Errorf("extraction %s: %s", info.Status, info.Error)
		}
		return nil
	})
}
