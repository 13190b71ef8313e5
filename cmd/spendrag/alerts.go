package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"spendrag/internal/amqp"
	"spendrag/internal/core"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Read alerts published by the detector worker",
}

var alertsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print alerts from the AMQP queue until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is not set: %w", core.ErrCapabilityUnavailable)
		}
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}
		defer client.Close()

		out := cmd.OutOrStdout()
		err = client.ConsumeAlerts(cmd.Context(), func(msg *amqp.AlertMessage) error {
			if jsonOutput {
				return printJSON(out, msg)
			}
			_, err := fmt.Fprintf(out, "%s [%s/%s] %s\n",
				msg.Timestamp.Format("2006-01-02 15:04"), msg.Kind, msg.Severity, msg.Message)
			return err
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	alertsCmd.AddCommand(alertsWatchCmd)
	rootCmd.AddCommand(alertsCmd)
}
