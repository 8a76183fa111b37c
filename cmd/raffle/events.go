package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"raffle/internal/config"
	"raffle/internal/storage"
)

func eventsCmd() *cobra.Command {
	var (
		after uint64
		limit int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the raffle journal as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}
			store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := store.GetEventsAfter(context.Background(), after, limit)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			for _, event := range events {
				if err := encoder.Encode(event); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&after, "after", 0, "only events with a greater sequence number")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of events, 0 for all")
	return cmd
}
