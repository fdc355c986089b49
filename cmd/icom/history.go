package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosswire/intercom/internal/config"
	"github.com/crosswire/intercom/internal/db"
	"github.com/crosswire/intercom/internal/history"
	"github.com/crosswire/intercom/internal/models"
	"github.com/crosswire/intercom/internal/protocol"
)

func newHistoryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded calls",
		Long:  "Lists the persisted call history: direction, far side, call id, and time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, configPath)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.AddCommand(newHistoryClearCmd(&configPath))
	return cmd
}

func newHistoryClearCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := openHistory(*configPath)
			if err != nil {
				return err
			}
			if err := log.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Call history cleared")
			return nil
		},
	}
}

func runHistoryList(cmd *cobra.Command, configPath string) error {
	log, err := openHistory(configPath)
	if err != nil {
		return err
	}
	entries, err := log.Entries()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No recorded calls")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(out, formatHistoryEntry(e))
	}
	return nil
}

// formatHistoryEntry renders one line: time, direction arrow, label, id.
func formatHistoryEntry(e models.CallHistoryEntry) string {
	arrow := "->"
	if e.Direction == models.DirectionIn {
		arrow = "<-"
	}
	label := e.Label
	if label == "" {
		label = "(unknown)"
	}
	return fmt.Sprintf("%s  %s %-20s  %s",
		e.CreatedAt.Format("2006-01-02 15:04:05"), arrow, label, e.CallID)
}

func openHistory(configPath string) (*history.Log, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	gormDB, err := db.Open(cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return history.NewLog(history.LogOpts{
		DB: gormDB,
		LabelFor: func(id protocol.StationID) []string {
			return cfg.StationLabels(string(id))
		},
	})
}
