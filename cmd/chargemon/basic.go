package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chargemon/chargemon/pkg/types"
	"github.com/chargemon/chargemon/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewCleanupCommand() *cobra.Command {
	var (
		count      int
		olderThan  time.Duration
		collection string
	)

	cmd := &cobra.Command{
		Use:     "cleanup",
		Short:   "Delete old history records",
		GroupID: gBasic,
		Long: `Delete old history records from the daemon's store.

By default the oldest 50 records of the charger collection are removed. Use --count to remove a different number of oldest records, or --older-than to remove everything recorded before the given age (e.g. --older-than 72h).`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if count > 0 && olderThan > 0 {
				return fmt.Errorf("--count and --older-than are mutually exclusive")
			}

			req := types.RetentionRequest{}
			switch {
			case olderThan > 0:
				req.Mode = types.RetentionModeAge
				req.OlderThanMs = olderThan.Milliseconds()
			case count > 0:
				req.Mode = types.RetentionModeCount
				req.DeleteCount = count
			}

			res, err := apiClient.Cleanup(collection, req)
			if err != nil {
				return fmt.Errorf("failed to run cleanup: %v", err)
			}

			logrus.Infof("cleanup removed %d records: %s", res.Deleted, res.Message)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&count, "count", 0, "number of oldest records to delete (default 50)")
	f.DurationVar(&olderThan, "older-than", 0, "delete records older than this duration, e.g. 72h")
	f.StringVar(&collection, "collection", "charger", "collection to clean up (charger, temperature, legacy)")

	return cmd
}

func NewClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "clear",
		Short:   "Clear the finished cycle",
		GroupID: gBasic,
		Long: `Clear the finished charge cycle.

Removes all logged charger and temperature records and resets the in-memory cycle context (phase accumulators, energy totals). Use this between test runs.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			res, err := apiClient.ClearCycle()
			if err != nil {
				return fmt.Errorf("failed to clear cycle: %v", err)
			}

			logrus.Infof("daemon responded: %s", res.Message)
			return nil
		},
	}
}

func NewHistoryCommand() *cobra.Command {
	var (
		limit      int
		collection string
	)

	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show recent history records",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := apiClient.GetHistory(collection, limit)
			if err != nil {
				return fmt.Errorf("failed to get history: %v", err)
			}

			if len(recs) == 0 {
				cmd.Println("no records")
				return nil
			}
			for _, rec := range recs {
				ts := time.UnixMilli(rec.TimestampMs).Format("2006-01-02 15:04:05")
				cmd.Printf("%s  %s\n", ts, string(rec.Value))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&limit, "limit", 50, "maximum number of records to show")
	f.StringVar(&collection, "collection", "charger", "collection to read (charger, temperature, legacy)")

	return cmd
}

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Get or set cycle configuration",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := apiClient.GetConfig()
			if err != nil {
				return fmt.Errorf("failed to get config: %v", err)
			}

			cmd.Printf("Target voltage:   %.2f V\n", conf.TargetVoltageV)
			cmd.Printf("Battery capacity: %d mAh\n", conf.BatteryCapacityMah)
			cmd.Printf("Vref setpoint:    %.2f V\n", conf.Vref)
			cmd.Printf("Iref setpoint:    %.2f A\n", conf.Iref)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [targetVoltageV] [batteryCapacityMah]",
		Short: "Set cycle configuration",
		Long: `Set the cycle configuration.

Takes the charge target voltage in volts and the battery capacity in mAh. The CV voltage and CC current setpoints are derived from the capacity (0.5C rate) unless the daemon already holds explicit values.`,
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("invalid number of arguments")
			}

			target, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid target voltage: %v", err)
			}
			capacity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid battery capacity: %v", err)
			}

			ret, err := apiClient.SetConfig(types.CycleConfig{
				TargetVoltageV:     target,
				BatteryCapacityMah: capacity,
			})
			if err != nil {
				return fmt.Errorf("failed to set config: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			logrus.Infof("successfully set cycle config: target %.2fV, capacity %dmAh", target, capacity)
			return nil
		},
	})

	return cmd
}
