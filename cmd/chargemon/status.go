package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chargemon/chargemon/pkg/types"
)

type statusData struct {
	status *types.Status
	config *types.CycleConfig
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	st, err := apiClient.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get daemon status: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	return &statusData{
		status: st,
		config: conf,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of chargemon",
		Long:    `Get the charge cycle state, phase energy breakdown, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}
			st := data.status

			// Cycle status.
			cmd.Println(bold("Cycle status:"))

			state := st.State
			switch st.State {
			case "CC", "CV", "Trans":
				state = color.GreenString(st.State)
			case "Done":
				state = color.New(color.Bold, color.FgGreen).Sprint("Done")
			case "Unknown":
				if st.RawState != "" {
					state = color.YellowString("Unknown (%s)", st.RawState)
				} else {
					state = color.YellowString("Unknown")
				}
			}
			cmd.Printf("  State: %s\n", state)

			cmd.Println("  Logging: " + bool2Text(st.LoggingActive))
			if st.LoggingActive && st.LoggingStartedMs > 0 {
				started := time.UnixMilli(st.LoggingStartedMs)
				cmd.Printf("    Started %s (%s ago)\n",
					started.Format("15:04:05"),
					time.Since(started).Round(time.Second))
			}

			if st.LatestCharger != nil {
				cmd.Printf("  Voltage: %s\n", bold("%.3f V", st.LatestCharger.Voltage))
				cmd.Printf("  Current: %s\n", bold("%.3f A", st.LatestCharger.Current))
			}
			if st.LatestTemp != nil {
				cmd.Printf("  Temperature: %s\n", bold("%.1f °C", st.LatestTemp.Celsius))
			}
			cmd.Printf("  Charge level: %s\n", bold("%.1f%%", st.SOCPercent))
			cmd.Printf("  Energy this cycle: %s\n", bold("%.3f Wh", st.TotalEnergyWh))

			// Phase breakdown.
			if len(st.Phases) > 0 {
				cmd.Println()
				cmd.Println(bold("Phases:"))
				for _, p := range st.Phases {
					open := ""
					if p.Open {
						open = color.GreenString(" (active)")
					}
					cmd.Printf("  %s%s\n", bold("%s", p.Label), open)
					cmd.Printf("    Energy: %.3f Wh over %s, %d samples\n",
						p.EnergyWh, (time.Duration(p.DurationSec) * time.Second).String(), p.Samples)
					if p.HasAvgTemp {
						cmd.Printf("    Avg temperature: %.1f °C\n", p.AvgCelsius)
					}
				}
			}

			cmd.Println()

			// Config.
			cmd.Println(bold("Cycle configuration:"))
			cmd.Printf("  Target voltage: %s\n", bold("%.2f V", data.config.TargetVoltageV))
			cmd.Printf("  Battery capacity: %s\n", bold("%d mAh", data.config.BatteryCapacityMah))
			cmd.Printf("  CV setpoint: %s\n", bold("%.2f V", data.config.Vref))
			cmd.Printf("  CC setpoint: %s\n", bold("%.2f A", data.config.Iref))
			return nil
		},
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
