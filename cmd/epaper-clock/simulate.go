package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sweeney/epaper-clock/internal/config"
	"github.com/sweeney/epaper-clock/internal/sim"
)

var (
	simCfg        = config.Default()
	simStep       int
	simMillivolts uint32
	simSyncDelay  time.Duration
	simOffset     time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the clock on simulated hardware in the terminal",
	Long: `Run consecutive boots of the clock in one process, with the panel drawn in
the terminal and the buttons and battery on the keyboard.

Keys:
  u         press the update button
  s, space  press the user button
  p         pull the battery (the next boot is a cold boot)
  +, -      raise or lower the cell voltage
  q         quit

Boots follow the wall clock, so the face changes once a minute. Time syncs
are simulated and never touch the system clock.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := simCfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		var p *tea.Program
		send := func(msg tea.Msg) { p.Send(msg) }
		logger, err := newLogger(sim.LogWriter{Send: send}, logLevel, logFormat)
		if err != nil {
			return err
		}

		dev := sim.NewDevice(sim.Options{
			Config:     simCfg,
			Millivolts: simMillivolts,
			SyncDelay:  simSyncDelay,
			Offset:     simOffset,
			Logger:     logger,
			OnEvent:    func(ev sim.Event) { send(sim.EventMsg(ev)) },
		})
		p = tea.NewProgram(sim.NewModel(dev, simStep), tea.WithAltScreen())

		ctx, cancel := context.WithCancel(cmd.Context())
		done := make(chan error, 1)
		go func() { done <- dev.Run(ctx) }()

		_, err = p.Run()
		cancel()
		if runErr := <-done; err == nil {
			err = runErr
		}
		return err
	},
}

func init() {
	simCfg.BindFlags(simulateCmd.Flags())
	simulateCmd.Flags().IntVar(&simStep, "step", 2, "panel pixels per terminal cell")
	simulateCmd.Flags().Uint32Var(&simMillivolts, "millivolts", sim.DefaultMillivolts, "initial cell voltage")
	simulateCmd.Flags().DurationVar(&simSyncDelay, "sync-delay", sim.DefaultSyncDelay, "how long a simulated sync takes")
	simulateCmd.Flags().DurationVar(&simOffset, "sync-offset", 0, "clock correction reported by a simulated sync")
	rootCmd.AddCommand(simulateCmd)
}
