package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sweeney/epaper-clock/internal/config"
	"github.com/sweeney/epaper-clock/internal/logic"
	"github.com/sweeney/epaper-clock/internal/state"
)

var (
	statusWarm string
	statusCold string
	statusJSON bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the retained state left by the last boot",
	Long: `Show the state the clock carries between boots: the exit record and warm
state in the warm region, and the committed cold state.

The warm region is only valid within the kernel boot that wrote it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		region, err := state.OpenRegion(statusWarm)
		if err != nil {
			return fmt.Errorf("open warm region: %w", err)
		}
		defer region.Close()

		rs := readRetained(region, state.NewFileStore(statusCold))
		if statusJSON {
			return writeRetainedJSON(cmd.OutOrStdout(), rs)
		}
		_, err = io.WriteString(cmd.OutOrStdout(), renderRetained(rs))
		return err
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusWarm, "warm", config.DefaultWarmPath, "warm region file")
	statusCmd.Flags().StringVar(&statusCold, "cold", config.DefaultColdPath, "cold state file")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(statusCmd)
}

// retained is what status reports. Nil parts were not available.
type retained struct {
	Exit    *state.ExitRecord
	Warm    *state.WarmState
	Cold    *state.ColdState
	ColdErr error
}

// region is the subset of a warm region status reads. It never clears the
// exit record.
type region interface {
	LoadExit() (state.ExitRecord, bool)
	ReadWarm() (state.WarmState, bool)
}

func readRetained(r region, cold state.ColdStore) retained {
	var rs retained
	if rec, ok := r.LoadExit(); ok {
		rs.Exit = &rec
	}
	if w, ok := r.ReadWarm(); ok {
		rs.Warm = &w
	}
	c, err := cold.ReadCold()
	switch {
	case err == nil:
		rs.Cold = &c
	case !errors.Is(err, fs.ErrNotExist):
		rs.ColdErr = err
	}
	return rs
}

type retainedJSON struct {
	Exit *exitJSON `json:"exit"`
	Warm *warmJSON `json:"warm"`
	Cold *coldJSON `json:"cold"`
	// ColdError is set when the cold file exists but cannot be read.
	ColdError string `json:"coldError,omitempty"`
}

type exitJSON struct {
	Reason string `json:"reason"`
	Source string `json:"source"`
	Pin    string `json:"pin,omitempty"`
}

type warmJSON struct {
	Mode             string  `json:"mode"`
	BootCount        uint32  `json:"bootCount"`
	BatteryLevel     string  `json:"batteryLevel"`
	TimeShiftAvg     float64 `json:"timeShiftAvg"`
	TimeShiftSamples uint32  `json:"timeShiftSamples"`
}

type coldJSON struct {
	UUID     string `json:"uuid"`
	LastSync string `json:"lastSync"`
}

func writeRetainedJSON(w io.Writer, rs retained) error {
	var out retainedJSON
	if rs.Exit != nil {
		out.Exit = &exitJSON{Reason: rs.Exit.Reason.String(), Source: rs.Exit.Source.String()}
		if rs.Exit.Pin != logic.PinNone {
			out.Exit.Pin = rs.Exit.Pin.String()
		}
	}
	if rs.Warm != nil {
		out.Warm = &warmJSON{
			Mode:             rs.Warm.CurrentMode.String(),
			BootCount:        rs.Warm.BootCount,
			BatteryLevel:     rs.Warm.BatteryText,
			TimeShiftAvg:     rs.Warm.Drift.Average,
			TimeShiftSamples: rs.Warm.Drift.Count,
		}
	}
	if rs.Cold != nil {
		out.Cold = &coldJSON{UUID: rs.Cold.DeviceID, LastSync: rs.Cold.LastSync.String()}
	}
	if rs.ColdErr != nil {
		out.ColdError = rs.ColdErr.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func renderRetained(rs retained) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Bold(true)
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12"))
	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))
	missingStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))
	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9"))

	var s strings.Builder
	row := func(label, value string) {
		fmt.Fprintf(&s, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-12s", label)), valueStyle.Render(value))
	}
	section := func(name string) {
		s.WriteString(headerStyle.Render(name))
		s.WriteString("\n")
	}

	s.WriteString(titleStyle.Render("EPAPER CLOCK - RETAINED STATE"))
	s.WriteString("\n\n")

	section("Exit record")
	if rs.Exit != nil {
		row("Reason", rs.Exit.Reason.String())
		row("Source", rs.Exit.Source.String())
		if rs.Exit.Pin != logic.PinNone {
			row("Pin", rs.Exit.Pin.String())
		}
	} else {
		s.WriteString("  " + missingStyle.Render("none (next boot is a cold boot)") + "\n")
	}

	section("Warm state")
	if rs.Warm != nil {
		row("Mode", rs.Warm.CurrentMode.String())
		row("Boot count", fmt.Sprintf("%d", rs.Warm.BootCount))
		row("Battery", rs.Warm.BatteryText)
		row("Drift", fmt.Sprintf("%.3fs over %d syncs", rs.Warm.Drift.Average, rs.Warm.Drift.Count))
	} else {
		s.WriteString("  " + missingStyle.Render("invalid") + "\n")
	}

	section("Cold state")
	switch {
	case rs.ColdErr != nil:
		s.WriteString("  " + errorStyle.Render(rs.ColdErr.Error()) + "\n")
	case rs.Cold != nil:
		row("UUID", rs.Cold.DeviceID)
		row("Last sync", rs.Cold.LastSync.String())
	default:
		s.WriteString("  " + missingStyle.Render("never committed") + "\n")
	}
	return s.String()
}
