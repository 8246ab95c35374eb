package main

import (
	"fmt"
	"image/png"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/epaper-clock/internal/display"
	"github.com/sweeney/epaper-clock/internal/logic"
)

var (
	previewOut      string
	previewAt       string
	previewBattery  string
	previewSync     string
	previewSeconds  bool
	previewMessage  string
	previewTimezone string
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render the clock face to a PNG file",
	Long: `Render a frame exactly as the panel would show it, without any hardware.

The face is drawn for --at (RFC 3339 or HH:MM today, default now). With
--message the update or critical battery notice is drawn instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := time.LoadLocation(previewTimezone)
		if err != nil {
			return fmt.Errorf("--tz: %w", err)
		}
		at, err := parseAt(previewAt, time.Now().In(loc), loc)
		if err != nil {
			return err
		}
		sync, err := parseStamp(previewSync)
		if err != nil {
			return err
		}

		c := display.NewCanvas()
		switch previewMessage {
		case "":
			display.DrawFace(c, display.Face{
				Battery:     previewBattery,
				LastSync:    sync,
				Time:        at,
				ShowSeconds: previewSeconds,
			})
		case display.UpdateMessage.Name:
			c.DrawMessage(display.UpdateMessage)
		case display.CriticalMessage.Name:
			c.DrawMessage(display.CriticalMessage)
		default:
			return fmt.Errorf("--message: unknown message %q", previewMessage)
		}

		f, err := os.Create(previewOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", previewOut, err)
		}
		if err := png.Encode(f, c.Image()); err != nil {
			f.Close()
			return fmt.Errorf("encode png: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close %s: %w", previewOut, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d)\n", previewOut, display.Width, display.Height)
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVarP(&previewOut, "out", "o", "face.png", "output file")
	previewCmd.Flags().StringVar(&previewAt, "at", "", "time to show (RFC 3339 or HH:MM)")
	previewCmd.Flags().StringVar(&previewBattery, "battery", "87%", "battery indicator text")
	previewCmd.Flags().StringVar(&previewSync, "sync", "", "last sync as HH:MM (empty for never)")
	previewCmd.Flags().BoolVar(&previewSeconds, "seconds", false, "draw the seconds counter")
	previewCmd.Flags().StringVar(&previewMessage, "message", "", "draw a notice instead (update, critical)")
	previewCmd.Flags().StringVar(&previewTimezone, "tz", "Local", "time zone for --at")
	rootCmd.AddCommand(previewCmd)
}

// parseAt accepts RFC 3339 or HH:MM, which is taken as today in loc.
func parseAt(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	hm, err := time.ParseInLocation("15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at: %q is neither RFC 3339 nor HH:MM", s)
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, hm.Hour(), hm.Minute(), 0, 0, loc), nil
}

func parseStamp(s string) (logic.SyncStamp, error) {
	if s == "" {
		return logic.SyncStamp{}, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return logic.SyncStamp{}, fmt.Errorf("--sync: %q is not HH:MM", s)
	}
	return logic.StampOf(t), nil
}
