package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"periph.io/x/host/v3"

	"github.com/sweeney/epaper-clock/internal/battery"
	"github.com/sweeney/epaper-clock/internal/boot"
	"github.com/sweeney/epaper-clock/internal/config"
	"github.com/sweeney/epaper-clock/internal/display"
	"github.com/sweeney/epaper-clock/internal/gpio"
	"github.com/sweeney/epaper-clock/internal/mqtt"
	"github.com/sweeney/epaper-clock/internal/power"
	"github.com/sweeney/epaper-clock/internal/state"
	"github.com/sweeney/epaper-clock/internal/status"
	"github.com/sweeney/epaper-clock/internal/timesync"
	"github.com/sweeney/epaper-clock/internal/web"
)

var (
	bootCfg  = config.Default()
	setClock bool
)

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Run one boot on the clock hardware",
	Long: `Run one boot of the clock on the real hardware: the e-paper panel on SPI,
the buttons and switched rails on the GPIO character device, and the battery
ADC on I2C.

The Wi-Fi password is read from the ` + config.PasswordEnv + ` environment
variable, or prompted for when --ssid is set and stdin is a terminal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := setupLogger(os.Stderr)
		if err != nil {
			return err
		}
		bootCfg.LoadEnv()
		if err := promptPassword(&bootCfg, os.Stdin, os.Stderr); err != nil {
			return err
		}
		if err := bootCfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runBoot(ctx, bootCfg, logger)
	},
}

func init() {
	bootCfg.BindFlags(bootCmd.Flags())
	bootCmd.Flags().BoolVar(&setClock, "set-clock", true, "step the system clock after a successful sync")
	rootCmd.AddCommand(bootCmd)
}

func runBoot(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init periph: %w", err)
	}

	region, err := state.OpenRegion(cfg.WarmPath)
	if err != nil {
		return fmt.Errorf("open warm region: %w", err)
	}
	defer region.Close()

	buttons, err := gpio.NewRealButtons(cfg.GPIOChip, cfg.PinUpdate, cfg.PinUser)
	if err != nil {
		return fmt.Errorf("init buttons: %w", err)
	}
	defer buttons.Close()

	aux, err := gpio.NewRealOutput(cfg.GPIOChip, cfg.PinAux, false)
	if err != nil {
		return fmt.Errorf("init aux rail: %w", err)
	}
	defer aux.Close()

	led, err := gpio.NewRealOutput(cfg.GPIOChip, cfg.PinLED, true)
	if err != nil {
		return fmt.Errorf("init led: %w", err)
	}
	defer led.Close()

	// A panel on the aux rail must be powered before it can be opened.
	if cfg.Aux.Display {
		if err := aux.Set(true); err != nil {
			return fmt.Errorf("power display: %w", err)
		}
	}
	// Without an exit record the panel may hold a stale image from before
	// the power loss.
	rec, ok := region.LoadExit()
	wipe := !ok || rec.Reason == state.ExitNone
	panel, err := display.NewEPaper(cfg.SPIPort, wipe, logger)
	if err != nil {
		return fmt.Errorf("init display: %w", err)
	}
	defer panel.Close()

	var gauge battery.Gauge
	adc, err := battery.NewADS1115(battery.ADS1115Config{
		Bus:     cfg.I2CBus,
		Address: cfg.ADCAddress,
		Channel: cfg.ADCChannel,
		Samples: cfg.Oversample,
		Factor:  cfg.ADCFactor,
	})
	if err != nil {
		logger.Warn("battery:unavailable", slog.String("err", err.Error()))
	} else {
		gauge = adc
		defer adc.Close()
	}

	clock := timesync.NewNTPClient(logger)
	if !setClock {
		clock.SetClock = nil
	}

	var reports mqtt.Publisher = mqtt.Nop{}
	if cfg.Telemetry {
		p := mqtt.NewRealPublisher(cfg.Broker, fmt.Sprintf("%s-%d", mqtt.TopicPrefix, os.Getpid()), cfg.ReportTimeout)
		defer p.Close()
		reports = p
	}

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		logger.Info("boot:network",
			slog.String("type", net.Type),
			slog.String("ip", net.IP),
			slog.String("status", net.Status),
			slog.String("ssid", net.SSID))
	}

	var serve func(context.Context, *status.Tracker) error
	if cfg.HTTPAddr != "" {
		serve = func(ctx context.Context, tr *status.Tracker) error {
			logger.Info("http:listening", slog.String("addr", cfg.HTTPAddr))
			return web.New(cfg.HTTPAddr, tr).Run(ctx)
		}
	}

	ctrl := &boot.Controller{
		Config:  cfg,
		Store:   state.NewStore(region, state.NewFileStore(cfg.ColdPath)),
		Exits:   region,
		Buttons: buttons,
		Aux:     aux,
		LED:     led,
		Gauge:   gauge,
		Sync:    clock,
		Display: panel,
		Platform: power.NewHost(power.HostConfig{
			Exits:  region,
			Pins:   buttons,
			Method: cfg.Method(),
			Logger: logger,
		}),
		Reports: reports,
		Tracker: tracker,
		Serve:   serve,
		Logger:  logger,
	}
	return ctrl.Run(ctx)
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		FullRefreshEvery: cfg.FullRefreshEvery,
		BatteryEvery:     cfg.BatteryEvery,
		ResyncEvery:      cfg.ResyncEvery,
		Refresh:          cfg.Policy().String(),
		SleepMethod:      cfg.SleepMethod,
		Broker:           cfg.Broker,
		HTTPAddr:         cfg.HTTPAddr,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType     = "NETWORK_TYPE"
	envNetworkIP       = "NETWORK_IP"
	envNetworkStatus   = "NETWORK_STATUS"
	envNetworkWifiSSID = "NETWORK_WIFI_SSID"
)

// networkInfo is the connectivity reported by pi-helper.
type networkInfo struct {
	Type   string
	IP     string
	Status string
	SSID   string
}

func readNetworkInfo() *networkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &networkInfo{
		Type:   os.Getenv(envNetworkType),
		IP:     os.Getenv(envNetworkIP),
		Status: s,
		SSID:   os.Getenv(envNetworkWifiSSID),
	}
}
