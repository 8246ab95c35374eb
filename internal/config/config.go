// Package config holds the clock settings, their defaults and their flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/sweeney/epaper-clock/internal/gpio"
	"github.com/sweeney/epaper-clock/internal/logic"
	"github.com/sweeney/epaper-clock/internal/power"
)

// Defaults for operational configuration.
const (
	DefaultFullRefreshEvery = 5
	DefaultBatteryEvery     = 30
	DefaultResyncEvery      = 240
	DefaultLoopTick         = 20 * time.Millisecond
	DefaultTimezone         = "Europe/Budapest"
	DefaultADCFactor        = 2
	DefaultOversample       = 16
	DefaultFullTolerance    = 50
	DefaultCritical         = 3500
	DefaultOmitSleep        = time.Second
	DefaultSleepMargin      = 100 * time.Millisecond
	DefaultMaxSeconds       = 10
	DefaultBroker           = "tcp://192.168.1.200:1883"
	DefaultReportTimeout    = 5 * time.Second
	DefaultWarmPath         = "/run/epaper-clock/warm.bin"
	DefaultColdPath         = "/var/lib/epaper-clock/cold.cbor"
	DefaultHTTPAddr         = ":80"
	DefaultADCAddress       = 0x48

	// PasswordEnv names the environment variable holding the Wi-Fi
	// password. There is deliberately no flag for it.
	PasswordEnv = "EPAPER_CLOCK_WIFI_PASSWORD"
)

// DefaultNTPServers are queried in order.
var DefaultNTPServers = []string{"0.pool.ntp.org", "1.pool.ntp.org"}

// Aux records which peripherals hang off the switched aux rail.
type Aux struct {
	Display bool
	Battery bool
	LED     bool
}

// Config is the complete set of settings for one boot.
type Config struct {
	FullRefreshEvery uint32
	BatteryEvery     uint32
	ResyncEvery      uint32
	ResyncHours      []int
	LoopTick         time.Duration
	OmitSleep        time.Duration
	SleepMargin      time.Duration
	MaxSeconds       int
	Refresh          string

	NTPServers  []string
	SSID        string
	Password    string
	Timezone    string
	SyncTimeout time.Duration

	ADCFactor     float64
	Oversample    int
	FullTolerance uint32
	Critical      uint32

	Aux Aux

	Telemetry     bool
	Broker        string
	ReportTimeout time.Duration
	HTTPAddr      string

	WarmPath    string
	ColdPath    string
	SleepMethod string

	GPIOChip   string
	PinUpdate  int
	PinUser    int
	PinAux     int
	PinLED     int
	SPIPort    string
	I2CBus     string
	ADCAddress uint16
	ADCChannel int
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		FullRefreshEvery: DefaultFullRefreshEvery,
		BatteryEvery:     DefaultBatteryEvery,
		ResyncEvery:      DefaultResyncEvery,
		ResyncHours:      []int{0},
		LoopTick:         DefaultLoopTick,
		OmitSleep:        DefaultOmitSleep,
		SleepMargin:      DefaultSleepMargin,
		MaxSeconds:       DefaultMaxSeconds,
		Refresh:          logic.PolicyTransitions.String(),

		NTPServers: append([]string(nil), DefaultNTPServers...),
		Timezone:   DefaultTimezone,

		ADCFactor:     DefaultADCFactor,
		Oversample:    DefaultOversample,
		FullTolerance: DefaultFullTolerance,
		Critical:      DefaultCritical,

		Aux: Aux{Display: false, Battery: true, LED: true},

		Telemetry:     true,
		Broker:        DefaultBroker,
		ReportTimeout: DefaultReportTimeout,
		HTTPAddr:      DefaultHTTPAddr,

		WarmPath:    DefaultWarmPath,
		ColdPath:    DefaultColdPath,
		SleepMethod: string(power.MethodIdle),

		GPIOChip:   gpio.DefaultChip,
		PinUpdate:  gpio.PinUpdate,
		PinUser:    gpio.PinUser,
		PinAux:     gpio.PinAux,
		PinLED:     gpio.PinLED,
		ADCAddress: DefaultADCAddress,
	}
}

// BindFlags registers the boot settings on fs, with c's values as defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.Uint32Var(&c.FullRefreshEvery, "full-refresh-every", c.FullRefreshEvery, "Force a full display refresh every N boots")
	fs.Uint32Var(&c.BatteryEvery, "battery-every", c.BatteryEvery, "Sample the battery every N boots")
	fs.Uint32Var(&c.ResyncEvery, "resync-every", c.ResyncEvery, "Resync the clock every N boots")
	fs.IntSliceVar(&c.ResyncHours, "resync-at", c.ResyncHours, "Hours of the day that resync at minute 0")
	fs.DurationVar(&c.LoopTick, "loop-tick", c.LoopTick, "Delay between polls in waiting loops")
	fs.DurationVar(&c.OmitSleep, "omit-sleep", c.OmitSleep, "Wait for the next minute when woken this close to it")
	fs.DurationVar(&c.SleepMargin, "sleep-margin", c.SleepMargin, "Wake this long before the minute boundary")
	fs.IntVar(&c.MaxSeconds, "max-seconds", c.MaxSeconds, "Seconds shown by the user button loop")
	fs.StringVar(&c.Refresh, "refresh", c.Refresh, `Partial refresh preference ("never", "transitions", "always")`)

	fs.StringSliceVar(&c.NTPServers, "ntp", c.NTPServers, "SNTP servers")
	fs.StringVar(&c.SSID, "ssid", c.SSID, "Wi-Fi network to sync over (password from "+PasswordEnv+")")
	fs.StringVar(&c.Timezone, "tz", c.Timezone, "IANA time zone shown on the face")
	fs.DurationVar(&c.SyncTimeout, "sync-timeout", c.SyncTimeout, "Give up on time sync after this long (0 waits forever)")

	fs.Float64Var(&c.ADCFactor, "adc-factor", c.ADCFactor, "Battery divider ratio")
	fs.IntVar(&c.Oversample, "oversample", c.Oversample, "ADC readings averaged per battery sample")
	fs.Uint32Var(&c.FullTolerance, "full-tolerance", c.FullTolerance, "Millivolts below a full cell that still read 100%")
	fs.Uint32Var(&c.Critical, "critical", c.Critical, "Shut down at or below this cell voltage (mV)")

	fs.BoolVar(&c.Aux.Display, "aux-display", c.Aux.Display, "Display is powered from the aux rail")
	fs.BoolVar(&c.Aux.Battery, "aux-battery", c.Aux.Battery, "Battery divider is powered from the aux rail")
	fs.BoolVar(&c.Aux.LED, "aux-led", c.Aux.LED, "Update LED is powered from the aux rail")

	fs.BoolVar(&c.Telemetry, "telemetry", c.Telemetry, "Publish a report after each resync")
	fs.StringVar(&c.Broker, "broker", c.Broker, "MQTT broker address")
	fs.DurationVar(&c.ReportTimeout, "report-timeout", c.ReportTimeout, "Bound on publishing a report")
	fs.StringVar(&c.HTTPAddr, "http", c.HTTPAddr, "HTTP status address in update mode (empty to disable)")

	fs.StringVar(&c.WarmPath, "warm", c.WarmPath, "Warm region file (tmpfs)")
	fs.StringVar(&c.ColdPath, "cold", c.ColdPath, "Cold state file")
	fs.StringVar(&c.SleepMethod, "sleep", c.SleepMethod, `Deep sleep method ("idle", "suspend")`)

	fs.StringVar(&c.GPIOChip, "gpio-chip", c.GPIOChip, "GPIO character device")
	fs.IntVar(&c.PinUpdate, "pin-update", c.PinUpdate, "BCM pin number for the update button")
	fs.IntVar(&c.PinUser, "pin-user", c.PinUser, "BCM pin number for the user button")
	fs.IntVar(&c.PinAux, "pin-aux", c.PinAux, "BCM pin number for the aux rail enable")
	fs.IntVar(&c.PinLED, "pin-led", c.PinLED, "BCM pin number for the update LED")
	fs.StringVar(&c.SPIPort, "spi", c.SPIPort, "SPI port of the display (empty for the first)")
	fs.StringVar(&c.I2CBus, "i2c", c.I2CBus, "I2C bus of the battery ADC (empty for the first)")
	fs.Uint16Var(&c.ADCAddress, "adc-address", c.ADCAddress, "I2C address of the battery ADC")
	fs.IntVar(&c.ADCChannel, "adc-channel", c.ADCChannel, "ADC channel wired to the divider")
}

// LoadEnv reads settings that only come from the environment.
func (c *Config) LoadEnv() {
	if pw, ok := os.LookupEnv(PasswordEnv); ok {
		c.Password = pw
	}
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.FullRefreshEvery == 0 {
		errs = append(errs, errors.New("full-refresh-every must be positive"))
	}
	if c.BatteryEvery == 0 {
		errs = append(errs, errors.New("battery-every must be positive"))
	}
	if c.ResyncEvery == 0 {
		errs = append(errs, errors.New("resync-every must be positive"))
	}
	for _, h := range c.ResyncHours {
		if h < 0 || h > 23 {
			errs = append(errs, fmt.Errorf("resync-at hour %d out of range", h))
		}
	}
	if c.LoopTick <= 0 {
		errs = append(errs, errors.New("loop-tick must be positive"))
	}
	if c.SleepMargin < 0 || c.SleepMargin >= time.Minute {
		errs = append(errs, fmt.Errorf("sleep-margin %v must be in [0, 1m)", c.SleepMargin))
	}
	if c.OmitSleep < 0 || c.OmitSleep >= time.Minute {
		errs = append(errs, fmt.Errorf("omit-sleep %v must be in [0, 1m)", c.OmitSleep))
	}
	if c.MaxSeconds < 0 {
		errs = append(errs, errors.New("max-seconds must not be negative"))
	}
	if _, err := logic.ParseRefreshPolicy(c.Refresh); err != nil {
		errs = append(errs, err)
	}
	if _, ok := power.ParseSleepMethod(c.SleepMethod); !ok {
		errs = append(errs, fmt.Errorf("unknown sleep method %q", c.SleepMethod))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if len(c.NTPServers) == 0 {
		errs = append(errs, errors.New("at least one ntp server is required"))
	}
	if c.SyncTimeout < 0 {
		errs = append(errs, errors.New("sync-timeout must not be negative"))
	}
	if c.ADCFactor <= 0 {
		errs = append(errs, errors.New("adc-factor must be positive"))
	}
	if c.Oversample <= 0 {
		errs = append(errs, errors.New("oversample must be positive"))
	}
	if c.Telemetry && c.Broker == "" {
		errs = append(errs, errors.New("broker is required when telemetry is enabled"))
	}
	return errors.Join(errs...)
}

// Policy returns the effective refresh policy. A display on the aux rail
// loses its frame buffer every sleep, so it can never refresh partially.
func (c Config) Policy() logic.RefreshPolicy {
	if c.Aux.Display {
		return logic.PolicyNever
	}
	p, err := logic.ParseRefreshPolicy(c.Refresh)
	if err != nil {
		return logic.PolicyNever
	}
	return p
}

// Scheduler returns the sleep scheduler for these settings.
func (c Config) Scheduler() logic.Scheduler {
	return logic.Scheduler{
		WakeMargin:       c.SleepMargin,
		OmitSleep:        c.OmitSleep,
		FullRefreshEvery: c.FullRefreshEvery,
		Policy:           c.Policy(),
	}
}

// Location loads the configured time zone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Method returns the configured sleep method.
func (c Config) Method() power.SleepMethod {
	m, ok := power.ParseSleepMethod(c.SleepMethod)
	if !ok {
		return power.MethodIdle
	}
	return m
}
