package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/sweeney/epaper-clock/internal/logic"
	"github.com/sweeney/epaper-clock/internal/power"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	s := c.Scheduler()
	if s.FullRefreshEvery != 5 || s.WakeMargin != 100*time.Millisecond || s.OmitSleep != time.Second {
		t.Errorf("unexpected scheduler %+v", s)
	}
	if s.Policy != logic.PolicyTransitions {
		t.Errorf("expected transitions policy, got %s", s.Policy)
	}
	if c.Method() != power.MethodIdle {
		t.Errorf("expected idle sleep, got %s", c.Method())
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"zero full refresh", func(c *Config) { c.FullRefreshEvery = 0 }, "full-refresh-every"},
		{"zero battery", func(c *Config) { c.BatteryEvery = 0 }, "battery-every"},
		{"zero resync", func(c *Config) { c.ResyncEvery = 0 }, "resync-every"},
		{"hour out of range", func(c *Config) { c.ResyncHours = []int{24} }, "resync-at"},
		{"margin a minute", func(c *Config) { c.SleepMargin = time.Minute }, "sleep-margin"},
		{"unknown refresh", func(c *Config) { c.Refresh = "sometimes" }, "refresh policy"},
		{"unknown sleep", func(c *Config) { c.SleepMethod = "hibernate" }, "sleep method"},
		{"unknown timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"no servers", func(c *Config) { c.NTPServers = nil }, "ntp server"},
		{"negative sync timeout", func(c *Config) { c.SyncTimeout = -time.Second }, "sync-timeout"},
		{"telemetry without broker", func(c *Config) { c.Broker = "" }, "broker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestBindFlags(t *testing.T) {
	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.BindFlags(fs)

	err := fs.Parse([]string{
		"--full-refresh-every=10",
		"--resync-at=3,15",
		"--refresh=always",
		"--sync-timeout=2m",
		"--aux-display",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.FullRefreshEvery != 10 {
		t.Errorf("expected 10, got %d", c.FullRefreshEvery)
	}
	if len(c.ResyncHours) != 2 || c.ResyncHours[0] != 3 || c.ResyncHours[1] != 15 {
		t.Errorf("unexpected resync hours %v", c.ResyncHours)
	}
	if c.SyncTimeout != 2*time.Minute {
		t.Errorf("expected 2m sync timeout, got %v", c.SyncTimeout)
	}
	// The aux-powered display overrides the preference.
	if c.Policy() != logic.PolicyNever {
		t.Errorf("expected never with the display on the aux rail, got %s", c.Policy())
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "hunter2")
	c := Default()
	c.LoadEnv()
	if c.Password != "hunter2" {
		t.Errorf("expected password from environment, got %q", c.Password)
	}
}

func TestLocation(t *testing.T) {
	c := Default()
	if got := c.Location().String(); got != DefaultTimezone {
		t.Errorf("expected %s, got %s", DefaultTimezone, got)
	}
	c.Timezone = "Nowhere/Void"
	if c.Location() != time.UTC {
		t.Error("expected UTC fallback")
	}
}
