package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/sweeney/epaper-clock/internal/config"
)

// promptPassword asks for the Wi-Fi password when an SSID is configured,
// the environment did not provide one, and stdin is a terminal. A boot
// started by the service manager never prompts.
func promptPassword(cfg *config.Config, stdin *os.File, prompt io.Writer) error {
	if cfg.SSID == "" || cfg.Password != "" {
		return nil
	}
	fd := int(stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	fmt.Fprintf(prompt, "Password for %s: ", cfg.SSID)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	cfg.Password = string(pw)
	return nil
}
