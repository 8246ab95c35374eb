package battery

import (
	"fmt"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// ADS1115Config selects the ADC and channel the divider is wired to.
type ADS1115Config struct {
	Bus     string // i2creg name, empty for the first bus
	Address uint16
	Channel int // 0-3, single ended
	Samples int
	Factor  float64
}

type adcPin struct {
	pin analog.PinADC
}

func (p adcPin) ReadMillivolts() (float64, error) {
	s, err := p.pin.Read()
	if err != nil {
		return 0, err
	}
	return float64(s.V) / float64(physic.MilliVolt), nil
}

var channels = [...]ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

// NewADS1115 opens an ADS1115 on an I²C bus. periph's host.Init must have
// run first.
func NewADS1115(cfg ADS1115Config) (*Oversampled, error) {
	if cfg.Channel < 0 || cfg.Channel >= len(channels) {
		return nil, fmt.Errorf("ads1115: channel %d out of range", cfg.Channel)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	pin, err := openPin(bus, cfg)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return &Oversampled{
		Reader:  adcPin{pin: pin},
		Samples: cfg.Samples,
		Factor:  cfg.Factor,
		closer: func() error {
			herr := pin.Halt()
			if err := bus.Close(); err != nil {
				return fmt.Errorf("close i2c bus: %w", err)
			}
			return herr
		},
	}, nil
}

func openPin(bus i2c.Bus, cfg ADS1115Config) (ads1x15.PinADC, error) {
	opts := ads1x15.DefaultOpts
	if cfg.Address != 0 {
		opts.I2cAddress = cfg.Address
	}
	adc, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("open ads1115: %w", err)
	}
	// The divider keeps the pin below 2.1V; the 4.096V range is the
	// smallest that covers it.
	pin, err := adc.PinForChannel(channels[cfg.Channel], 4096*physic.MilliVolt, 128*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		return nil, fmt.Errorf("configure ads1115 channel %d: %w", cfg.Channel, err)
	}
	return pin, nil
}
