package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/epaper-clock/internal/status"
)

// RealPublisher publishes to an actual MQTT broker. It connects on the first
// Publish, so boots that never report never touch the network.
type RealPublisher struct {
	opts    *paho.ClientOptions
	timeout time.Duration

	mu     sync.Mutex
	client paho.Client
}

// NewRealPublisher creates a publisher for the given broker. Each network
// wait is bounded by timeout.
func NewRealPublisher(broker, clientID string, timeout time.Duration) *RealPublisher {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(false).
		SetConnectTimeout(timeout)
	return &RealPublisher{opts: opts, timeout: timeout}
}

func (p *RealPublisher) connect() (paho.Client, error) {
	if p.client != nil && p.client.IsConnected() {
		return p.client, nil
	}
	client := paho.NewClient(p.opts)
	token := client.Connect()
	if !token.WaitTimeout(p.timeout) {
		return nil, errors.New("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	p.client = client
	return client, nil
}

// Publish sends the report to the device's report topic.
func (p *RealPublisher) Publish(snap status.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	client, err := p.connect()
	if err != nil {
		return err
	}

	// QoS 1 (at-least-once), not retained
	token := client.Publish(ReportTopic(snap.DeviceID), 1, false, status.FormatReport(snap))
	if !token.WaitTimeout(p.timeout) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker if connected.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Disconnect(250)
		p.client = nil
	}
	return nil
}
