package timesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/ntp"
)

// Defaults for NTPClient.
const (
	DefaultQueryTimeout = 5 * time.Second
	DefaultRetryDelay   = 2 * time.Second
)

// NTPClient queries SNTP servers until one answers with a valid response,
// then steps the system clock.
type NTPClient struct {
	QueryTimeout time.Duration
	RetryDelay   time.Duration
	// SetClock steps the system clock. Nil leaves the clock alone and only
	// reports the offset.
	SetClock func(time.Time) error
	Logger   *slog.Logger

	query func(server string, opts ntp.QueryOptions) (*ntp.Response, error)

	mu     sync.Mutex
	result Result
	cancel context.CancelFunc
	done   chan struct{}
}

// NewNTPClient creates a client that sets the system clock.
func NewNTPClient(logger *slog.Logger) *NTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NTPClient{
		QueryTimeout: DefaultQueryTimeout,
		RetryDelay:   DefaultRetryDelay,
		SetClock:     SetSystemClock,
		Logger:       logger,
	}
}

// Begin implements Client.
func (c *NTPClient) Begin(ctx context.Context, req Request) error {
	if len(req.Servers) == 0 {
		return errors.New("begin sync: no servers")
	}
	c.End()

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.result = Result{Status: Pending}
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	if c.Logger != nil {
		c.Logger.Debug("sync:begin", slog.Any("servers", req.Servers), slog.String("ssid", req.SSID))
	}
	go c.run(ctx, req.Servers, done)
	return nil
}

func (c *NTPClient) run(ctx context.Context, servers []string, done chan struct{}) {
	defer close(done)
	query := c.query
	if query == nil {
		query = ntp.QueryWithOptions
	}
	timeout := c.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	for attempt := 0; ; attempt++ {
		server := servers[attempt%len(servers)]
		resp, err := query(server, ntp.QueryOptions{Timeout: timeout})
		if err == nil {
			err = resp.Validate()
		}
		if err == nil {
			c.finish(server, resp)
			return
		}
		if c.Logger != nil {
			c.Logger.Debug("sync:retry", slog.String("server", server), slog.Int("attempt", attempt), slog.String("err", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.RetryDelay):
		}
	}
}

func (c *NTPClient) finish(server string, resp *ntp.Response) {
	now := time.Now().Add(resp.ClockOffset)
	res := Result{Status: Synced, Time: now, Offset: resp.ClockOffset, Server: server}
	if c.SetClock != nil {
		if err := c.SetClock(now); err != nil {
			res = Result{Status: Failed, Server: server, Err: fmt.Errorf("set clock: %w", err)}
		}
	}
	c.mu.Lock()
	c.result = res
	c.mu.Unlock()
}

// Poll implements Client.
func (c *NTPClient) Poll() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// End implements Client.
func (c *NTPClient) End() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
