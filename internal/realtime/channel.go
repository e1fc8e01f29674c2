package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
)

type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
	// StateExhausted means the attempt budget ran out and no reconnect is pending.
	StateExhausted State = "exhausted"
)

type Logger interface {
	Debug(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
}

// Dialer opens websocket connections; *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type Endpoint struct {
	URL     string
	Timeout time.Duration
}

type Options struct {
	Endpoints    []Endpoint
	Streams      []string
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	PingInterval time.Duration
	ReadTimeout  time.Duration
}

func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		{URL: "wss://s2.ripple.com/", Timeout: 5 * time.Second},
		{URL: "wss://s1.ripple.com/", Timeout: 5 * time.Second},
		{URL: "wss://xrplcluster.com/", Timeout: 8 * time.Second},
		{URL: "wss://xrpl.ws/", Timeout: 8 * time.Second},
	}
}

func DefaultOptions() Options {
	return Options{
		Endpoints:    DefaultEndpoints(),
		Streams:      []string{"ledger", "server", "consensus", "peer_status", "validations"},
		BaseDelay:    2 * time.Second,
		MaxDelay:     30 * time.Second,
		MaxAttempts:  5,
		PingInterval: 10 * time.Second,
		ReadTimeout:  60 * time.Second,
	}
}

type command struct {
	Command string   `json:"command"`
	Streams []string `json:"streams,omitempty"`
}

// Channel keeps one live subscription to the ledger stream, rotating through
// its endpoints with capped exponential backoff. The attempt counter resets
// on every successful open; after MaxAttempts consecutive failures the
// channel stops in StateExhausted.
type Channel struct {
	opts   Options
	dialer Dialer
	logger Logger

	mu          sync.Mutex
	handler     EventHandler
	state       State
	endpointIdx int
	attempts    int
	cancel      context.CancelFunc
	conn        *websocket.Conn

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func NewChannel(opts Options, dialer Dialer, logger Logger) *Channel {
	def := DefaultOptions()
	if len(opts.Endpoints) == 0 {
		opts.Endpoints = def.Endpoints
	}
	if len(opts.Streams) == 0 {
		opts.Streams = def.Streams
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = def.BaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = def.MaxDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = def.PingInterval
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = def.ReadTimeout
	}
	for i := range opts.Endpoints {
		if opts.Endpoints[i].Timeout <= 0 {
			opts.Endpoints[i].Timeout = 5 * time.Second
		}
	}
	if dialer == nil {
		dialer = &websocket.Dialer{Proxy: http.ProxyFromEnvironment}
	}

	return &Channel{
		opts:   opts,
		dialer: dialer,
		logger: logger,
		state:  StateIdle,
	}
}

// Subscribe registers the single event handler, replacing any previous one.
func (c *Channel) Subscribe(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Connect starts the connection loop. It is a no-op while a loop is running;
// after exhaustion it starts over with a fresh attempt budget.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		if c.state != StateExhausted {
			return
		}
		c.cancel()
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.attempts = 0
	c.state = StateConnecting
	c.wg.Add(1)
	go c.runLoop(ctx)
}

// Disconnect stops the loop, cancels pending backoff and ping timers and
// closes the live socket. Safe to call repeatedly or before Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.closeConn()
	c.wg.Wait()

	c.mu.Lock()
	if c.state != StateIdle {
		c.state = StateClosed
	}
	c.mu.Unlock()
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Endpoint returns the URL the next or current attempt targets.
func (c *Channel) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.Endpoints[c.endpointIdx].URL
}

func (c *Channel) runLoop(ctx context.Context) {
	defer c.wg.Done()

	b := &backoff.Backoff{
		Min:    c.opts.BaseDelay,
		Max:    c.opts.MaxDelay,
		Factor: 2,
	}

	for {
		if ctx.Err() != nil {
			return
		}

		ep := c.currentEndpoint()
		c.setState(StateConnecting)

		err := c.session(ctx, ep)
		if ctx.Err() != nil {
			return
		}

		attempts := c.recordFailure()
		c.logger.Error("realtime connection lost", "endpoint", ep.URL, "attempt", attempts, "error", err)

		if attempts >= c.opts.MaxAttempts {
			c.setState(StateExhausted)
			c.logger.Error("realtime reconnect attempts exhausted", "attempts", attempts)
			return
		}
		c.setState(StateClosed)

		// base * 2^attempts, capped
		timer := time.NewTimer(b.ForAttempt(float64(attempts)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session dials ep and serves it until the connection fails.
func (c *Channel) session(ctx context.Context, ep Endpoint) error {
	dialCtx, cancel := context.WithTimeout(ctx, ep.Timeout)
	conn, _, err := c.dialer.DialContext(dialCtx, ep.URL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", ep.URL, err)
	}
	if conn == nil {
		return errors.New("dialer returned no connection")
	}

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		return ctx.Err()
	}
	c.conn = conn
	c.mu.Unlock()

	if err := c.write(conn, command{Command: "subscribe", Streams: c.opts.Streams}); err != nil {
		c.closeConn()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.mu.Lock()
	c.attempts = 0
	c.state = StateOpen
	c.mu.Unlock()
	c.logger.Info("realtime connected", "endpoint", ep.URL)

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	c.wg.Add(1)
	go c.pingLoop(pingCtx, conn)

	for {
		conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.closeConn()
			return err
		}
		c.dispatch(msg)
	}
}

func (c *Channel) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(conn, command{Command: "ping"}); err != nil {
				c.logger.Error("realtime ping failed", "error", err)
				// unblocks the reader of this connection only
				conn.Close()
				return
			}
		}
	}
}

func (c *Channel) dispatch(msg []byte) {
	event, err := parseEvent(msg, time.Now())
	if err != nil {
		if errors.Is(err, errUnknownEvent) {
			c.logger.Debug("dropping realtime frame", "reason", err)
		} else {
			c.logger.Error("dropping realtime frame", "error", err)
		}
		return
	}

	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler != nil {
		handler(event)
	}
}

func (c *Channel) write(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.opts.ReadTimeout))
	return conn.WriteJSON(v)
}

func (c *Channel) currentEndpoint() Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts.Endpoints[c.endpointIdx]
}

// recordFailure advances the endpoint rotation and returns the new attempt count.
func (c *Channel) recordFailure() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	c.endpointIdx = (c.endpointIdx + 1) % len(c.opts.Endpoints)
	return c.attempts
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Channel) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
