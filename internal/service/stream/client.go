package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/krobus00/dashboard-sync/internal/constant"
	"github.com/krobus00/dashboard-sync/internal/entity"
	"github.com/sirupsen/logrus"
)

const (
	writeWait     = 5 * time.Second
	maxFrameBytes = 1 << 20
)

// Handler receives stream events in arrival order from a single goroutine.
type Handler interface {
	HandleStreamStatus(status entity.ConnectionState)
	HandleCouncilMessage(message entity.CouncilMessage)
	HandleStreamLog(entry entity.LogEntry)
}

// Config zero values fall back to the defaults; a negative PingInterval disables pings.
type Config struct {
	URL              string
	Headers          http.Header
	ReconnectDelay   time.Duration
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
}

// Client is a receive-only websocket consumer of the council feed. It reconnects after a
// fixed delay whenever the socket closes, for whatever reason.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	mu      sync.Mutex
	handler Handler
	cancel  context.CancelFunc
	status  entity.ConnectionState
	wg      sync.WaitGroup
}

func NewClient(cfg Config) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = constant.DefaultReconnectDelay
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = constant.DefaultPingInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		status: entity.ConnectionDisconnected,
	}
}

// Enabled is false when no stream URL is configured; such a client stays disconnected.
func (c *Client) Enabled() bool {
	return c.cfg.URL != ""
}

func (c *Client) Status() entity.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect starts the connection loop in the background. It is a no-op when the client is
// disabled or already connected.
func (c *Client) Connect(ctx context.Context, handler Handler) {
	if !c.Enabled() {
		logrus.Info("council stream url is empty, stream channel disabled")
		return
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.handler = handler
	c.cancel = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(ctx)
}

// Disconnect closes the live socket and cancels any pending reconnection, then waits for the
// connection loop to exit.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	c.wg.Wait()
}

func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()
	defer c.setStatus(entity.ConnectionDisconnected)

	for {
		if ctx.Err() != nil {
			return
		}

		c.setStatus(entity.ConnectionConnecting)
		logrus.Infof("connecting to %s", c.cfg.URL)

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Headers)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.WithField("retry_in", c.cfg.ReconnectDelay.String()).Warnf("council stream dial failed: %v", err)
		} else {
			c.setStatus(entity.ConnectionConnected)
			c.serve(ctx, conn)
			if ctx.Err() != nil {
				return
			}
			logrus.WithField("retry_in", c.cfg.ReconnectDelay.String()).Warn("council stream closed, reconnecting")
		}

		c.setStatus(entity.ConnectionDisconnected)

		timer := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// serve reads frames until the socket fails or ctx is cancelled.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxFrameBytes)

	done := make(chan struct{})
	var sessionWG sync.WaitGroup
	defer func() {
		close(done)
		_ = conn.Close()
		sessionWG.Wait()
	}()

	sessionWG.Add(1)
	go func() {
		defer sessionWG.Done()
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = conn.Close()
		case <-done:
		}
	}()

	if c.cfg.PingInterval > 0 {
		sessionWG.Add(1)
		go func() {
			defer sessionWG.Done()
			ticker := time.NewTicker(c.cfg.PingInterval)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
						logrus.Error(err)
						return
					}
				case <-ctx.Done():
					return
				case <-done:
					return
				}
			}
		}()
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logrus.Errorf("council stream read failed: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	frame, err := ParseFrame(data)
	if err != nil {
		logrus.WithField("frame", truncate(string(data), 256)).Warnf("dropping council frame: %v", err)
		return
	}

	handler := c.currentHandler()
	switch frame.Kind {
	case FrameCouncilMessage, FrameCouncilHistory:
		for _, message := range frame.Messages {
			handler.HandleCouncilMessage(message)
		}
	case FrameLog:
		handler.HandleStreamLog(*frame.Log)
	}
}

func (c *Client) currentHandler() Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler
}

func (c *Client) setStatus(status entity.ConnectionState) {
	c.mu.Lock()
	if c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	handler := c.handler
	c.mu.Unlock()

	if handler != nil {
		handler.HandleStreamStatus(status)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
