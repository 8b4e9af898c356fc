package feed

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/navigator"
)

const (
	// DefaultPingInterval keeps idle connections open through proxies.
	DefaultPingInterval = 30 * time.Second

	writeWait = 10 * time.Second
)

// WebSocketConfig holds configuration for a WebSocket source.
type WebSocketConfig struct {
	// URL is the ws:// or wss:// endpoint streaming positions.
	URL string

	// Header is sent with the handshake.
	Header http.Header

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// PingInterval defaults to DefaultPingInterval.
	PingInterval time.Duration

	Logger zerolog.Logger
}

// WebSocket is a navigator.PositionSource reading one position per text
// message. Messages are either JSON objects {"lat":..,"lng":..} or "lat,lng".
type WebSocket struct {
	url          string
	header       http.Header
	dialer       *websocket.Dialer
	pingInterval time.Duration
	logger       zerolog.Logger
}

// NewWebSocket creates a WebSocket source.
func NewWebSocket(cfg WebSocketConfig) *WebSocket {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ping := cfg.PingInterval
	if ping == 0 {
		ping = DefaultPingInterval
	}
	return &WebSocket{
		url:          cfg.URL,
		header:       cfg.Header,
		dialer:       dialer,
		pingInterval: ping,
		logger:       cfg.Logger,
	}
}

// Watch dials the endpoint and delivers positions until stop is called, the
// context ends, or the connection drops. A dropped connection is reported
// through onError once.
func (w *WebSocket) Watch(ctx context.Context, opts navigator.WatchOptions, onFix func(navigator.Fix), onError func(error)) (func(), error) {
	dialCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, resp, err := w.dialer.DialContext(dialCtx, w.url, w.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", w.url, err)
	}

	w.logger.Info().Str("url", w.url).Msg("position feed connected")

	var (
		once    sync.Once
		writeMu sync.Mutex
		done    = make(chan struct{})
		readEnd = make(chan struct{})
	)
	stop := func() {
		once.Do(func() {
			close(done)
			writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			writeMu.Unlock()
			conn.Close()
			<-readEnd
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-done:
		}
	}()

	go func() {
		ticker := time.NewTicker(w.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	go func() {
		defer close(readEnd)
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-done:
				default:
					w.logger.Warn().Err(err).Msg("position feed closed")
					onError(fmt.Errorf("position feed: %w", err))
				}
				return
			}
			if kind != websocket.TextMessage {
				continue
			}

			fix, err := decodeFix(data)
			if err != nil {
				w.logger.Warn().Err(err).Msg("skipping malformed position")
				continue
			}
			onFix(fix)
		}
	}()

	return stop, nil
}
