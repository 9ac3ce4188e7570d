package enocean

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// isFrameError reports whether a read error is per-frame corruption
// (recoverable by resyncing) rather than a broken stream.
func isFrameError(err error) bool {
	return errors.Is(err, ErrInvalidFrame)
}

// Transport defaults.
const (
	// defaultConnectTimeout is the maximum time to wait for the initial
	// connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultReconnectInterval is the initial delay between reconnection
	// attempts.
	defaultReconnectInterval = 5 * time.Second

	// maxReconnectInterval caps exponential backoff.
	maxReconnectInterval = 2 * time.Minute

	// backoffMultiplier grows the reconnect delay after each failure.
	backoffMultiplier = 1.5

	// outageLogInterval rate-limits warning logs during a persistent
	// outage so a dead link does not flood the log.
	outageLogInterval = 1 * time.Minute
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Logger is the logging interface used throughout the package.
// Satisfied by the infrastructure logging wrapper and by slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// StatusEvent is a transport-level link event. The gateway maps these onto
// its ConnectionState machine.
type StatusEvent int

const (
	// EventConnected fires when the link is established, both on first
	// connect and after a successful reconnect.
	EventConnected StatusEvent = iota

	// EventDisconnected fires when the link fails mid-stream.
	EventDisconnected

	// EventReconnecting fires before each reconnection attempt.
	EventReconnecting
)

// Dialer opens the physical link. Implementations exist for serial
// transceivers and TCP (LAN) gateways.
type Dialer interface {
	Dial(ctx context.Context) (io.ReadWriteCloser, error)

	// String describes the endpoint for logs ("serial:/dev/ttyUSB0",
	// "tcp:10.0.0.5:5100").
	String() string
}

// ReconnectPolicy governs what the transport does when the link fails.
type ReconnectPolicy struct {
	// Enabled turns automatic reconnection on. When false, a failed link
	// stays down until Connect is called again.
	Enabled bool

	// Interval is the initial delay between attempts.
	// Default: 5 seconds.
	Interval time.Duration

	// Fixed disables exponential backoff and retries at Interval forever.
	Fixed bool
}

// TransportStats holds link statistics.
type TransportStats struct {
	FramesTx        uint64
	FramesRx        uint64
	FramesDropped   uint64 // frames that failed ESP2 validation
	ErrorsTotal     uint64
	ReconnectsTotal uint64
	Connected       bool
}

// Transport owns one physical or virtual link to a transceiver. It runs a
// single read loop producing ESP2 frames, reconnects according to policy
// when the stream breaks, and surfaces every link transition through the
// status callback.
//
// Thread safety: all methods are safe for concurrent use. The frame
// callback is invoked from the read loop goroutine and must not block.
type Transport struct {
	dialer    Dialer
	reconnect ReconnectPolicy

	connMu    sync.RWMutex
	conn      io.ReadWriteCloser
	connected bool

	writeMu sync.Mutex

	onFrame    func(Frame)
	onStatus   func(StatusEvent, error)
	callbackMu sync.RWMutex

	done *closeOnce
	wg   sync.WaitGroup

	logger   Logger
	lastWarn time.Time

	framesTx        atomic.Uint64
	framesRx        atomic.Uint64
	framesDropped   atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
}

// NewTransport creates a transport over the given dialer.
// Call Connect to establish the link.
func NewTransport(dialer Dialer, policy ReconnectPolicy, logger Logger) *Transport {
	if policy.Interval <= 0 {
		policy.Interval = defaultReconnectInterval
	}
	return &Transport{
		dialer:    dialer,
		reconnect: policy,
		done:      newCloseOnce(),
		logger:    logger,
	}
}

// SetOnFrame sets the callback invoked for every valid received frame.
// Must be set before Connect.
func (t *Transport) SetOnFrame(fn func(Frame)) {
	t.callbackMu.Lock()
	t.onFrame = fn
	t.callbackMu.Unlock()
}

// SetOnStatus sets the callback invoked on link transitions.
// Must be set before Connect.
func (t *Transport) SetOnStatus(fn func(StatusEvent, error)) {
	t.callbackMu.Lock()
	t.onStatus = fn
	t.callbackMu.Unlock()
}

// Connect establishes the link and starts the read loop.
//
// On initial dial failure the behaviour follows the reconnect policy:
// with reconnection enabled the transport keeps retrying in the
// background and Connect returns nil (the link is pending, observable via
// status events); with reconnection disabled the error is returned and
// the transport stays down.
func (t *Transport) Connect(ctx context.Context) error {
	conn, err := t.dial(ctx)
	if err != nil {
		if !t.reconnect.Enabled {
			return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, t.dialer, err)
		}
		t.logWarn("initial connect failed, retrying in background", "endpoint", t.dialer.String(), "error", err)
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			if t.reconnectLoop() {
				t.readLoop()
			}
		}()
		return nil
	}

	t.setConn(conn)
	t.emitStatus(EventConnected, nil)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.readLoop()
	}()
	return nil
}

// Send writes one frame to the link.
// Returns ErrNotConnected when the link is down and ErrWriteFailed when
// the write itself fails.
func (t *Transport) Send(ctx context.Context, f Frame) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrWriteFailed, ctx.Err())
	case <-t.done.Done():
		return ErrGatewayClosed
	default:
	}

	t.connMu.RLock()
	conn := t.conn
	connected := t.connected
	t.connMu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	_, err := conn.Write(f.Encode())
	t.writeMu.Unlock()

	if err != nil {
		t.errorsTotal.Add(1)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	t.framesTx.Add(1)
	return nil
}

// IsConnected reports whether the link is currently up.
func (t *Transport) IsConnected() bool {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.connected
}

// Stats returns current link statistics.
func (t *Transport) Stats() TransportStats {
	return TransportStats{
		FramesTx:        t.framesTx.Load(),
		FramesRx:        t.framesRx.Load(),
		FramesDropped:   t.framesDropped.Load(),
		ErrorsTotal:     t.errorsTotal.Load(),
		ReconnectsTotal: t.reconnectsTotal.Load(),
		Connected:       t.IsConnected(),
	}
}

// Close shuts the transport down: stops the read loop and any pending
// reconnect wait, then releases the link. Safe to call multiple times.
func (t *Transport) Close() error {
	t.done.Close()

	t.connMu.Lock()
	t.connected = false
	conn := t.conn
	t.conn = nil
	t.connMu.Unlock()

	if conn != nil {
		conn.Close()
	}

	t.wg.Wait()
	return nil
}

// dial opens the link with the connect timeout applied.
func (t *Transport) dial(ctx context.Context) (io.ReadWriteCloser, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	dialCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	return t.dialer.Dial(dialCtx)
}

func (t *Transport) setConn(conn io.ReadWriteCloser) {
	t.connMu.Lock()
	t.conn = conn
	t.connected = true
	t.connMu.Unlock()
}

// readLoop consumes the link until shutdown, reconnecting on stream errors
// according to policy.
func (t *Transport) readLoop() {
	for {
		t.connMu.RLock()
		conn := t.conn
		t.connMu.RUnlock()
		if conn == nil {
			return
		}

		reader := NewFrameReader(conn)
		if !t.consumeFrames(reader) {
			return // shutdown
		}

		// Stream broke. Reconnect or stop per policy.
		if t.isClosed() {
			return
		}
		t.emitStatus(EventDisconnected, nil)
		if !t.reconnect.Enabled {
			t.logWarn("link lost, auto-reconnect disabled", "endpoint", t.dialer.String())
			return
		}
		if !t.reconnectLoop() {
			return // shutdown during reconnection
		}
	}
}

// consumeFrames reads frames until the stream errors.
// Returns false on shutdown, true when the caller should reconnect.
func (t *Transport) consumeFrames(reader *FrameReader) bool {
	for {
		frame, err := reader.Read()
		if err != nil {
			if t.isClosed() {
				return false
			}
			if isFrameError(err) {
				// Noise or corruption inside the stream: drop and resync.
				t.framesDropped.Add(1)
				t.errorsTotal.Add(1)
				t.logDebug("dropped invalid frame", "error", err)
				continue
			}
			t.errorsTotal.Add(1)
			t.logOutage("read failed", err)
			t.markDisconnected()
			return true
		}

		t.framesRx.Add(1)
		t.callbackMu.RLock()
		onFrame := t.onFrame
		t.callbackMu.RUnlock()
		if onFrame != nil {
			onFrame(frame)
		}
	}
}

// reconnectLoop retries the dial until it succeeds or the transport is
// closed. Returns true on success, false on shutdown.
func (t *Transport) reconnectLoop() bool {
	backoff := t.reconnect.Interval

	for attempt := 1; ; attempt++ {
		if t.isClosed() {
			return false
		}

		t.emitStatus(EventReconnecting, nil)
		t.logInfo("attempting reconnection", "endpoint", t.dialer.String(), "attempt", attempt, "backoff", backoff.String())

		conn, err := t.dial(context.Background())
		if err == nil {
			t.setConn(conn)
			t.reconnectsTotal.Add(1)
			t.lastWarn = time.Time{}
			t.emitStatus(EventConnected, nil)
			t.logInfo("reconnection successful", "endpoint", t.dialer.String(), "total_reconnects", t.reconnectsTotal.Load())
			return true
		}

		t.errorsTotal.Add(1)
		t.logOutage("reconnect failed", err)

		select {
		case <-t.done.Done():
			return false
		case <-time.After(backoff):
		}

		if !t.reconnect.Fixed {
			backoff = time.Duration(float64(backoff) * backoffMultiplier)
			if backoff > maxReconnectInterval {
				backoff = maxReconnectInterval
			}
		}
	}
}

func (t *Transport) markDisconnected() {
	t.connMu.Lock()
	wasConnected := t.connected
	t.connected = false
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.connMu.Unlock()

	if wasConnected {
		t.logInfo("link lost", "endpoint", t.dialer.String())
	}
}

func (t *Transport) emitStatus(ev StatusEvent, err error) {
	t.callbackMu.RLock()
	onStatus := t.onStatus
	t.callbackMu.RUnlock()
	if onStatus != nil {
		onStatus(ev, err)
	}
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.done.Done():
		return true
	default:
		return false
	}
}

// logOutage logs a warning at most once per outageLogInterval, so a
// persistent outage produces a heartbeat rather than a flood.
func (t *Transport) logOutage(msg string, err error) {
	now := time.Now()
	if now.Sub(t.lastWarn) < outageLogInterval {
		t.logDebug(msg, "endpoint", t.dialer.String(), "error", err)
		return
	}
	t.lastWarn = now
	t.logWarn(msg, "endpoint", t.dialer.String(), "error", err)
}

func (t *Transport) logDebug(msg string, keysAndValues ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, keysAndValues...)
	}
}

func (t *Transport) logInfo(msg string, keysAndValues ...any) {
	if t.logger != nil {
		t.logger.Info(msg, keysAndValues...)
	}
}

func (t *Transport) logWarn(msg string, keysAndValues ...any) {
	if t.logger != nil {
		t.logger.Warn(msg, keysAndValues...)
	}
}
