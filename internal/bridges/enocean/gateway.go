package enocean

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// defaultMessageDelay is the minimum spacing between outbound telegrams.
// Receivers on the RS485 bus miss telegrams sent back to back.
const defaultMessageDelay = 10 * time.Millisecond

// sendQueueSize bounds the outbound queue. With the default inter-send
// delay this is several seconds of backlog, far beyond any realistic
// command burst.
const sendQueueSize = 256

// Listener is a registered telegram consumer. Obtain one from
// Gateway.Register and release it with Gateway.Unregister.
type Listener struct {
	addr    AddressExpression
	profile Profile
	fn      func(Telegram)
}

// Address returns the address expression the listener was registered with.
func (l *Listener) Address() AddressExpression { return l.addr }

// Profile returns the profile the listener was registered with.
func (l *Listener) Profile() Profile { return l.profile }

// StatusSubscription delivers connection state transitions.
// Cancel with Gateway.UnsubscribeStatus.
type StatusSubscription struct {
	fn func(ConnectionState)
}

// TelegramSubscription delivers every received telegram regardless of
// source. Used for monitoring and diagnostics.
// Cancel with Gateway.UnsubscribeTelegrams.
type TelegramSubscription struct {
	fn func(Telegram)
}

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	// ID uniquely identifies the gateway. Required.
	ID string

	// Name is a human-readable label for logs. Defaults to ID.
	Name string

	// BaseID is the transceiver's own address. Outbound telegrams must
	// use a sender inside BaseID..BaseID+127.
	BaseID DeviceID

	// MessageDelay is the minimum spacing between outbound telegrams.
	// Default: 10ms.
	MessageDelay time.Duration

	// TeachIn enables SendTeachIn. Disabled by default so a misdirected
	// command cannot pair devices by accident.
	TeachIn bool
}

// GatewayStats holds gateway counters.
type GatewayStats struct {
	TelegramsRx uint64
	TelegramsTx uint64
	Listeners   int
	Transport   TransportStats
}

// sendRequest carries one outbound frame through the send queue.
// The sender loop reports the write result on done.
type sendRequest struct {
	frame Frame
	done  chan error
}

// Gateway correlates telegrams on one bus link with registered
// listeners, serialises outbound traffic through a paced queue, and
// tracks the connection state machine.
//
// State machine:
//
//	Disconnected -> Connecting -> Connected
//	Connected    -> Error      (stream failure)
//	Error        -> Connecting (reconnect attempt)
//	any          -> Disconnected (Close)
//
// Each transition is delivered to status subscribers exactly once;
// repeated events that do not change the state are suppressed.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Dispatch snapshots the listener set, so listeners may register or
//     unregister from inside a callback without deadlocking. A listener
//     unregistered during a dispatch cycle may still receive the
//     telegram already in flight.
//   - Listener callbacks run on the read loop goroutine and must not
//     block.
type Gateway struct {
	id      string
	name    string
	baseID  DeviceID
	teachIn bool

	transport *Transport
	logger    Logger

	mu           sync.RWMutex
	listeners    map[*Listener]struct{}
	statusSubs   map[*StatusSubscription]struct{}
	telegramSubs map[*TelegramSubscription]struct{}
	state        ConnectionState

	sendCh       chan sendRequest
	messageDelay time.Duration

	done *closeOnce
	wg   sync.WaitGroup

	// lastMessage is the receive timestamp of the most recent telegram,
	// in Unix nanoseconds. Zero means nothing received yet.
	lastMessage atomic.Int64

	telegramsRx atomic.Uint64
	telegramsTx atomic.Uint64
}

// NewGateway creates a gateway over the given transport.
// Call Start to begin processing.
func NewGateway(opts GatewayOptions, transport *Transport, logger Logger) (*Gateway, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("%w: gateway id is required", ErrInvalidConfig)
	}
	if transport == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrInvalidConfig)
	}
	if opts.Name == "" {
		opts.Name = opts.ID
	}
	if opts.MessageDelay <= 0 {
		opts.MessageDelay = defaultMessageDelay
	}

	return &Gateway{
		id:           opts.ID,
		name:         opts.Name,
		baseID:       opts.BaseID,
		teachIn:      opts.TeachIn,
		transport:    transport,
		logger:       logger,
		listeners:    make(map[*Listener]struct{}),
		statusSubs:   make(map[*StatusSubscription]struct{}),
		telegramSubs: make(map[*TelegramSubscription]struct{}),
		state:        StateDisconnected,
		sendCh:       make(chan sendRequest, sendQueueSize),
		messageDelay: opts.MessageDelay,
		done:         newCloseOnce(),
	}, nil
}

// ID returns the gateway identifier.
func (g *Gateway) ID() string { return g.id }

// Name returns the human-readable gateway name.
func (g *Gateway) Name() string { return g.name }

// BaseID returns the transceiver's own address.
func (g *Gateway) BaseID() DeviceID { return g.baseID }

// Start wires the transport callbacks, starts the sender loop, and
// establishes the link.
//
// With auto-reconnect enabled a failed initial dial is not an error:
// the gateway stays in Connecting and retries in the background.
func (g *Gateway) Start(ctx context.Context) error {
	select {
	case <-g.done.Done():
		return ErrGatewayClosed
	default:
	}

	g.transport.SetOnFrame(g.handleFrame)
	g.transport.SetOnStatus(g.handleTransportEvent)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.senderLoop()
	}()

	g.setState(StateConnecting)
	if err := g.transport.Connect(ctx); err != nil {
		g.setState(StateError)
		return err
	}
	return nil
}

// Close shuts the gateway down: stops the sender loop, releases the
// link, moves the state machine to Disconnected, and clears all
// listeners and subscriptions. Safe to call multiple times.
func (g *Gateway) Close() error {
	g.done.Close()
	err := g.transport.Close()
	g.wg.Wait()

	g.setState(StateDisconnected)

	g.mu.Lock()
	g.listeners = make(map[*Listener]struct{})
	g.statusSubs = make(map[*StatusSubscription]struct{})
	g.telegramSubs = make(map[*TelegramSubscription]struct{})
	g.mu.Unlock()

	return err
}

// State returns the current connection state.
func (g *Gateway) State() ConnectionState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// LastMessageTime returns when the most recent telegram arrived.
// The zero time means nothing has been received yet.
func (g *Gateway) LastMessageTime() time.Time {
	ns := g.lastMessage.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Stats returns current gateway counters.
func (g *Gateway) Stats() GatewayStats {
	g.mu.RLock()
	listeners := len(g.listeners)
	g.mu.RUnlock()

	return GatewayStats{
		TelegramsRx: g.telegramsRx.Load(),
		TelegramsTx: g.telegramsTx.Load(),
		Listeners:   listeners,
		Transport:   g.transport.Stats(),
	}
}

// Register adds a listener for telegrams from the address's device id.
//
// Matching is by device id only: a registration for "FE-DB-0A-1B left"
// receives every telegram from FE-DB-0A-1B, and the callback filters on
// the decoded button side.
//
// The callback runs on the read loop goroutine and must not block.
func (g *Gateway) Register(addr AddressExpression, profile Profile, fn func(Telegram)) (*Listener, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: listener callback is required", ErrInvalidConfig)
	}
	if _, ok := supportedProfiles[profile]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProfile, profile)
	}

	l := &Listener{addr: addr, profile: profile, fn: fn}

	g.mu.Lock()
	g.listeners[l] = struct{}{}
	count := len(g.listeners)
	g.mu.Unlock()

	g.logDebug("listener registered", "address", addr.String(), "eep", profile.String(), "listeners", count)
	return l, nil
}

// Unregister removes a listener. Unknown or already-removed listeners
// are ignored. A dispatch cycle already in flight may still invoke the
// listener one last time.
func (g *Gateway) Unregister(l *Listener) {
	if l == nil {
		return
	}
	g.mu.Lock()
	delete(g.listeners, l)
	g.mu.Unlock()
}

// SubscribeStatus registers a callback for connection state transitions.
// The callback is immediately invoked with the current state so
// subscribers never start with a stale picture.
func (g *Gateway) SubscribeStatus(fn func(ConnectionState)) *StatusSubscription {
	if fn == nil {
		return nil
	}
	sub := &StatusSubscription{fn: fn}

	g.mu.Lock()
	g.statusSubs[sub] = struct{}{}
	current := g.state
	g.mu.Unlock()

	fn(current)
	return sub
}

// UnsubscribeStatus removes a status subscription.
func (g *Gateway) UnsubscribeStatus(sub *StatusSubscription) {
	if sub == nil {
		return
	}
	g.mu.Lock()
	delete(g.statusSubs, sub)
	g.mu.Unlock()
}

// SubscribeTelegrams registers a callback for every received telegram.
func (g *Gateway) SubscribeTelegrams(fn func(Telegram)) *TelegramSubscription {
	if fn == nil {
		return nil
	}
	sub := &TelegramSubscription{fn: fn}

	g.mu.Lock()
	g.telegramSubs[sub] = struct{}{}
	g.mu.Unlock()

	return sub
}

// UnsubscribeTelegrams removes a telegram subscription.
func (g *Gateway) UnsubscribeTelegrams(sub *TelegramSubscription) {
	if sub == nil {
		return
	}
	g.mu.Lock()
	delete(g.telegramSubs, sub)
	g.mu.Unlock()
}

// ValidateSenderID checks that a sender lies inside the transceiver's
// address window. Transceivers silently drop telegrams sent from ids
// outside base..base+127, so this is caught at setup instead.
func (g *Gateway) ValidateSenderID(sender DeviceID) error {
	if !sender.InRangeOf(g.baseID) {
		return fmt.Errorf("%w: %s not in %s+127", ErrSenderOutOfRange, sender, g.baseID)
	}
	return nil
}

// Send queues one telegram for transmission and waits for the write
// result. Queued telegrams go out in order with at least the configured
// message delay between them.
//
// Returns ErrSenderOutOfRange before queuing when the telegram's sender
// is outside the base id window, ErrNotConnected or ErrWriteFailed from
// the transport, and ErrGatewayClosed after Close.
func (g *Gateway) Send(ctx context.Context, t Telegram) error {
	if err := g.ValidateSenderID(t.Source); err != nil {
		return err
	}
	return g.enqueue(ctx, t.Frame())
}

// SendTeachIn transmits the pairing telegram for the given sender.
// Requires teach-in to be enabled in the gateway options.
func (g *Gateway) SendTeachIn(ctx context.Context, sender DeviceID) error {
	if !g.teachIn {
		return fmt.Errorf("%w: gateway %s", ErrTeachInDisabled, g.id)
	}
	if err := g.ValidateSenderID(sender); err != nil {
		return err
	}
	g.logInfo("sending teach-in telegram", "sender", sender.String())
	return g.enqueue(ctx, TeachInTelegram(sender).Frame())
}

func (g *Gateway) enqueue(ctx context.Context, f Frame) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req := sendRequest{frame: f, done: make(chan error, 1)}

	select {
	case <-g.done.Done():
		return ErrGatewayClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrWriteFailed, ctx.Err())
	case g.sendCh <- req:
	}

	select {
	case <-g.done.Done():
		return ErrGatewayClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrWriteFailed, ctx.Err())
	case err := <-req.done:
		return err
	}
}

// senderLoop drains the send queue one frame at a time, pacing writes
// with the message delay. A single writer goroutine guarantees strict
// FIFO ordering.
func (g *Gateway) senderLoop() {
	timer := time.NewTimer(0)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-g.done.Done():
			g.drainSendQueue()
			return
		case req := <-g.sendCh:
			err := g.transport.Send(context.Background(), req.frame)
			if err == nil {
				g.telegramsTx.Add(1)
			}
			req.done <- err

			// Pace the next write. Shutdown cuts the wait short.
			timer.Reset(g.messageDelay)
			select {
			case <-g.done.Done():
				g.drainSendQueue()
				return
			case <-timer.C:
			}
		}
	}
}

// drainSendQueue fails all queued requests so no sender blocks forever
// across shutdown.
func (g *Gateway) drainSendQueue() {
	for {
		select {
		case req := <-g.sendCh:
			req.done <- ErrGatewayClosed
		default:
			return
		}
	}
}

// handleFrame converts a received frame and dispatches it. Runs on the
// transport read loop goroutine.
func (g *Gateway) handleFrame(f Frame) {
	t := TelegramFromFrame(f)
	g.lastMessage.Store(t.Timestamp.UnixNano())
	g.telegramsRx.Add(1)
	g.dispatch(t)
}

// dispatch delivers a telegram to every matching listener and to all
// telegram subscribers. The listener set is snapshotted under the read
// lock first, so callbacks can freely register and unregister.
//
// A panicking listener is isolated: the panic is logged and the
// remaining listeners still receive the telegram.
func (g *Gateway) dispatch(t Telegram) {
	g.mu.RLock()
	matched := make([]*Listener, 0, len(g.listeners))
	for l := range g.listeners {
		if l.addr.MatchesSource(t.Source) {
			matched = append(matched, l)
		}
	}
	subs := make([]*TelegramSubscription, 0, len(g.telegramSubs))
	for s := range g.telegramSubs {
		subs = append(subs, s)
	}
	g.mu.RUnlock()

	for _, sub := range subs {
		g.invokeTelegramSub(sub, t)
	}

	if len(matched) == 0 {
		g.logDebug("unmatched telegram", "source", t.Source.String(), "org", fmt.Sprintf("0x%02X", t.ORG))
		return
	}

	for _, l := range matched {
		g.invokeListener(l, t)
	}
}

func (g *Gateway) invokeListener(l *Listener, t Telegram) {
	defer func() {
		if r := recover(); r != nil {
			g.logError("listener panic recovered", "address", l.addr.String(), "panic", r)
		}
	}()
	l.fn(t)
}

func (g *Gateway) invokeTelegramSub(sub *TelegramSubscription, t Telegram) {
	defer func() {
		if r := recover(); r != nil {
			g.logError("telegram subscriber panic recovered", "panic", r)
		}
	}()
	sub.fn(t)
}

// handleTransportEvent maps link events onto the connection state
// machine. Runs on transport goroutines.
func (g *Gateway) handleTransportEvent(ev StatusEvent, _ error) {
	switch ev {
	case EventConnected:
		g.setState(StateConnected)
	case EventDisconnected:
		g.setState(StateError)
	case EventReconnecting:
		g.setState(StateConnecting)
	}
}

// setState moves the state machine and notifies status subscribers.
// A transition to the current state is a no-op, which is what gives
// subscribers exactly-once delivery per transition even when the
// transport reports the same condition repeatedly.
func (g *Gateway) setState(next ConnectionState) {
	g.mu.Lock()
	if g.state == next {
		g.mu.Unlock()
		return
	}
	prev := g.state
	g.state = next
	subs := make([]*StatusSubscription, 0, len(g.statusSubs))
	for s := range g.statusSubs {
		subs = append(subs, s)
	}
	g.mu.Unlock()

	g.logInfo("connection state changed", "from", prev.String(), "to", next.String())

	for _, sub := range subs {
		g.invokeStatusSub(sub, next)
	}
}

func (g *Gateway) invokeStatusSub(sub *StatusSubscription, state ConnectionState) {
	defer func() {
		if r := recover(); r != nil {
			g.logError("status subscriber panic recovered", "panic", r)
		}
	}()
	sub.fn(state)
}

func (g *Gateway) logDebug(msg string, keysAndValues ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, append([]any{"gateway", g.id}, keysAndValues...)...)
	}
}

func (g *Gateway) logInfo(msg string, keysAndValues ...any) {
	if g.logger != nil {
		g.logger.Info(msg, append([]any{"gateway", g.id}, keysAndValues...)...)
	}
}

func (g *Gateway) logError(msg string, keysAndValues ...any) {
	if g.logger != nil {
		g.logger.Error(msg, append([]any{"gateway", g.id}, keysAndValues...)...)
	}
}
