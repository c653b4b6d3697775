// Package paymentflow models the client-observable payment attempt driven
// by the gateway redirect: interpret redirect parameters, verify credentials
// against the server, and fall back to a countdown/retry loop when the
// gateway has not redirected yet.
package paymentflow

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"
)

// State of one payment attempt. Success and Failed are terminal; a fresh
// attempt (new booking) starts a fresh machine at Idle.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
	StateTimeout    State = "timeout"
)

// ErrorCodeUserCancelled is the reserved code used when the user dismisses
// the payment overlay before any gateway redirect. It funnels through the
// same failure path as a gateway decline.
const ErrorCodeUserCancelled = "USER_CANCELLED"

// Redirect query parameter names supplied by the gateway.
const (
	paramOrderID   = "razorpay_order_id"
	paramPaymentID = "razorpay_payment_id"
	paramSignature = "razorpay_signature"
	paramErrorCode = "error_code"
	paramErrorDesc = "error_description"
	paramFlowType  = "type"
)

// DefaultWindow is the initial countdown before a missing redirect is
// treated as a timeout. Every subsequent timeout extends the next window by
// another DefaultWindow (300s, 600s, 900s, ...).
const DefaultWindow = 300 * time.Second

// RedirectParams are the externally-supplied gateway redirect values.
type RedirectParams struct {
	OrderID          string
	PaymentID        string
	Signature        string
	ErrorCode        string
	ErrorDescription string
	FlowType         string // "experience" or "class"
}

// ParseRedirect extracts RedirectParams from a redirect URL query.
func ParseRedirect(q url.Values) RedirectParams {
	return RedirectParams{
		OrderID:          q.Get(paramOrderID),
		PaymentID:        q.Get(paramPaymentID),
		Signature:        q.Get(paramSignature),
		ErrorCode:        q.Get(paramErrorCode),
		ErrorDescription: q.Get(paramErrorDesc),
		FlowType:         q.Get(paramFlowType),
	}
}

// VerificationResult is what the server returns for a verified payment.
type VerificationResult struct {
	BookingID string
	Status    string
}

// Verifier is the payment-verification contract. Implementations return an
// error both for transport failures and for a server-side {success:false}.
type Verifier interface {
	Verify(ctx context.Context, orderID, paymentID, signature string) (VerificationResult, error)
}

// FailureNotifier is the advisory payment-failure contract. Its errors are
// logged and swallowed, never surfaced to the user.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, orderID, errorCode, errorDescription string) error
}

// StatusChecker polls the server-side booking status. Used on retry so a
// payment that settled while the timer ran is not blindly re-waited.
type StatusChecker interface {
	CheckStatus(ctx context.Context, orderID string) (string, error)
}

// Machine drives one payment attempt. All mutation happens under mu; the
// only background work is the 1-second countdown tick.
type Machine struct {
	verifier Verifier
	notifier FailureNotifier
	checker  StatusChecker

	mu        sync.Mutex
	state     State
	window    time.Duration // window for the current/next countdown
	remaining time.Duration
	orderID   string
	result    VerificationResult
	errCode   string
	errMsg    string

	// last verified pair, so a re-mount with unchanged parameters does not
	// re-fire verification
	verifiedOrderID   string
	verifiedPaymentID string

	// state changes queued under mu, delivered to the listener after the
	// lock is released so listeners may call back into the machine
	pending []State

	ticker   *time.Ticker
	stopTick chan struct{}

	initialWindow time.Duration
	tickInterval  time.Duration
	onChange      func(State)
}

// Option customizes a Machine.
type Option func(*Machine)

// WithWindow overrides the initial countdown window.
func WithWindow(d time.Duration) Option {
	return func(m *Machine) { m.initialWindow = d }
}

// WithTickInterval overrides the countdown tick (tests use this to avoid
// real 1-second waits).
func WithTickInterval(d time.Duration) Option {
	return func(m *Machine) { m.tickInterval = d }
}

// WithStateListener registers a callback invoked after every state change.
// The callback runs outside the machine's lock and may call back into it.
func WithStateListener(fn func(State)) Option {
	return func(m *Machine) { m.onChange = fn }
}

func NewMachine(verifier Verifier, notifier FailureNotifier, checker StatusChecker, opts ...Option) *Machine {
	m := &Machine{
		verifier:      verifier,
		notifier:      notifier,
		checker:       checker,
		state:         StateIdle,
		initialWindow: DefaultWindow,
		tickInterval:  time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.window = m.initialWindow
	return m
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Remaining is the time left on the current countdown.
func (m *Machine) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

// Window is the countdown window the next Processing entry will use.
func (m *Machine) Window() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.window
}

// Result is valid once State() == StateSuccess.
func (m *Machine) Result() VerificationResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

// Error returns the failure code and message once State() == StateFailed.
func (m *Machine) Error() (code, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errCode, m.errMsg
}

// HandleRedirect interprets the gateway redirect in priority order:
// credentials → verification; error code → failure path; nothing →
// countdown. Calling it again with an already-verified (orderID, paymentID)
// pair is a no-op.
func (m *Machine) HandleRedirect(ctx context.Context, p RedirectParams) {
	m.mu.Lock()

	if p.OrderID != "" {
		m.orderID = p.OrderID
	}

	switch {
	case p.PaymentID != "" && p.Signature != "":
		if p.OrderID == m.verifiedOrderID && p.PaymentID == m.verifiedPaymentID {
			m.mu.Unlock()
			return
		}
		m.verifiedOrderID = p.OrderID
		m.verifiedPaymentID = p.PaymentID
		m.setStateLocked(StateProcessing)
		// The redirect has arrived: a still-running countdown must not
		// expire the attempt while verification is in flight.
		m.stopCountdownLocked()
		m.mu.Unlock()
		m.notify()

		m.verify(ctx, p)

	case p.ErrorCode != "":
		m.errCode = p.ErrorCode
		m.errMsg = p.ErrorDescription
		m.setStateLocked(StateFailed)
		m.stopCountdownLocked()
		m.mu.Unlock()
		m.notify()

		// Advisory telemetry only: never block or fail the user on it.
		go func() {
			if m.notifier == nil {
				return
			}
			if err := m.notifier.NotifyFailure(ctx, p.OrderID, p.ErrorCode, p.ErrorDescription); err != nil {
				log.Printf("payment failure notification for order %s dropped: %v", p.OrderID, err)
			}
		}()

	default:
		// Payment still in flight at the gateway: wait for it.
		m.setStateLocked(StateProcessing)
		m.startCountdownLocked()
		m.mu.Unlock()
		m.notify()
	}
}

// Cancel models the user dismissing the payment overlay before a redirect.
func (m *Machine) Cancel(ctx context.Context) {
	m.HandleRedirect(ctx, RedirectParams{
		OrderID:          m.currentOrderID(),
		ErrorCode:        ErrorCodeUserCancelled,
		ErrorDescription: "payment was cancelled by the user",
	})
}

// Retry re-enters Processing from Timeout. The server status is polled
// first so a payment that already settled short-circuits to its terminal
// state instead of restarting a blind timer.
func (m *Machine) Retry(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateTimeout {
		m.mu.Unlock()
		return
	}
	orderID := m.orderID
	m.mu.Unlock()

	if m.checker != nil && orderID != "" {
		status, err := m.checker.CheckStatus(ctx, orderID)
		if err == nil {
			switch status {
			case "confirmed":
				m.mu.Lock()
				m.result = VerificationResult{Status: status}
				m.setStateLocked(StateSuccess)
				m.mu.Unlock()
				m.notify()
				return
			case "payment_failed", "cancelled", "expired":
				m.mu.Lock()
				m.errCode = "PAYMENT_NOT_COMPLETED"
				m.errMsg = "payment was not completed (status: " + status + ")"
				m.setStateLocked(StateFailed)
				m.mu.Unlock()
				m.notify()
				return
			}
		} else {
			log.Printf("status poll for order %s failed, restarting countdown: %v", orderID, err)
		}
	}

	m.mu.Lock()
	m.setStateLocked(StateProcessing)
	m.startCountdownLocked()
	m.mu.Unlock()
	m.notify()
}

// Close releases the countdown timer. Safe to call at any point.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCountdownLocked()
}

// --- internals ---

func (m *Machine) currentOrderID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderID
}

func (m *Machine) verify(ctx context.Context, p RedirectParams) {
	result, err := m.verifier.Verify(ctx, p.OrderID, p.PaymentID, p.Signature)

	m.mu.Lock()
	if err != nil {
		m.errCode = "VERIFICATION_FAILED"
		m.errMsg = err.Error()
		m.setStateLocked(StateFailed)
	} else {
		m.result = result
		m.setStateLocked(StateSuccess)
	}
	m.stopCountdownLocked()
	m.mu.Unlock()
	m.notify()
}

// setStateLocked mutates state and queues the listener callback. Callers
// hold mu and must call notify() after releasing it.
func (m *Machine) setStateLocked(next State) {
	if m.state == next {
		return
	}
	m.state = next
	if m.onChange != nil {
		m.pending = append(m.pending, next)
	}
}

// notify drains queued state changes and fires the listener without holding
// mu, so listeners are free to call back into the machine.
func (m *Machine) notify() {
	m.mu.Lock()
	queued := m.pending
	m.pending = nil
	fn := m.onChange
	m.mu.Unlock()

	if fn == nil {
		return
	}
	for _, s := range queued {
		fn(s)
	}
}

func (m *Machine) startCountdownLocked() {
	m.stopCountdownLocked()
	m.remaining = m.window

	m.ticker = time.NewTicker(m.tickInterval)
	m.stopTick = make(chan struct{})

	go func(ticker *time.Ticker, stop chan struct{}) {
		for {
			select {
			case <-ticker.C:
				if m.tick() {
					return
				}
			case <-stop:
				return
			}
		}
	}(m.ticker, m.stopTick)
}

// tick advances the countdown by one interval. Returns true once the
// countdown has finished. On expiry the machine enters Timeout and the NEXT
// window grows by the initial window (300s → 600s → 900s ...).
func (m *Machine) tick() bool {
	m.mu.Lock()

	// A stopped countdown (redirect arrived, verification running) must
	// never expire the attempt, even for a tick already in flight.
	if m.state != StateProcessing || m.ticker == nil {
		m.mu.Unlock()
		return true
	}

	m.remaining -= m.tickInterval
	if m.remaining > 0 {
		m.mu.Unlock()
		return false
	}

	m.remaining = 0
	m.window += m.initialWindow
	m.setStateLocked(StateTimeout)
	m.stopCountdownLocked()
	m.mu.Unlock()
	m.notify()
	return true
}

func (m *Machine) stopCountdownLocked() {
	if m.ticker != nil {
		m.ticker.Stop()
		m.ticker = nil
	}
	if m.stopTick != nil {
		close(m.stopTick)
		m.stopTick = nil
	}
}
