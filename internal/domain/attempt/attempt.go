package attempt

import (
	"fmt"
	"strings"
	"time"

	"github.com/DTBbuilds/smartduka-payments/internal/domain/errors"
	"github.com/google/uuid"
)

// Phase represents where an attempt sits in the push confirmation state machine.
type Phase string

const (
	PhaseInitiating            Phase = "initiating"
	PhaseAwaitingAuthorization Phase = "awaiting_authorization"
	PhaseProcessing            Phase = "processing"
	PhaseVerifying             Phase = "verifying"
	PhaseSucceeded             Phase = "succeeded"
	PhaseFailed                Phase = "failed"
	PhaseCancelled             Phase = "cancelled"
	PhaseExpired               Phase = "expired"
)

// Status is the coarse outcome of an attempt. It stays pending until the
// attempt reaches one of the four terminal phases.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Amount represents a monetary amount in the smallest currency unit (e.g. cents).
type Amount struct {
	ValueCents int64
	Currency   string
}

// String returns a human-readable representation of the amount.
func (a Amount) String() string {
	whole := a.ValueCents / 100
	frac := a.ValueCents % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, a.Currency)
}

// Validate checks that the amount is valid.
func (a Amount) Validate() error {
	if a.ValueCents <= 0 {
		return errors.NewValidationError("amount", "must be greater than 0")
	}
	if a.Currency == "" {
		return errors.NewValidationError("currency", "cannot be empty")
	}
	if len(a.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}

// Attempt is one push-payment attempt against an order. Attempts are
// append-only: a retried order gets a brand-new attempt, terminal attempts
// never change again.
type Attempt struct {
	ID               uuid.UUID
	OrderID          string
	AttemptNumber    int
	Amount           Amount
	PayerPhoneMasked string
	Phase            Phase
	Status           Status
	GatewayReference *string
	ResultCode       *string
	ResultCategory   *string
	ResultMessage    *string
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ExpiresAt        time.Time
	LastPolledAt     *time.Time
	TerminalAt       *time.Time
}

// New creates a pending attempt in the initiating phase. The payer phone is
// masked before it is stored anywhere; the raw number only travels to the
// gateway client.
func New(orderID string, attemptNumber int, amount Amount, payerPhone string, now time.Time, timeout time.Duration) (*Attempt, error) {
	if err := amount.Validate(); err != nil {
		return nil, err
	}
	if orderID == "" {
		return nil, errors.NewValidationError("order_id", "cannot be empty")
	}
	if attemptNumber < 1 {
		return nil, errors.NewValidationError("attempt_number", "must be at least 1")
	}
	if len(payerPhone) < 9 {
		return nil, errors.NewValidationError("payer_phone", "too short to be a phone number")
	}

	return &Attempt{
		ID:               uuid.New(),
		OrderID:          orderID,
		AttemptNumber:    attemptNumber,
		Amount:           amount,
		PayerPhoneMasked: MaskPhone(payerPhone),
		Phase:            PhaseInitiating,
		Status:           StatusPending,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpiresAt:        now.Add(timeout),
	}, nil
}

// phaseTransitions lists the allowed phase moves. Terminal phases allow none.
var phaseTransitions = map[Phase][]Phase{
	PhaseInitiating: {
		PhaseAwaitingAuthorization,
		PhaseFailed, // push itself failed
		PhaseCancelled,
		PhaseExpired,
	},
	PhaseAwaitingAuthorization: {
		PhaseProcessing,
		PhaseVerifying,
		PhaseSucceeded,
		PhaseFailed,
		PhaseCancelled,
		PhaseExpired,
	},
	PhaseProcessing: {
		PhaseVerifying,
		PhaseSucceeded,
		PhaseFailed,
		PhaseCancelled,
		PhaseExpired,
	},
	PhaseVerifying: {
		PhaseSucceeded,
		PhaseFailed,
		PhaseCancelled,
		PhaseExpired,
	},
	PhaseSucceeded: {},
	PhaseFailed:    {},
	PhaseCancelled: {},
	PhaseExpired:   {},
}

// IsTerminal reports whether the phase allows no further transitions.
func (p Phase) IsTerminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed || p == PhaseCancelled || p == PhaseExpired
}

// ToStatus maps a phase to the coarse attempt status.
func (p Phase) ToStatus() Status {
	switch p {
	case PhaseSucceeded:
		return StatusSucceeded
	case PhaseFailed:
		return StatusFailed
	case PhaseCancelled:
		return StatusCancelled
	case PhaseExpired:
		return StatusExpired
	default:
		return StatusPending
	}
}

// Progress returns a rough completion percentage for UI consumers.
func (p Phase) Progress() int {
	switch p {
	case PhaseInitiating:
		return 10
	case PhaseAwaitingAuthorization:
		return 35
	case PhaseProcessing:
		return 65
	case PhaseVerifying:
		return 85
	default:
		return 100
	}
}

// CanTransitionTo checks whether the attempt may move to the given phase.
func (a *Attempt) CanTransitionTo(next Phase) bool {
	for _, allowed := range phaseTransitions[a.Phase] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the attempt has reached a terminal phase.
func (a *Attempt) IsTerminal() bool {
	return a.Phase.IsTerminal()
}

// Update carries the fields of a single attempt transition. Nil pointers
// leave the corresponding attempt field untouched.
type Update struct {
	Phase            Phase
	GatewayReference *string
	ResultCode       *string
	ResultCategory   *string
	ResultMessage    *string
	PolledAt         *time.Time
}

// Apply mutates the attempt with one transition, enforcing terminal
// immutability and the phase transition table. The version is bumped on
// every successful apply so stores can detect lost updates.
func (a *Attempt) Apply(upd Update, now time.Time) error {
	if a.IsTerminal() {
		return errors.ErrTerminalAttempt
	}
	if upd.Phase != a.Phase {
		if !a.CanTransitionTo(upd.Phase) {
			return errors.NewDomainError(
				"invalid_transition",
				"cannot transition from "+string(a.Phase)+" to "+string(upd.Phase),
				errors.ErrInvalidStateTransition,
			)
		}
		a.Phase = upd.Phase
		a.Status = upd.Phase.ToStatus()
		if upd.Phase.IsTerminal() {
			t := now
			a.TerminalAt = &t
		}
	}
	if upd.GatewayReference != nil {
		a.GatewayReference = upd.GatewayReference
	}
	if upd.ResultCode != nil {
		a.ResultCode = upd.ResultCode
	}
	if upd.ResultCategory != nil {
		a.ResultCategory = upd.ResultCategory
	}
	if upd.ResultMessage != nil {
		a.ResultMessage = upd.ResultMessage
	}
	if upd.PolledAt != nil {
		a.LastPolledAt = upd.PolledAt
	}
	a.Version++
	a.UpdatedAt = now
	return nil
}

// Expired reports whether the attempt's confirmation window has elapsed.
func (a *Attempt) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// Clone returns a deep copy of the attempt.
func (a *Attempt) Clone() *Attempt {
	c := *a
	c.GatewayReference = clonePtr(a.GatewayReference)
	c.ResultCode = clonePtr(a.ResultCode)
	c.ResultCategory = clonePtr(a.ResultCategory)
	c.ResultMessage = clonePtr(a.ResultMessage)
	if a.LastPolledAt != nil {
		t := *a.LastPolledAt
		c.LastPolledAt = &t
	}
	if a.TerminalAt != nil {
		t := *a.TerminalAt
		c.TerminalAt = &t
	}
	return &c
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// MaskPhone hides the middle digits of a payer phone number, keeping the
// prefix and the last two digits (e.g. "0712345678" -> "07******78").
func MaskPhone(phone string) string {
	if len(phone) < 5 {
		return strings.Repeat("*", len(phone))
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}
