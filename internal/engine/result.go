package engine

import (
	"fmt"

	"hookrelay/internal/alert"
	"hookrelay/pkg/exchange"
)

// State tracks the progress of one alert through the engine.
type State string

const (
	StateParsed          State = "parsed"
	StateSymbolResolved  State = "symbol_resolved"
	StateBalanceFetched  State = "balance_fetched"
	StateSized           State = "sized"
	StatePositionChecked State = "position_checked"
	StateSubmitted       State = "submitted"
	StateSucceeded       State = "succeeded"
	StateFailed          State = "failed"
)

// FailureKind classifies terminal failures per the error taxonomy.
type FailureKind string

const (
	FailNone            FailureKind = ""
	// FailAccountNotFound and FailAccountDegraded are assigned by the
	// dispatcher before a command ever reaches an engine.
	FailAccountNotFound FailureKind = "account_not_found"
	FailAccountDegraded FailureKind = "account_degraded"
	FailMalformed       FailureKind = "malformed_alert"
	FailInvalidInput    FailureKind = "invalid_input"
	FailOrderTooSmall   FailureKind = "order_too_small"
	FailNoPosition      FailureKind = "no_position_to_close"
	FailGateway         FailureKind = "gateway_error"
)

// Result is the terminal outcome of one executed alert, carrying
// enough context to reconstruct what was attempted.
type Result struct {
	AccountID  string        `json:"account_id"`
	Action     alert.Action  `json:"action"`
	Symbol     string        `json:"symbol"` // canonical once resolved, raw token before that
	Side       exchange.Side `json:"side,omitempty"`
	Qty        float64       `json:"qty,omitempty"`
	ReduceOnly bool          `json:"reduce_only,omitempty"`
	Leverage   int           `json:"leverage,omitempty"`
	ClientID   string        `json:"client_id,omitempty"`
	OrderID    string        `json:"order_id,omitempty"`

	State    State       `json:"state"`
	Failure  FailureKind `json:"failure,omitempty"`
	FailedAt State       `json:"failed_at,omitempty"` // state reached when the failure occurred
	Err      error       `json:"-"`
	Detail   string      `json:"detail,omitempty"` // Err text, set for serialization
}

// Succeeded reports whether the alert reached a successful terminal state.
func (r Result) Succeeded() bool {
	return r.State == StateSucceeded
}

// ErrText returns the failure message, empty on success.
func (r Result) ErrText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (r Result) String() string {
	if r.Succeeded() {
		return fmt.Sprintf("%s %s %s qty=%v order=%s", r.AccountID, r.Action, r.Symbol, r.Qty, r.OrderID)
	}
	return fmt.Sprintf("%s %s %s failed (%s at %s): %v", r.AccountID, r.Action, r.Symbol, r.Failure, r.FailedAt, r.Err)
}

func (r *Result) fail(at State, kind FailureKind, err error) {
	r.FailedAt = at
	r.State = StateFailed
	r.Failure = kind
	r.Err = err
	if err != nil {
		r.Detail = err.Error()
	}
}
