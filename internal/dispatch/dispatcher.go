// Package dispatch splits webhook payloads into alert lines and routes
// each to its account's execution engine.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hookrelay/internal/account"
	"hookrelay/internal/alert"
	"hookrelay/internal/engine"
	"hookrelay/internal/events"
	"hookrelay/internal/monitor"
	"hookrelay/pkg/db"
)

// Journal persists alert and order outcomes. *db.Database satisfies it.
type Journal interface {
	InsertAlert(ctx context.Context, id, accountID, rawLine string) error
	SetAlertOutcome(ctx context.Context, id, outcome, detail string) error
	InsertOrder(ctx context.Context, o db.OrderRecord) error
}

// Dispatcher routes alert lines to per-account engines. Lines for
// distinct accounts run concurrently; lines for the same account run
// in receipt order.
type Dispatcher struct {
	registry *account.Registry
	engine   *engine.Engine
	bus      *events.Bus
	journal  Journal
	metrics  *monitor.Metrics
}

// New creates a dispatcher. journal and metrics may be nil.
func New(registry *account.Registry, eng *engine.Engine, bus *events.Bus, journal Journal, metrics *monitor.Metrics) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		engine:   eng,
		bus:      bus,
		journal:  journal,
		metrics:  metrics,
	}
}

type pendingLine struct {
	index int
	raw   string
	acct  *account.Account
	cmd   alert.Command
}

// Dispatch processes one webhook payload and returns a result per
// alert line in payload order. No line failure aborts the others.
func (d *Dispatcher) Dispatch(ctx context.Context, payload string) []engine.Result {
	if d.metrics != nil {
		d.metrics.RecordPayload()
	}

	var results []engine.Result
	var pending []pendingLine

	for _, line := range strings.Split(payload, "\n") {
		tokens := alert.Tokenize(line)
		if len(tokens) == 0 {
			continue
		}
		idx := len(results)
		results = append(results, engine.Result{})

		acct, rest, found := d.matchAccount(tokens)
		if !found {
			results[idx] = d.reject(ctx, line, "", engine.FailAccountNotFound,
				fmt.Errorf("no configured account in %q", strings.TrimSpace(line)))
			continue
		}
		if degraded, reason := acct.Degraded(); degraded {
			results[idx] = d.reject(ctx, line, acct.ID, engine.FailAccountDegraded,
				fmt.Errorf("account %s degraded: %v", acct.ID, reason))
			continue
		}

		cmd, err := alert.Parse(rest)
		if err != nil {
			results[idx] = d.reject(ctx, line, acct.ID, engine.FailMalformed, err)
			continue
		}
		pending = append(pending, pendingLine{index: idx, raw: line, acct: acct, cmd: cmd})
	}

	// Group by account so same-account lines keep receipt order while
	// distinct accounts execute concurrently. The account execution
	// lock still guards against racing payloads.
	groups := make(map[string][]pendingLine)
	var order []string
	for _, p := range pending {
		if _, seen := groups[p.acct.ID]; !seen {
			order = append(order, p.acct.ID)
		}
		groups[p.acct.ID] = append(groups[p.acct.ID], p)
	}

	var wg sync.WaitGroup
	for _, id := range order {
		wg.Add(1)
		go func(lines []pendingLine) {
			defer wg.Done()
			for _, p := range lines {
				results[p.index] = d.executeLine(ctx, p)
			}
		}(groups[id])
	}
	wg.Wait()

	return results
}

// matchAccount scans tokens for a case-insensitive account-id match
// and returns the account plus the remaining tokens.
func (d *Dispatcher) matchAccount(tokens []string) (*account.Account, []string, bool) {
	for i, tok := range tokens {
		if acct, ok := d.registry.Lookup(tok); ok {
			rest := make([]string, 0, len(tokens)-1)
			rest = append(rest, tokens[:i]...)
			rest = append(rest, tokens[i+1:]...)
			return acct, rest, true
		}
	}
	return nil, nil, false
}

func (d *Dispatcher) executeLine(ctx context.Context, p pendingLine) engine.Result {
	alertID := uuid.NewString()
	if d.metrics != nil {
		d.metrics.RecordAlert()
	}
	if d.bus != nil {
		d.bus.Publish(events.EventAlertReceived, ReceivedAlert{
			ID: alertID, AccountID: p.acct.ID, Line: strings.TrimSpace(p.raw), At: time.Now(),
		})
	}
	if d.journal != nil {
		if err := d.journal.InsertAlert(ctx, alertID, p.acct.ID, strings.TrimSpace(p.raw)); err != nil {
			log.Error().Err(err).Msg("journal alert insert failed")
		}
	}

	started := time.Now()
	res := d.engine.Execute(ctx, p.acct, p.cmd)
	if d.metrics != nil {
		d.metrics.RecordExecution(time.Since(started))
	}
	d.record(ctx, alertID, res)
	return res
}

// reject journals a line the dispatcher drops before execution.
func (d *Dispatcher) reject(ctx context.Context, line, accountID string, kind engine.FailureKind, err error) engine.Result {
	res := engine.Result{
		AccountID: accountID,
		State:     engine.StateFailed,
		Failure:   kind,
		Err:       err,
		Detail:    err.Error(),
	}
	log.Warn().Str("failure", string(kind)).Str("line", strings.TrimSpace(line)).Err(err).Msg("alert dropped")

	if d.metrics != nil {
		d.metrics.RecordFailure(string(kind))
	}
	if d.journal != nil {
		alertID := uuid.NewString()
		if ierr := d.journal.InsertAlert(ctx, alertID, accountID, strings.TrimSpace(line)); ierr == nil {
			_ = d.journal.SetAlertOutcome(ctx, alertID, string(kind), err.Error())
		}
	}
	return res
}

// record persists the terminal outcome and the order, if one was sent.
func (d *Dispatcher) record(ctx context.Context, alertID string, res engine.Result) {
	if d.metrics != nil {
		if res.Succeeded() {
			d.metrics.RecordOrder()
		} else {
			d.metrics.RecordFailure(string(res.Failure))
		}
	}
	if d.journal == nil {
		return
	}

	outcome := string(engine.StateSucceeded)
	if !res.Succeeded() {
		outcome = string(res.Failure)
	}
	if err := d.journal.SetAlertOutcome(ctx, alertID, outcome, res.ErrText()); err != nil {
		log.Error().Err(err).Msg("journal outcome update failed")
	}
	if res.Succeeded() {
		err := d.journal.InsertOrder(ctx, db.OrderRecord{
			ID:              res.ClientID,
			AlertID:         alertID,
			AccountID:       res.AccountID,
			Symbol:          res.Symbol,
			Side:            string(res.Side),
			Qty:             res.Qty,
			ReduceOnly:      res.ReduceOnly,
			Leverage:        res.Leverage,
			ExchangeOrderID: res.OrderID,
		})
		if err != nil {
			log.Error().Err(err).Msg("journal order insert failed")
		}
	}
}

// ReceivedAlert is the bus payload for an accepted alert line.
type ReceivedAlert struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Line      string    `json:"line"`
	At        time.Time `json:"at"`
}
