// Package engine executes one parsed alert against one account:
// resolve, size, position-check, submit, with typed failure containment.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hookrelay/internal/account"
	"hookrelay/internal/alert"
	"hookrelay/internal/events"
	"hookrelay/internal/sizing"
	"hookrelay/pkg/exchange"
)

// Engine turns parsed commands into orders. Stateless across alerts;
// all per-account state lives on the Account.
type Engine struct {
	safetyMargin float64 // fraction of free balance usable for sizing
	bus          *events.Bus
}

// New creates an engine. safetyMargin is clamped into (0, 1].
func New(safetyMargin float64, bus *events.Bus) *Engine {
	if safetyMargin <= 0 || safetyMargin > 1 {
		safetyMargin = 0.985
	}
	return &Engine{safetyMargin: safetyMargin, bus: bus}
}

// Execute runs one command to a terminal state while holding the
// account's execution lock. Every failure is contained in the returned
// Result; nothing escapes to abort other alerts or accounts. There is
// no retry: a failed alert is reported and discarded.
func (e *Engine) Execute(ctx context.Context, acct *account.Account, cmd alert.Command) Result {
	res := Result{
		AccountID: acct.ID,
		Action:    cmd.Action,
		Symbol:    cmd.Symbol,
		Leverage:  cmd.Leverage,
		State:     StateParsed,
	}

	_ = acct.WithLock(func() error {
		e.run(ctx, acct, cmd, &res)
		return nil
	})

	if e.bus != nil {
		e.bus.Publish(events.EventExecutionDone, res)
	}
	e.log(res)
	return res
}

func (e *Engine) run(ctx context.Context, acct *account.Account, cmd alert.Command, res *Result) {
	symbol, ok := acct.Resolve(cmd.Symbol)
	if !ok {
		res.fail(StateParsed, FailMalformed, fmt.Errorf("unresolvable symbol %q", cmd.Symbol))
		return
	}
	res.Symbol = symbol
	res.State = StateSymbolResolved

	market, ok := acct.Market(symbol)
	if !ok {
		res.fail(StateSymbolResolved, FailMalformed, fmt.Errorf("no market info for %s", symbol))
		return
	}

	if cmd.Action == alert.ActionClose {
		e.runClose(ctx, acct, symbol, res)
		return
	}
	e.runOpen(ctx, acct, market, cmd, res)
}

// runClose refreshes the position cache, then submits a reduce-only
// order for exactly the cached contract count. Never sizes anew.
func (e *Engine) runClose(ctx context.Context, acct *account.Account, symbol string, res *Result) {
	if err := acct.Positions.Refresh(ctx, acct.Gateway, trackedWith(acct.Symbols, symbol)); err != nil {
		res.fail(StateSymbolResolved, FailGateway, err)
		return
	}
	res.State = StatePositionChecked

	pos, ok := acct.Positions.Get(symbol)
	if !ok || pos.Contracts <= 0 {
		res.fail(StatePositionChecked, FailNoPosition, fmt.Errorf("no open position for %s", symbol))
		return
	}

	req := exchange.OrderRequest{
		Symbol:     symbol,
		Side:       pos.Side.CloseSide(),
		Qty:        pos.Contracts,
		ReduceOnly: true,
		ClientID:   uuid.NewString(),
	}
	e.submit(ctx, acct, req, res)
}

// runOpen sizes a fresh order off balance and reference price.
func (e *Engine) runOpen(ctx context.Context, acct *account.Account, market exchange.MarketInfo, cmd alert.Command, res *Result) {
	balance, err := acct.Gateway.FetchBalance(ctx)
	if err != nil {
		res.fail(StateSymbolResolved, FailGateway, err)
		return
	}
	res.State = StateBalanceFetched
	available := balance.Free * e.safetyMargin

	book, err := acct.Gateway.FetchOrderBook(ctx, market.Symbol)
	if err != nil {
		res.fail(StateBalanceFetched, FailGateway, err)
		return
	}
	refPrice := book.Mid()

	qty, err := sizing.Size(market, cmd.Quantity, cmd.Leverage, available, refPrice)
	if err != nil {
		switch {
		case errors.Is(err, sizing.ErrOrderTooSmall):
			res.fail(StateBalanceFetched, FailOrderTooSmall, err)
		case errors.Is(err, sizing.ErrInvalidInput):
			res.fail(StateBalanceFetched, FailInvalidInput, err)
		default:
			res.fail(StateBalanceFetched, FailInvalidInput, err)
		}
		return
	}
	res.State = StateSized

	side := exchange.SideBuy
	if cmd.Action == alert.ActionSell {
		side = exchange.SideSell
	}
	req := exchange.OrderRequest{
		Symbol:   market.Symbol,
		Side:     side,
		Qty:      qty,
		Leverage: cmd.Leverage,
		ClientID: uuid.NewString(),
	}
	e.submit(ctx, acct, req, res)
}

// submit issues the order; any gateway failure becomes FailGateway.
// Once issued there is no cancellation path: an unknown outcome is
// recovered only by a later explicit close alert.
func (e *Engine) submit(ctx context.Context, acct *account.Account, req exchange.OrderRequest, res *Result) {
	res.Side = req.Side
	res.Qty = req.Qty
	res.ReduceOnly = req.ReduceOnly
	res.ClientID = req.ClientID
	res.State = StateSubmitted

	if e.bus != nil {
		e.bus.Publish(events.EventOrderSubmitted, *res)
	}

	ack, err := acct.Gateway.SubmitMarketOrder(ctx, req)
	if err != nil {
		res.fail(StateSubmitted, FailGateway, err)
		return
	}
	res.OrderID = ack.OrderID
	res.State = StateSucceeded
}

func (e *Engine) log(res Result) {
	ev := log.Info()
	if res.Failure != FailNone {
		ev = log.Warn().Str("failure", string(res.Failure)).Err(res.Err)
	}
	ev.Str("account", res.AccountID).
		Str("action", string(res.Action)).
		Str("symbol", res.Symbol).
		Float64("qty", res.Qty).
		Str("order_id", res.OrderID).
		Str("state", string(res.State)).
		Msg("alert executed")
}

// trackedWith appends symbol to the tracked set when missing, so a
// close always refreshes the symbol it is about to act on.
func trackedWith(tracked []string, symbol string) []string {
	for _, s := range tracked {
		if s == symbol {
			return tracked
		}
	}
	out := make([]string, 0, len(tracked)+1)
	out = append(out, tracked...)
	return append(out, symbol)
}
