package visuals

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Outcome is a finalized result as the chain reports it. Visual effects read
// it but never change it.
type Outcome struct {
	ResultIndex int64           `json:"result_index"`
	Payout      decimal.Decimal `json:"payout"`
	Wager       decimal.Decimal `json:"wager"`
}

// IsWin reports whether the outcome paid anything.
func (o Outcome) IsWin() bool {
	return o.Payout.IsPositive()
}

// Multiplier is payout/wager rounded to 8 places, or zero without a wager.
func (o Outcome) Multiplier() decimal.Decimal {
	if !o.Wager.IsPositive() {
		return decimal.Zero
	}
	return o.Payout.DivRound(o.Wager, 8)
}

// Validate rejects outcomes no settlement can produce.
func (o Outcome) Validate() error {
	if o.ResultIndex < 0 {
		return fmt.Errorf("%w: negative result index %d", ErrInvalidOutcome, o.ResultIndex)
	}
	if o.Payout.IsNegative() {
		return fmt.Errorf("%w: negative payout %s", ErrInvalidOutcome, o.Payout)
	}
	if o.Wager.IsNegative() {
		return fmt.Errorf("%w: negative wager %s", ErrInvalidOutcome, o.Wager)
	}
	return nil
}
