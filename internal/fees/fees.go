// Package fees computes the platform fee breakdown for an escrow amount.
// Amounts are integer minor currency units; the percentage is a decimal.
package fees

import (
	"fmt"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Breakdown is the money split attached to an escrow transaction.
type Breakdown struct {
	EscrowAmount      int64           `json:"escrow_amount"`
	FeePercent        decimal.Decimal `json:"fee_percent"`
	PlatformFeeAmount int64           `json:"platform_fee_amount"`
	BuyerTotalAmount  int64           `json:"buyer_total_amount"`
	SellerNetAmount   int64           `json:"seller_net_amount"`
}

// PlatformFee returns amount*percent/100 rounded half away from zero.
func PlatformFee(amount int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(percent).Div(hundred).Round(0).IntPart()
}

// Calculate builds the breakdown. The buyer pays the fee on top; the seller
// receives the full escrow amount.
func Calculate(amount int64, percent decimal.Decimal) (Breakdown, error) {
	if amount <= 0 {
		return Breakdown{}, fmt.Errorf("%w: escrow amount must be positive", apperr.ErrInvalidInput)
	}
	if err := ValidatePercent(percent); err != nil {
		return Breakdown{}, err
	}

	fee := PlatformFee(amount, percent)
	return Breakdown{
		EscrowAmount:      amount,
		FeePercent:        percent,
		PlatformFeeAmount: fee,
		BuyerTotalAmount:  amount + fee,
		SellerNetAmount:   amount,
	}, nil
}

// ValidatePercent rejects percentages outside [0, 100].
func ValidatePercent(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return fmt.Errorf("%w: fee percent %s out of range", apperr.ErrInvalidInput, percent.String())
	}
	return nil
}

// ParsePercent parses a percentage such as "5" or "2.5".
func ParsePercent(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: fee percent %q: %v", apperr.ErrInvalidInput, s, err)
	}
	if err := ValidatePercent(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
