// Package negotiation evaluates counter-offers against a computed fair price.
package negotiation

import (
	"fmt"
	"math"

	"github.com/ManagementMO/dreamwell-assessment/agent/contract"
)

// Outcome is the decision band for a counter-offer.
type Outcome string

const (
	AutoAccept   Outcome = "auto_accept"
	Negotiate    Outcome = "negotiate"
	CounterOffer Outcome = "counter_offer"
	Decline      Outcome = "decline"
)

// Decision is the immutable result of one counter-offer evaluation.
// SuggestedValue is only meaningful for the negotiate and counter_offer
// bands: the midpoint between fair price and counter, or the fair price
// capped at +20% respectively.
type Decision struct {
	Outcome        Outcome `json:"recommendation"`
	FairPrice      float64 `json:"fair_price"`
	Counter        float64 `json:"counter_offer"`
	DiffRatio      float64 `json:"difference_ratio"`
	SuggestedValue float64 `json:"suggested_value,omitempty"`
	Reason         string  `json:"reason"`
}

// Evaluate maps the relative distance between counter and fair price onto a
// decision band. Exactly one comparison of |counter-fair|/fair against the
// boundary table decides the band; boundaries belong to the lower band, so a
// counter sitting exactly 10% away still auto-accepts.
//
// A non-positive fair price is a contract breach by the caller and fails
// with contract.ErrPrecondition rather than silently returning a band.
func Evaluate(fairPrice, counter float64) (Decision, error) {
	if fairPrice <= 0 {
		return Decision{}, fmt.Errorf("%w: fair price must be positive, got %v", contract.ErrPrecondition, fairPrice)
	}

	d := math.Abs(counter-fairPrice) / fairPrice
	dec := Decision{
		FairPrice: fairPrice,
		Counter:   counter,
		DiffRatio: round4(d),
	}

	switch {
	case d <= 0.10:
		dec.Outcome = AutoAccept
		dec.Reason = "counter-offer is within 10% of fair value"
	case d <= 0.25:
		dec.Outcome = Negotiate
		dec.SuggestedValue = round2((fairPrice + counter) / 2)
		dec.Reason = "counter is off fair value; meet in the middle"
	case d <= 0.40:
		dec.Outcome = CounterOffer
		dec.SuggestedValue = round2(fairPrice * 1.20)
		dec.Reason = "counter is well off fair value; respond with a capped offer"
	default:
		dec.Outcome = Decline
		dec.Reason = "counter exceeds the maximum acceptable distance from fair value"
	}
	return dec, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
