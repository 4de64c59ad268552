package negotiation

import (
	"errors"
	"testing"

	"github.com/ManagementMO/dreamwell-assessment/agent/contract"
)

func TestEvaluateBands(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		fair    float64
		counter float64
		want    Outcome
	}{
		{"equal", 1000, 1000, AutoAccept},
		{"within 10% above", 1000, 1095, AutoAccept},
		{"within 10% below", 1000, 905, AutoAccept},
		{"exactly 10%", 1000, 1100, AutoAccept},
		{"just above 10%", 1000, 1101, Negotiate},
		{"exactly 25%", 1000, 1250, Negotiate},
		{"just above 25%", 1000, 1251, CounterOffer},
		{"exactly 40%", 1000, 1400, CounterOffer},
		{"just above 40%", 1000, 1401, Decline},
		{"lowball", 1000, 400, Decline},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			dec, err := Evaluate(c.fair, c.counter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dec.Outcome != c.want {
				t.Fatalf("got %s, want %s (d=%v)", dec.Outcome, c.want, dec.DiffRatio)
			}
		})
	}
}

func TestEvaluateNegotiateSuggestsMidpoint(t *testing.T) {
	t.Parallel()

	dec, err := Evaluate(1000, 1200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Outcome != Negotiate {
		t.Fatalf("got %s, want negotiate", dec.Outcome)
	}
	if dec.SuggestedValue != 1100 {
		t.Fatalf("suggested value: got %v, want 1100", dec.SuggestedValue)
	}
}

func TestEvaluateCounterOfferCapsAtTwentyPercent(t *testing.T) {
	t.Parallel()

	dec, err := Evaluate(1000, 1350)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Outcome != CounterOffer {
		t.Fatalf("got %s, want counter_offer", dec.Outcome)
	}
	if dec.SuggestedValue != 1200 {
		t.Fatalf("suggested value: got %v, want 1200", dec.SuggestedValue)
	}
}

func TestEvaluateZeroFairPriceFails(t *testing.T) {
	t.Parallel()

	_, err := Evaluate(0, 500)
	if err == nil {
		t.Fatal("expected an error for zero fair price")
	}
	if !errors.Is(err, contract.ErrPrecondition) {
		t.Fatalf("expected precondition violation, got %v", err)
	}

	_, err = Evaluate(-12, 500)
	if !errors.Is(err, contract.ErrPrecondition) {
		t.Fatalf("expected precondition violation for negative fair price, got %v", err)
	}
}
