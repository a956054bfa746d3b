package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/showgrid/cinema-bookings/internal/domain"
)

// Gateway executes one external payment attempt. Implementations must be
// call-scoped: no shared state is held across attempts, and the caller never
// holds a database lock for the duration of Attempt.
type Gateway interface {
	Attempt(ctx context.Context, method domain.PaymentMethod, details map[string]string, amount float64) (transactionID string, err error)
}

// DeclinedError is the gateway's expected rejection: wrong details, an
// unsupported method, or a decline from the processor.
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	return "declined: " + e.Reason
}

var requiredFields = map[domain.PaymentMethod][]string{
	domain.MethodCard:   {"card_number", "expiry", "cvv"},
	domain.MethodUPI:    {"vpa"},
	domain.MethodWallet: {"provider", "wallet_id"},
}

// Simulator stands in for a real payment processor. It validates the
// method-specific required fields and declines when the caller asks it to
// via details["simulate"]="decline", which keeps failure paths reachable in
// every environment without a processor sandbox.
type Simulator struct{}

func NewSimulator() *Simulator { return &Simulator{} }

func (s *Simulator) Attempt(ctx context.Context, method domain.PaymentMethod, details map[string]string, amount float64) (string, error) {
	fields, ok := requiredFields[method]
	if !ok {
		return "", &DeclinedError{Reason: fmt.Sprintf("unsupported method %q", method)}
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(details[f]) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return "", &DeclinedError{Reason: "missing required fields: " + strings.Join(missing, ", ")}
	}
	if amount <= 0 {
		return "", &DeclinedError{Reason: "non-positive amount"}
	}
	if details["simulate"] == "decline" {
		return "", &DeclinedError{Reason: "declined by processor"}
	}
	return fmt.Sprintf("PAY-%d", time.Now().UnixNano()), nil
}
