package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	MethodCard   PaymentMethod = "CARD"
	MethodUPI    PaymentMethod = "UPI"
	MethodWallet PaymentMethod = "WALLET"
)

// Payment is one settlement attempt against a booking. A booking may
// accumulate several FAILED attempts but at most one COMPLETED payment.
type Payment struct {
	ID            uuid.UUID
	BookingID     uuid.UUID
	Amount        float64
	Method        PaymentMethod
	TransactionID string
	Status        PaymentStatus
	FailureReason *string
	RefundReason  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPayment(bookingID uuid.UUID, method PaymentMethod, amount float64, now time.Time) *Payment {
	return &Payment{
		ID:        uuid.New(),
		BookingID: bookingID,
		Amount:    amount,
		Method:    method,
		Status:    PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
