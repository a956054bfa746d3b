package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/showgrid/cinema-bookings/internal/booking"
	"github.com/showgrid/cinema-bookings/internal/config"
	"github.com/showgrid/cinema-bookings/internal/domain"
	"github.com/showgrid/cinema-bookings/internal/idempotency"
)

type Handlers struct {
	cfg   *config.Config
	svc   *booking.Service
	idemp *idempotency.Idempotency
}

func NewHandlers(cfg *config.Config, svc *booking.Service, idemp *idempotency.Idempotency) *Handlers {
	return &Handlers{cfg: cfg, svc: svc, idemp: idemp}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) []byte {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

// writeDomainError maps the error taxonomy onto the wire. Contention and
// business rejections are expected outcomes with typed bodies, not 500s.
func writeDomainError(w http.ResponseWriter, err error) {
	var unavailable *domain.SeatsUnavailableError
	if errors.As(err, &unavailable) {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":    "seats unavailable",
			"seat_ids": unavailable.SeatIDs,
		})
		return
	}
	var notFound *domain.SeatsNotFoundError
	if errors.As(err, &notFound) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":    "seats not found for showtime",
			"seat_ids": notFound.SeatIDs,
		})
		return
	}
	var failed *domain.PaymentFailedError
	if errors.As(err, &failed) {
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":  "payment failed",
			"reason": failed.Reason,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrExpired):
		http.Error(w, "booking expired", http.StatusGone)
	case errors.Is(err, domain.ErrAmountMismatch):
		http.Error(w, "amount mismatch", http.StatusBadRequest)
	case errors.Is(err, domain.ErrAlreadySettled):
		http.Error(w, "booking already settled", http.StatusConflict)
	case errors.Is(err, domain.ErrShowtimeStarted):
		http.Error(w, "showtime already started", http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrSerializationFailure):
		http.Error(w, "conflict, try again", http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func bookingBody(b *domain.Booking) map[string]interface{} {
	body := map[string]interface{}{
		"booking_id":   b.ID,
		"buyer_id":     b.BuyerID,
		"showtime_id":  b.ShowtimeID,
		"seat_ids":     b.SeatIDs,
		"total_amount": b.TotalAmount,
		"status":       b.Status,
		"created_at":   b.CreatedAt.Format(time.RFC3339),
		"expires_at":   b.ExpiresAt.Format(time.RFC3339),
	}
	if b.CancelReason != nil {
		body["cancel_reason"] = *b.CancelReason
	}
	return body
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		BuyerID         uuid.UUID   `json:"buyer_id"`
		ShowtimeID      uuid.UUID   `json:"showtime_id"`
		SeatInstanceIDs []uuid.UUID `json:"seat_instance_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := h.svc.CreateBooking(r.Context(), req.BuyerID, req.ShowtimeID, req.SeatInstanceIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	data := writeJSON(w, http.StatusCreated, bookingBody(b))
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) SettlePayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		Method  domain.PaymentMethod `json:"method"`
		Amount  float64              `json:"amount"`
		Details map[string]string    `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := h.svc.Settle(r.Context(), id, req.Method, req.Details, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	data := writeJSON(w, http.StatusOK, bookingBody(b))
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusOK, Result: data})
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "cancelled by buyer"
	}

	if err := h.svc.CancelBooking(r.Context(), id, req.Reason); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"booking_id": id, "status": domain.BookingCancelled})
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	b, err := h.svc.GetBooking(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	payments, err := h.svc.Payments(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	body := bookingBody(b)
	attempts := make([]map[string]interface{}, 0, len(payments))
	for _, p := range payments {
		attempts = append(attempts, map[string]interface{}{
			"payment_id":     p.ID,
			"amount":         p.Amount,
			"method":         p.Method,
			"status":         p.Status,
			"transaction_id": p.TransactionID,
		})
	}
	body["payments"] = attempts
	writeJSON(w, http.StatusOK, body)
}

func (h *Handlers) SeatMap(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	seats, err := h.svc.SeatMap(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(seats))
	for _, s := range seats {
		out = append(out, map[string]interface{}{
			"seat_instance_id": s.ID,
			"seat_id":          s.SeatID,
			"row":              s.RowNumber,
			"column":           s.ColumnNumber,
			"type":             s.SeatType,
			"price_multiplier": s.PriceMultiplier,
			"status":           s.Status,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"showtime_id": id, "seats": out})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
