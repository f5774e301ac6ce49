package admin

import (
	"net/http"

	"github.com/region23/testdrive/internal/storage/models"
)

// BookingsHandler просмотр и удаление бронирований
type BookingsHandler struct {
	store  BookingStore
	logger Logger
}

func NewBookingsHandler(store BookingStore, logger Logger) *BookingsHandler {
	return &BookingsHandler{
		store:  store,
		logger: logger,
	}
}

// List GET /api/admin/bookings, сначала поздние слоты
func (h *BookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.store.ListBookingsForAdmin(r.Context())
	if err != nil {
		h.logger.Error("GET /bookings - Failed to list bookings: %v", err)
		RespondError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []*models.AdminBooking{}
	}
	RespondJSON(w, http.StatusOK, bookings)
}

// Delete DELETE /api/admin/bookings/{id}
func (h *BookingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.logger.Warn("DELETE /bookings/{id} - Invalid booking ID: %v", err)
		RespondMessage(w, r, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.store.DeleteBooking(r.Context(), id); err != nil {
		if StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("DELETE /bookings/{id} - Failed to delete booking: booking_id=%d, error=%v", id, err)
		} else {
			h.logger.Warn("DELETE /bookings/{id} - Booking not found: booking_id=%d", id)
		}
		RespondError(w, r, err)
		return
	}

	h.logger.Info("DELETE /bookings/{id} - Booking deleted: booking_id=%d", id)
	w.WriteHeader(http.StatusNoContent)
}
