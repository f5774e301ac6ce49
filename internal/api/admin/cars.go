package admin

import (
	"net/http"

	"github.com/region23/testdrive/internal/storage/models"
	"github.com/region23/testdrive/internal/validation"
)

// CarsHandler CRUD машин
type CarsHandler struct {
	store  CarStore
	logger Logger
}

func NewCarsHandler(store CarStore, logger Logger) *CarsHandler {
	return &CarsHandler{
		store:  store,
		logger: logger,
	}
}

// List GET /api/admin/cars
func (h *CarsHandler) List(w http.ResponseWriter, r *http.Request) {
	cars, err := h.store.ListCars(r.Context())
	if err != nil {
		h.logger.Error("GET /cars - Failed to list cars: %v", err)
		RespondError(w, r, err)
		return
	}
	if cars == nil {
		cars = []*models.Car{}
	}
	RespondJSON(w, http.StatusOK, cars)
}

// Get GET /api/admin/cars/{id}
func (h *CarsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.logger.Warn("GET /cars/{id} - Invalid car ID: %v", err)
		RespondMessage(w, r, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	car, err := h.store.GetCar(r.Context(), id)
	if err != nil {
		h.logger.Warn("GET /cars/{id} - Failed to get car: car_id=%d, error=%v", id, err)
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, car)
}

// Create POST /api/admin/cars
func (h *CarsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CarRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		h.logger.Warn("POST /cars - Invalid request body: %v", err)
		RespondMessage(w, r, http.StatusBadRequest, msgInvalidRequestBody, nil)
		return
	}

	car := req.ToModel(0)
	if err := validation.ValidateCar(car.Model, car.Description); err != nil {
		h.logger.Warn("POST /cars - Validation failed: %v", err)
		RespondError(w, r, err)
		return
	}

	if err := h.store.CreateCar(r.Context(), car); err != nil {
		h.logger.Error("POST /cars - Failed to create car: %v", err)
		RespondError(w, r, err)
		return
	}

	h.logger.Info("POST /cars - Car created: car_id=%d, model=%q", car.ID, car.Model)
	RespondJSON(w, http.StatusCreated, car)
}

// Update PUT /api/admin/cars/{id}
func (h *CarsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.logger.Warn("PUT /cars/{id} - Invalid car ID: %v", err)
		RespondMessage(w, r, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req CarRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		h.logger.Warn("PUT /cars/{id} - Invalid request body: %v", err)
		RespondMessage(w, r, http.StatusBadRequest, msgInvalidRequestBody, nil)
		return
	}

	car := req.ToModel(id)
	if err := validation.ValidateCar(car.Model, car.Description); err != nil {
		h.logger.Warn("PUT /cars/{id} - Validation failed: car_id=%d, error=%v", id, err)
		RespondError(w, r, err)
		return
	}

	if err := h.store.UpdateCar(r.Context(), car); err != nil {
		if StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("PUT /cars/{id} - Failed to update car: car_id=%d, error=%v", id, err)
		} else {
			h.logger.Warn("PUT /cars/{id} - Car not updated: car_id=%d, error=%v", id, err)
		}
		RespondError(w, r, err)
		return
	}

	h.logger.Info("PUT /cars/{id} - Car updated: car_id=%d", id)
	RespondJSON(w, http.StatusOK, car)
}

// Delete DELETE /api/admin/cars/{id}
func (h *CarsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.logger.Warn("DELETE /cars/{id} - Invalid car ID: %v", err)
		RespondMessage(w, r, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.store.DeleteCar(r.Context(), id); err != nil {
		if StatusOf(err) >= http.StatusInternalServerError {
			h.logger.Error("DELETE /cars/{id} - Failed to delete car: car_id=%d, error=%v", id, err)
		} else {
			h.logger.Warn("DELETE /cars/{id} - Car not deleted: car_id=%d, error=%v", id, err)
		}
		RespondError(w, r, err)
		return
	}

	h.logger.Info("DELETE /cars/{id} - Car deleted: car_id=%d", id)
	w.WriteHeader(http.StatusNoContent)
}
