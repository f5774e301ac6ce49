// Package admin административный REST API для машин и бронирований.
package admin

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Store хранилище, которое обслуживает admin API
type Store interface {
	CarStore
	BookingStore
}

// Register вешает маршруты /api/admin на router под проверкой токена
func Register(r *mux.Router, store Store, token string, logger Logger) {
	cars := NewCarsHandler(store, logger)
	bookings := NewBookingsHandler(store, logger)

	api := r.PathPrefix("/api/admin").Subrouter()
	api.Use(Auth(token, logger))

	api.HandleFunc("/cars", cars.List).Methods(http.MethodGet)
	api.HandleFunc("/cars", cars.Create).Methods(http.MethodPost)
	api.HandleFunc("/cars/{id}", cars.Get).Methods(http.MethodGet)
	api.HandleFunc("/cars/{id}", cars.Update).Methods(http.MethodPut)
	api.HandleFunc("/cars/{id}", cars.Delete).Methods(http.MethodDelete)

	api.HandleFunc("/bookings", bookings.List).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", bookings.Delete).Methods(http.MethodDelete)
}
