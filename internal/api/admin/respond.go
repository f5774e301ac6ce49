package admin

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/region23/testdrive/internal/storage"
	"github.com/region23/testdrive/pkg/errors"
)

const (
	msgInvalidID          = "invalid identifier"
	msgInvalidRequestBody = "invalid request body"
	msgDataConflict       = "Data conflict"
	msgInternal           = "Internal server error"
	msgUnauthorized       = "missing or invalid admin token"

	maxBodyBytes = 1 << 20
)

// ApiError тело ответа при ошибке
type ApiError struct {
	Timestamp string            `json:"timestamp"`
	Status    int               `json:"status"`
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Path      string            `json:"path"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// RespondJSON отправляет JSON ответ с заданным статусом
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// RespondMessage отправляет ApiError с явным статусом и сообщением
func RespondMessage(w http.ResponseWriter, r *http.Request, status int, message string, fields map[string]string) {
	RespondJSON(w, status, ApiError{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      r.URL.Path,
		Errors:    fields,
	})
}

// RespondError переводит ошибку хранилища или BotError в HTTP статус
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	status, message, fields := classify(err)
	RespondMessage(w, r, status, message, fields)
}

func classify(err error) (int, string, map[string]string) {
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "Resource not found", nil
	case stderrors.Is(err, storage.ErrDuplicate), stderrors.Is(err, storage.ErrReferenced):
		return http.StatusConflict, msgDataConflict, nil
	}

	botErr, ok := errors.GetBotError(err)
	if !ok {
		return http.StatusInternalServerError, msgInternal, nil
	}

	switch botErr.Kind {
	case errors.KindNotFound:
		return http.StatusNotFound, botErr.Message, nil
	case errors.KindConflict:
		return http.StatusConflict, botErr.Message, nil
	case errors.KindBadRequest:
		fields, _ := botErr.Context.(map[string]string)
		return http.StatusBadRequest, botErr.Message, fields
	}
	return http.StatusInternalServerError, msgInternal, nil
}

// StatusOf HTTP статус, которым RespondError ответит на err
func StatusOf(err error) int {
	status, _, _ := classify(err)
	return status
}

// DecodeJSON читает тело запроса, отвергая неизвестные поля
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// pathID достает положительный {id} из маршрута
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.ErrInvalidID
	}
	return id, nil
}
