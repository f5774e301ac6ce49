package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/testdrive/internal/storage/models"
	"github.com/region23/testdrive/internal/storage/sqlite"
	"github.com/region23/testdrive/internal/testutil"
	"github.com/region23/testdrive/pkg/errors"
)

const testToken = "s3cret"

type apiEnv struct {
	store  *sqlite.SQLiteStorage
	router *mux.Router
}

func newAPIEnv(t *testing.T, token string) *apiEnv {
	t.Helper()
	store := testutil.SetupTestDB(t)
	r := mux.NewRouter()
	Register(r, store, token, testutil.SetupTestLogger().Printf())
	return &apiEnv{store: store, router: r}
}

func (e *apiEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(TokenHeader, testToken)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ApiError {
	t.Helper()
	var body ApiError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{"valid token", testToken, testToken, http.StatusOK},
		{"wrong token", testToken, "nope", http.StatusUnauthorized},
		{"missing header", testToken, "", http.StatusUnauthorized},
		{"api disabled", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newAPIEnv(t, tt.configured)
			req := httptest.NewRequest(http.MethodGet, "/api/admin/cars", nil)
			if tt.header != "" {
				req.Header.Set(TokenHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				body := decodeError(t, rec)
				assert.Equal(t, http.StatusUnauthorized, body.Status)
				assert.Equal(t, "Unauthorized", body.Error)
				assert.Equal(t, "/api/admin/cars", body.Path)
			}
		})
	}
}

func TestCars_CRUD(t *testing.T) {
	env := newAPIEnv(t, testToken)

	rec := env.do(http.MethodPost, "/api/admin/cars", `{"model":"  Kia EV6 ","description":"Electric"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Car
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Kia EV6", created.Model)

	path := "/api/admin/cars/" + itoa(created.ID)

	rec = env.do(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPut, path, `{"model":"Kia EV9"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	car, err := env.store.GetCar(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kia EV9", car.Model)
	assert.Empty(t, car.Description)

	rec = env.do(http.MethodGet, "/api/admin/cars", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cars []models.Car
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cars))
	assert.Len(t, cars, 1)

	rec = env.do(http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCars_EmptyListIsArray(t *testing.T) {
	env := newAPIEnv(t, testToken)

	rec := env.do(http.MethodGet, "/api/admin/cars", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCars_ValidationErrors(t *testing.T) {
	env := newAPIEnv(t, testToken)

	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{"blank model", `{"model":"   "}`, []string{"model"}},
		{"long model", `{"model":"` + strings.Repeat("x", 256) + `"}`, []string{"model"}},
		{"long description", `{"model":"ok","description":"` + strings.Repeat("d", 2001) + `"}`, []string{"description"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/admin/cars", tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "Bad Request", body.Error)
			for _, f := range tt.wantFields {
				assert.Contains(t, body.Errors, f)
			}
		})
	}
}

func TestCars_BadRequests(t *testing.T) {
	env := newAPIEnv(t, testToken)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"malformed json", http.MethodPost, "/api/admin/cars", `{"model":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/admin/cars", `{"model":"x","color":"red"}`, http.StatusBadRequest},
		{"non numeric id", http.MethodGet, "/api/admin/cars/abc", "", http.StatusBadRequest},
		{"zero id", http.MethodDelete, "/api/admin/cars/0", "", http.StatusBadRequest},
		{"update missing", http.MethodPut, "/api/admin/cars/999", `{"model":"x"}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/admin/cars/999", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCars_DeleteWithBookingsConflicts(t *testing.T) {
	env := newAPIEnv(t, testToken)
	car, _ := seedBooking(t, env.store, time.Date(2025, 8, 17, 10, 0, 0, 0, time.UTC))

	rec := env.do(http.MethodDelete, "/api/admin/cars/"+itoa(car.ID), "")

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, msgDataConflict, decodeError(t, rec).Message)
}

func TestBookings_ListAndDelete(t *testing.T) {
	env := newAPIEnv(t, testToken)
	early := time.Date(2025, 8, 17, 10, 0, 0, 0, time.UTC)
	car, first := seedBooking(t, env.store, early)

	late := &models.Booking{UserID: first.UserID, CarID: car.ID, SlotStart: early.Add(2 * time.Hour), Status: models.StatusConfirmed}
	require.NoError(t, env.store.CreateBooking(context.Background(), late))

	rec := env.do(http.MethodGet, "/api/admin/bookings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.AdminBooking
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 2)
	assert.Equal(t, late.ID, list[0].ID, "latest slot first")
	assert.Equal(t, "Anna", list[0].UserName)
	assert.Equal(t, "Polestar 2", list[0].CarModel)

	rec = env.do(http.MethodDelete, "/api/admin/bookings/"+itoa(first.ID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodDelete, "/api/admin/bookings/"+itoa(first.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found kind", errors.ErrCarNotFound, http.StatusNotFound},
		{"conflict kind", errors.ErrSlotTaken, http.StatusConflict},
		{"bad request kind", errors.ErrInvalidCar, http.StatusBadRequest},
		{"unexpected kind", errors.ErrDatabase, http.StatusInternalServerError},
		{"plain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func seedBooking(t *testing.T, store *sqlite.SQLiteStorage, slot time.Time) (*models.Car, *models.Booking) {
	t.Helper()
	ctx := context.Background()

	car := &models.Car{Model: "Polestar 2"}
	require.NoError(t, store.CreateCar(ctx, car))
	user, err := store.UpsertUser(ctx, 42, "Anna", "anna")
	require.NoError(t, err)

	b := &models.Booking{UserID: user.ID, CarID: car.ID, SlotStart: slot, Status: models.StatusConfirmed}
	require.NoError(t, store.CreateBooking(ctx, b))
	return car, b
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
