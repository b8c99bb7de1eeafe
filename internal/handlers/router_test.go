package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chachabrian/shupool-backend/internal/config"
	"github.com/chachabrian/shupool-backend/internal/repository"
	"github.com/chachabrian/shupool-backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{UploadDir: t.TempDir(), BaseURL: "http://test.local"}
	storage, err := services.NewStorage(cfg)
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	inventory := services.NewInventoryController(store.Rides, 5, time.Millisecond)
	bookings := services.NewBookingService(store, inventory, services.NewMemoryIdempotencyStore(time.Hour), nil,
		services.BookingOptions{CompensationAttempts: 2, Backoff: time.Millisecond})

	return NewRouter(RouterDeps{
		Rides:     services.NewRideService(store, inventory, bookings, nil),
		Bookings:  bookings,
		Users:     services.NewUserService(store.Users, storage, testSecret, time.Hour),
		JWTSecret: testSecret,
		UploadDir: storage.UploadDir(),
	})
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body interface{}, headers ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func register(t *testing.T, r http.Handler, name, userType string) (token, id string) {
	t.Helper()
	w, body := doJSON(t, r, "POST", "/api/auth/register", "", gin.H{
		"email":    name + "@example.com",
		"password": "secret123",
		"fullName": name,
		"userType": userType,
	})
	require.Equal(t, 201, w.Code, w.Body.String())
	user := body["user"].(map[string]interface{})
	return body["token"].(string), user["id"].(string)
}

func offerRide(t *testing.T, r http.Handler, token string, seats int) string {
	t.Helper()
	w, body := doJSON(t, r, "POST", "/api/rides/offer", token, gin.H{
		"origin":        "Nairobi",
		"destination":   "Nakuru",
		"departureTime": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"seatsOffered":  seats,
		"pricePerSeat":  500,
	})
	require.Equal(t, 201, w.Code, w.Body.String())
	return body["id"].(string)
}

func TestAuthFlow(t *testing.T) {
	r := newTestRouter(t)
	register(t, r, "ann", "passenger")

	w, _ := doJSON(t, r, "POST", "/api/auth/register", "", gin.H{
		"email": "ann@example.com", "password": "secret123", "fullName": "Ann", "userType": "passenger",
	})
	assert.Equal(t, 409, w.Code)

	w, body := doJSON(t, r, "POST", "/api/auth/login", "", gin.H{"email": "ann@example.com", "password": "secret123"})
	require.Equal(t, 200, w.Code)
	assert.NotEmpty(t, body["token"])
	assert.NotContains(t, w.Body.String(), "password")

	w, _ = doJSON(t, r, "POST", "/api/auth/login", "", gin.H{"email": "ann@example.com", "password": "wrong-pass"})
	assert.Equal(t, 401, w.Code)

	w, _ = doJSON(t, r, "GET", "/api/users/profile", "", nil)
	assert.Equal(t, 401, w.Code)
	w, _ = doJSON(t, r, "GET", "/api/users/profile", "garbage", nil)
	assert.Equal(t, 401, w.Code)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	driverToken, driverID := register(t, r, "dan", "driver")
	aliceToken, _ := register(t, r, "alice", "passenger")
	bobToken, _ := register(t, r, "bob", "passenger")

	w, _ := doJSON(t, r, "POST", "/api/rides/offer", aliceToken, gin.H{
		"origin": "A", "destination": "B", "departureTime": time.Now().Add(time.Hour).Format(time.RFC3339), "seatsOffered": 2,
	})
	assert.Equal(t, 403, w.Code, "passengers cannot offer rides")

	rideID := offerRide(t, r, driverToken, 2)

	w, body := doJSON(t, r, "GET", "/api/rides/"+rideID, "", nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, driverID, body["driverId"])
	assert.NotContains(t, body, "version")

	w, _ = doJSON(t, r, "POST", "/api/bookings/book/"+rideID, aliceToken, nil)
	assert.Equal(t, 400, w.Code, "seats is required")
	w, _ = doJSON(t, r, "POST", "/api/bookings/book/"+rideID+"?seats=", aliceToken, nil)
	assert.Equal(t, 400, w.Code)
	w, _ = doJSON(t, r, "POST", "/api/bookings/book/"+rideID+"?seats=abc", aliceToken, nil)
	assert.Equal(t, 400, w.Code)
	w, _ = doJSON(t, r, "POST", "/api/bookings/book/"+rideID+"?seats=0", aliceToken, nil)
	assert.Equal(t, 400, w.Code)

	w, booking := doJSON(t, r, "POST", "/api/bookings/book/"+rideID+"?seats=2", aliceToken, nil, IdempotencyKeyHeader, "req-1")
	require.Equal(t, 201, w.Code, w.Body.String())
	bookingID := booking["id"].(string)

	w, replay := doJSON(t, r, "POST", "/api/bookings/book/"+rideID+"?seats=2", aliceToken, nil, IdempotencyKeyHeader, "req-1")
	require.Equal(t, 201, w.Code)
	assert.Equal(t, bookingID, replay["id"])

	w, ride := doJSON(t, r, "GET", "/api/rides/"+rideID, "", nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "FULL", ride["status"])
	assert.Equal(t, float64(0), ride["seatsAvailable"])

	w, _ = doJSON(t, r, "POST", "/api/bookings/book/"+rideID+"?seats=1", bobToken, nil)
	assert.Equal(t, 409, w.Code)

	w, _ = doJSON(t, r, "GET", "/api/bookings/details/"+bookingID, bobToken, nil)
	assert.Equal(t, 403, w.Code)
	w, _ = doJSON(t, r, "GET", "/api/bookings/details/"+bookingID, driverToken, nil)
	assert.Equal(t, 200, w.Code)

	w, _ = doJSON(t, r, "POST", "/api/bookings/cancel/"+bookingID, bobToken, nil)
	assert.Equal(t, 403, w.Code)

	w, body = doJSON(t, r, "POST", "/api/bookings/cancel/"+bookingID, aliceToken, nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, false, body["alreadyCancelled"])

	w, body = doJSON(t, r, "POST", "/api/bookings/cancel/"+bookingID, aliceToken, nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, true, body["alreadyCancelled"])

	w, ride = doJSON(t, r, "GET", "/api/rides/"+rideID, "", nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "OPEN", ride["status"])
	assert.Equal(t, float64(2), ride["seatsAvailable"])

	w, _ = doJSON(t, r, "GET", "/api/bookings/ride/"+rideID, driverToken, nil)
	assert.Equal(t, 200, w.Code)
	w, _ = doJSON(t, r, "GET", "/api/bookings/ride/"+rideID, aliceToken, nil)
	assert.Equal(t, 403, w.Code)
}

func TestUpdateRideStatusOverHTTP(t *testing.T) {
	r := newTestRouter(t)
	driverToken, _ := register(t, r, "dan", "driver")
	otherToken, _ := register(t, r, "eve", "driver")
	rideID := offerRide(t, r, driverToken, 3)

	w, _ := doJSON(t, r, "PUT", "/api/rides/"+rideID+"/status?status=PAUSED", driverToken, nil)
	assert.Equal(t, 400, w.Code)

	w, _ = doJSON(t, r, "PUT", "/api/rides/"+rideID+"/status?status=CANCELLED", otherToken, nil)
	assert.Equal(t, 403, w.Code)

	w, _ = doJSON(t, r, "PUT", "/api/rides/"+rideID+"/status?status=FULL", driverToken, nil)
	assert.Equal(t, 409, w.Code)

	w, _ = doJSON(t, r, "PUT", "/api/rides/"+rideID+"/status?status=COMPLETED", driverToken, nil)
	assert.Equal(t, 409, w.Code)

	w, body := doJSON(t, r, "PUT", "/api/rides/"+rideID+"/status?status=cancelled", driverToken, nil)
	require.Equal(t, 200, w.Code, w.Body.String())
	assert.Equal(t, "CANCELLED", body["status"])

	w, _ = doJSON(t, r, "GET", "/api/rides", "", nil)
	require.Equal(t, 200, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestProfileEndpoints(t *testing.T) {
	r := newTestRouter(t)
	token, id := register(t, r, "dan", "driver")

	w, body := doJSON(t, r, "PUT", "/api/users/profile", token, gin.H{"bio": "Daily commuter", "vehicleModel": "Probox"})
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "Daily commuter", body["bio"])
	assert.Equal(t, "dan", body["fullName"])

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\n0000IHDR"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/users/profile/picture", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "http://test.local/uploads/profiles/")

	w, body = doJSON(t, r, "GET", "/api/users/"+id, token, nil)
	require.Equal(t, 200, w.Code)
	assert.Equal(t, "Probox", body["vehicleModel"])
	assert.NotContains(t, body, "email")

	w, _ = doJSON(t, r, "GET", fmt.Sprintf("/api/users/%s", "missing"), token, nil)
	assert.Equal(t, 404, w.Code)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w, body := doJSON(t, r, "GET", "/health", "", nil)
	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "ok", body["status"])
}
