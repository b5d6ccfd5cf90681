package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	intconfig "transitbook/internal/config"
	"transitbook/internal/domain/models"
	"transitbook/internal/events"
	"transitbook/internal/http/handlers"
	"transitbook/internal/http/middleware"
	"transitbook/internal/repositories"
	"transitbook/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testServer struct {
	router *gin.Engine
	store  *store.Store
	bus    *events.LocalBus
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	bus := events.NewLocalBus()
	st := store.New(bus)
	env := intconfig.Env{AuthJWTSecret: testSecret}
	r := NewRouter(env, &handlers.Handler{Store: st, Bus: bus})
	return testServer{router: r, store: st, bus: bus}
}

func token(t *testing.T, owner, role string) string {
	t.Helper()
	tok, err := middleware.SignToken([]byte(testSecret), middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)
	return tok
}

func (s testServer) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(data)
	} else {
		buf = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func bookingBody() map[string]any {
	return map[string]any{
		"route_from":     "Accra",
		"route_to":       "Kumasi",
		"departure_date": "2025-01-01",
		"departure_time": "08:00",
		"total_price":    120,
		"passengers":     1,
		"class":          "VIP",
	}
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMeRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/me/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/me/profile", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := middleware.SignToken([]byte("other-secret"), middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	})
	require.NoError(t, err)
	w = s.do(t, http.MethodGet, "/api/me/profile", other, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfileDefaultsForNewOwner(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/me/profile", token(t, "u1", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var p models.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, store.DefaultLoyaltyPoints, p.LoyaltyPoints)
}

func TestBookingLifecycle(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "u1", "")

	w := s.do(t, http.MethodPost, "/api/me/bookings", tok, bookingBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, "pending", created.Status)

	w = s.do(t, http.MethodGet, "/api/me/bookings?limit=5", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Bookings []models.Booking `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Bookings, 1)
	assert.Equal(t, created.ID, list.Bookings[0].ID)

	w = s.do(t, http.MethodPatch, "/api/me/bookings/"+created.ID, tok, map[string]any{"driver_name": "Kofi"})
	require.Equal(t, http.StatusOK, w.Code)
	var patched models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &patched))
	assert.Equal(t, "Kofi", patched.DriverName)
	assert.Equal(t, created.RouteTo, patched.RouteTo)

	w = s.do(t, http.MethodPost, "/api/me/bookings/"+created.ID+"/cancel", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, "/api/me/bookings/"+created.ID+"/cancel", tok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodDelete, "/api/me/bookings/"+created.ID, tok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, "/api/me/bookings/"+created.ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookingValidationError(t *testing.T) {
	s := newTestServer(t)
	body := bookingBody()
	body["departure_date"] = "tomorrow"

	w := s.do(t, http.MethodPost, "/api/me/bookings", token(t, "u1", ""), body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
}

func TestOtherOwnersBookingIsNotFound(t *testing.T) {
	s := newTestServer(t)
	b := s.store.AddBooking("u1", models.BookingFields{RouteFrom: "Accra", RouteTo: "Ho"})
	tok := token(t, "u2", "")

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/me/bookings/"+b.ID, tok, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPatch, "/api/me/bookings/"+b.ID, tok, map[string]any{"driver_name": "x"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/me/bookings/"+b.ID+"/e-ticket", tok, nil).Code)

	got, ok := s.store.GetBooking("u1", b.ID)
	require.True(t, ok)
	assert.Empty(t, got.DriverName)
}

func TestPatchCannotChangeStatus(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "u1", "")
	w := s.do(t, http.MethodPost, "/api/me/bookings", tok, bookingBody())
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = s.do(t, http.MethodPatch, "/api/me/bookings/"+created.ID, tok, map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")

	got, ok := s.store.GetBooking("u1", created.ID)
	require.True(t, ok)
	assert.Equal(t, "pending", got.Status)
	assert.Len(t, s.store.GetTransactions("u1", 50), 1)
}

func TestETicketDownload(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "u1", "")
	w := s.do(t, http.MethodPost, "/api/me/bookings", tok, bookingBody())
	var created models.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = s.do(t, http.MethodGet, "/api/me/bookings/"+created.ID+"/e-ticket", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), created.BookingReference)
}

func TestTransactionsAndActivities(t *testing.T) {
	s := newTestServer(t)
	tok := token(t, "u1", "")

	w := s.do(t, http.MethodPost, "/api/me/transactions", tok, map[string]any{"type": "sideways", "amount": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/me/transactions", tok, map[string]any{"type": "credit", "amount": 25})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/me/activities", tok, map[string]any{
		"activity_type": "profile_updated",
		"description":   "Changed phone number",
		"metadata":      map[string]string{"field": "phone"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodGet, "/api/me/transactions", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"credit"`)

	w = s.do(t, http.MethodGet, "/api/me/activities?limit=-1", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRedeemPointsAndAdmin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/me/points/redeem", token(t, "u1", ""), map[string]any{"points": 1000})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/points", token(t, "u1", "user"), map[string]any{"owner": "u1", "delta": 5})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/admin/points", token(t, "ops", "admin"), map[string]any{"owner": "u1", "delta": -10000})
	require.Equal(t, http.StatusOK, w.Code)
	p, _ := s.store.GetProfile("u1")
	assert.Equal(t, 0, p.LoyaltyPoints)
}

func TestAdminPointsRejectsOversizedDelta(t *testing.T) {
	s := newTestServer(t)
	admin := token(t, "ops", "admin")

	for _, delta := range []int{math.MaxInt, 1_000_001, -1_000_001} {
		w := s.do(t, http.MethodPost, "/api/admin/points", admin, map[string]any{"owner": "u1", "delta": delta})
		assert.Equal(t, http.StatusBadRequest, w.Code, "delta %d", delta)
	}
	p, _ := s.store.GetProfile("u1")
	assert.Equal(t, store.DefaultLoyaltyPoints, p.LoyaltyPoints)

	w := s.do(t, http.MethodPost, "/api/admin/points", admin, map[string]any{"owner": "u1", "delta": 1_000_000})
	require.Equal(t, http.StatusOK, w.Code)
	p, _ = s.store.GetProfile("u1")
	assert.Equal(t, store.DefaultLoyaltyPoints+1_000_000, p.LoyaltyPoints)
}

func TestEventsEndpointReportsQueryFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("information_schema\\.tables").WithArgs("store_events").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("store_events"))
	mock.ExpectQuery("SELECT id, channel, kind, entity_id, payload, created_at").
		WillReturnError(errors.New("connection reset"))

	bus := events.NewLocalBus()
	r := NewRouter(intconfig.Env{AuthJWTSecret: testSecret}, &handlers.Handler{
		Store:    store.New(bus),
		Bus:      bus,
		EventLog: &repositories.EventLogRepository{DB: db},
	})
	s := testServer{router: r}

	w := s.do(t, http.MethodGet, "/api/me/events/bookings", token(t, "u1", ""), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body.Code)
	assert.Equal(t, "event log query failed", body.Message)
	assert.NotContains(t, w.Body.String(), "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventsEndpointDisabledWithoutLog(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/me/events/bookings", token(t, "u1", ""), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRealtimeStreamsOwnerChannel(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/me/realtime/bookings?access_token=" + token(t, "u1", "")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	s.store.AddBooking("u2", models.BookingFields{RouteFrom: "Tema", RouteTo: "Ho"})
	created := s.store.AddBooking("u1", models.BookingFields{RouteFrom: "Accra", RouteTo: "Kumasi"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Channel string         `json:"channel"`
		Kind    events.Kind    `json:"kind"`
		Entity  models.Booking `json:"entity"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "bookings:u1", msg.Channel)
	assert.Equal(t, events.Insert, msg.Kind)
	assert.Equal(t, created.ID, msg.Entity.ID)
}

func TestRealtimeRejectsUnknownCollection(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/me/realtime/payments", token(t, "u1", ""), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
