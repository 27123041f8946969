package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kidspark/internal/booking"
	"kidspark/internal/database"
	"kidspark/internal/model"
	"kidspark/internal/ratelimit"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := zerolog.Nop()
	rules := booking.DefaultRules()
	rules.RetryBackoff = time.Millisecond
	rules.AttemptTimeout = 0
	guard := booking.NewGuard(db, rules, &logger)
	limiter := ratelimit.New(600, 100)

	return NewServer(db, guard, nil, limiter, testSecret, &logger)
}

func bearerFor(t *testing.T, holderID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": holderID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doJSON(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func createVenue(t *testing.T, s *Server, ownerToken string) string {
	t.Helper()
	rec := doJSON(s, http.MethodPost, "/venues", ownerToken,
		`{"name":"Fun Fortress","location":"Dhanmondi","hourly_price":500}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var venue model.Venue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &venue))
	return venue.ID
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(s, http.MethodPost, "/venues", "", `{"name":"x","location":"y","hourly_price":1}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(s, http.MethodPost, "/bookings", "Bearer not-a-token", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVenueLifecycle(t *testing.T) {
	s := newTestServer(t)
	owner := bearerFor(t, "owner-1")
	intruder := bearerFor(t, "intruder")

	venueID := createVenue(t, s, owner)

	rec := doJSON(s, http.MethodGet, "/venues/"+venueID, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(s, http.MethodGet, "/venues?q=fortress", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fun Fortress")

	rec = doJSON(s, http.MethodPut, "/venues/"+venueID, intruder,
		`{"name":"Taken Over","location":"Dhanmondi","hourly_price":1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(s, http.MethodPut, "/venues/"+venueID, owner,
		`{"name":"Fun Fortress 2","location":"Dhanmondi","hourly_price":600}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(s, http.MethodDelete, "/venues/"+venueID, owner, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(s, http.MethodGet, "/venues/"+venueID, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateVenueValidation(t *testing.T) {
	s := newTestServer(t)
	owner := bearerFor(t, "owner-1")

	for name, body := range map[string]string{
		"missing name":     `{"name":"  ","location":"y","hourly_price":1}`,
		"missing location": `{"name":"x","location":"","hourly_price":1}`,
		"zero price":       `{"name":"x","location":"y","hourly_price":0}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(s, http.MethodPost, "/venues", owner, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestVenueSlots(t *testing.T) {
	s := newTestServer(t)
	owner := bearerFor(t, "owner-1")
	venueID := createVenue(t, s, owner)

	rec := doJSON(s, http.MethodGet, "/venues/"+venueID+"/slots", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(s, http.MethodGet, "/venues/"+venueID+"/slots?date=2030-06-01", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Slots []struct {
			From      string `json:"from"`
			Available bool   `json:"available"`
		} `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Slots, 14)

	rec = doJSON(s, http.MethodGet, "/venues/unknown/slots?date=2030-06-01", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t)
	owner := bearerFor(t, "owner-1")
	holder := bearerFor(t, "holder-1")
	rival := bearerFor(t, "holder-2")
	venueID := createVenue(t, s, owner)

	body := `{"venue_id":"` + venueID + `","date":"2030-06-01","from_time":"10am","to_time":"11am",` +
		`"holder_name":"Rahim","holder_phone":"01727199167","cost":500,` +
		`"payment_type":"Full Payment","payment_ref":"TXN123"}`

	rec := doJSON(s, http.MethodPost, "/bookings", holder, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res model.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, model.StatusPending, res.Status)
	assert.Equal(t, "holder-1", res.HolderID)

	// Same slot from another holder collides.
	rec = doJSON(s, http.MethodPost, "/bookings", rival, body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The slot shows as unavailable in the day view.
	slotsRec := doJSON(s, http.MethodGet, "/venues/"+venueID+"/slots?date=2030-06-01", "", "")
	require.Equal(t, http.StatusOK, slotsRec.Code)
	assert.Contains(t, slotsRec.Body.String(), `"from":"10am","to":"11am","available":false`)

	// Only the holder may confirm.
	rec = doJSON(s, http.MethodPost, "/bookings/"+res.ID+"/confirm", rival, `{"payment_ref":"TXN999"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(s, http.MethodPost, "/bookings/"+res.ID+"/confirm", holder, `{"payment_ref":"TXN999"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(s, http.MethodGet, "/bookings", holder, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), res.ID)

	rec = doJSON(s, http.MethodGet, "/owner/bookings", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), res.ID)

	// A stranger cannot cancel, the venue owner can.
	rec = doJSON(s, http.MethodPost, "/bookings/"+res.ID+"/cancel", rival, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(s, http.MethodPost, "/bookings/"+res.ID+"/cancel", owner, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// The freed slot can be taken again.
	rec = doJSON(s, http.MethodPost, "/bookings", rival, body)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateBooking_UnknownVenue(t *testing.T) {
	s := newTestServer(t)
	holder := bearerFor(t, "holder-1")

	rec := doJSON(s, http.MethodPost, "/bookings", holder,
		`{"venue_id":"no-such-venue","date":"2030-06-01","from_time":"10am","to_time":"11am",`+
			`"holder_phone":"01727199167","payment_type":"Cash On Sight"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestCreateBooking_CostComesFromVenue(t *testing.T) {
	s := newTestServer(t)
	owner := bearerFor(t, "owner-1")
	holder := bearerFor(t, "holder-1")
	venueID := createVenue(t, s, owner) // hourly_price 500

	rec := doJSON(s, http.MethodPost, "/bookings", holder,
		`{"venue_id":"`+venueID+`","date":"2030-06-01","from_time":"10am","to_time":"11am",`+
			`"holder_phone":"01727199167","payment_type":"Cash On Sight","cost":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res model.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, float64(500), res.Cost, "the client-supplied cost is ignored")
}

func TestOwnerVenues(t *testing.T) {
	s := newTestServer(t)
	owner := bearerFor(t, "owner-1")
	other := bearerFor(t, "owner-2")
	venueID := createVenue(t, s, owner)

	rec := doJSON(s, http.MethodGet, "/owner/venues", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), venueID)

	rec = doJSON(s, http.MethodGet, "/owner/venues", other, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), venueID)
}

func TestWriteError_BusyIsRetryable(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, writeError(c, database.ErrStoreBusy))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBookingValidation(t *testing.T) {
	s := newTestServer(t)
	owner := bearerFor(t, "owner-1")
	holder := bearerFor(t, "holder-1")
	venueID := createVenue(t, s, owner)

	t.Run("bad phone", func(t *testing.T) {
		rec := doJSON(s, http.MethodPost, "/bookings", holder,
			`{"venue_id":"`+venueID+`","date":"2030-06-01","from_time":"10am","to_time":"11am",`+
				`"holder_phone":"12345","payment_type":"Cash On Sight"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "11 digits")
	})

	t.Run("missing payment reference", func(t *testing.T) {
		rec := doJSON(s, http.MethodPost, "/bookings", holder,
			`{"venue_id":"`+venueID+`","date":"2030-06-01","from_time":"10am","to_time":"11am",`+
				`"holder_phone":"01727199167","payment_type":"Full Payment"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-adjacent window", func(t *testing.T) {
		rec := doJSON(s, http.MethodPost, "/bookings", holder,
			`{"venue_id":"`+venueID+`","date":"2030-06-01","from_time":"10am","to_time":"1pm",`+
				`"holder_phone":"01727199167","payment_type":"Cash On Sight"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBookingRateLimit(t *testing.T) {
	s := newTestServer(t)
	owner := bearerFor(t, "owner-1")
	holder := bearerFor(t, "holder-1")
	venueID := createVenue(t, s, owner)
	s.limiter = ratelimit.New(1, 1)

	body := `{"venue_id":"` + venueID + `","date":"2030-06-01","from_time":"10am","to_time":"11am",` +
		`"holder_phone":"01727199167","payment_type":"Cash On Sight"}`

	rec := doJSON(s, http.MethodPost, "/bookings", holder, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(s, http.MethodPost, "/bookings", holder, body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestOwnerExport(t *testing.T) {
	s := newTestServer(t)
	owner := bearerFor(t, "owner-1")
	holder := bearerFor(t, "holder-1")
	venueID := createVenue(t, s, owner)

	rec := doJSON(s, http.MethodPost, "/bookings", holder,
		`{"venue_id":"`+venueID+`","date":"2030-06-01","from_time":"3pm","to_time":"4pm",`+
			`"holder_name":"Karim","holder_phone":"01812345678","cost":500,"payment_type":"Cash On Sight"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(s, http.MethodGet, "/owner/bookings/export", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotEmpty(t, rec.Body.Bytes())
}
