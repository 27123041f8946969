// Package api exposes the booking service over HTTP for the mobile client.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"kidspark/internal/booking"
	"kidspark/internal/cache"
	"kidspark/internal/database"
	"kidspark/internal/ratelimit"
	"kidspark/internal/slot"
)

// Server wires the guard, store and supporting services into HTTP routes.
type Server struct {
	echo    *echo.Echo
	db      *database.DB
	guard   *booking.Guard
	cache   *cache.AvailabilityCache
	limiter *ratelimit.PerHolder
	logger  *zerolog.Logger
	secret  string
	now     func() time.Time
}

// NewServer builds the HTTP server. cache may be nil to disable caching.
func NewServer(db *database.DB, guard *booking.Guard, availCache *cache.AvailabilityCache, limiter *ratelimit.PerHolder, secret string, logger *zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())

	s := &Server{
		echo:    e,
		db:      db,
		guard:   guard,
		cache:   availCache,
		limiter: limiter,
		logger:  logger,
		secret:  secret,
		now:     time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.GET("/healthz", s.handleHealth)

	// Public browse endpoints.
	e.GET("/venues", s.handleListVenues)
	e.GET("/venues/:id", s.handleGetVenue)
	e.GET("/venues/:id/slots", s.handleVenueSlots)

	// Everything else requires the identity provider's token.
	auth := e.Group("", JWTAuth(s.secret))
	auth.POST("/venues", s.handleCreateVenue)
	auth.PUT("/venues/:id", s.handleUpdateVenue)
	auth.DELETE("/venues/:id", s.handleDeleteVenue)

	auth.POST("/bookings", s.handleCreateBooking)
	auth.GET("/bookings", s.handleMyBookings)
	auth.POST("/bookings/:id/confirm", s.handleConfirmBooking)
	auth.POST("/bookings/:id/cancel", s.handleCancelBooking)

	auth.GET("/owner/venues", s.handleOwnerVenues)
	auth.GET("/owner/bookings", s.handleOwnerBookings)
	auth.GET("/owner/bookings/export", s.handleOwnerExport)
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.db.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// writeError maps the error taxonomy onto distinct, actionable responses.
// A slot conflict tells the user to pick another slot; retrying the same
// request would conflict again deterministically.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, slot.ErrInvalidSlot):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "select a valid future date and an adjacent time window"})
	case errors.Is(err, booking.ErrInvalidContact):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone number must be 11 digits and start with 01"})
	case errors.Is(err, booking.ErrMissingPaymentRef):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "this payment type requires a transaction reference"})
	case errors.Is(err, booking.ErrSlotConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "this slot was just taken, please choose a different one"})
	case errors.Is(err, booking.ErrStoreUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "could not save the booking right now, try again shortly"})
	case errors.Is(err, database.ErrStoreBusy):
		// Read paths hit the store directly, without the guard's retries.
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "the store is busy, try again shortly"})
	case errors.Is(err, database.ErrWindowElapsed):
		return c.JSON(http.StatusGone, echo.Map{"error": "the confirmation window has elapsed, please book again"})
	case errors.Is(err, database.ErrReservationClosed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "this reservation was cancelled"})
	case errors.Is(err, database.ErrVenueBusy):
		return c.JSON(http.StatusConflict, echo.Map{"error": "the venue still has active bookings"})
	case errors.Is(err, database.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not allowed"})
	case errors.Is(err, database.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
