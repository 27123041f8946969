package api

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"

	"kidspark/internal/booking"
	"kidspark/internal/metrics"
	"kidspark/internal/report"
)

func (s *Server) handleCreateBooking(c echo.Context) error {
	metrics.IncHTTP("create_booking")

	var req booking.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed request body"})
	}

	holder := holderID(c)
	if !s.limiter.Allow(holder) {
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many booking attempts, slow down"})
	}

	// The price is the venue's, never the client's.
	venue, err := s.db.GetVenue(c.Request().Context(), req.VenueID)
	if err != nil {
		return writeError(c, err)
	}
	req.Cost = venue.HourlyPrice

	ctx := booking.WithHolder(c.Request().Context(), holder)
	res, err := s.guard.TryReserve(ctx, req)
	if err != nil {
		return writeError(c, err)
	}

	s.cache.Invalidate(c.Request().Context(), res.VenueID, res.Date)
	return c.JSON(http.StatusCreated, res)
}

func (s *Server) handleMyBookings(c echo.Context) error {
	metrics.IncHTTP("my_bookings")

	reservations, err := s.db.ListByHolder(c.Request().Context(), holderID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": reservations})
}

type confirmRequest struct {
	PaymentRef string `json:"payment_ref"`
}

func (s *Server) handleConfirmBooking(c echo.Context) error {
	metrics.IncHTTP("confirm_booking")

	res, err := s.db.GetReservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	if res.HolderID != holderID(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your booking"})
	}

	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed request body"})
	}

	if err := s.guard.Confirm(c.Request().Context(), res.ID, req.PaymentRef); err != nil {
		return writeError(c, err)
	}
	s.cache.Invalidate(c.Request().Context(), res.VenueID, res.Date)
	return c.JSON(http.StatusOK, echo.Map{"status": "confirmed"})
}

func (s *Server) handleCancelBooking(c echo.Context) error {
	metrics.IncHTTP("cancel_booking")

	ctx := c.Request().Context()
	res, err := s.db.GetReservation(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	// Cancellation is allowed for the holder and for the venue owner.
	actor := holderID(c)
	if res.HolderID != actor {
		venue, err := s.db.GetVenue(ctx, res.VenueID)
		if err != nil {
			return writeError(c, err)
		}
		if venue.OwnerID != actor {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not allowed"})
		}
	}

	if err := s.guard.Cancel(ctx, res.ID); err != nil {
		return writeError(c, err)
	}
	s.cache.Invalidate(ctx, res.VenueID, res.Date)
	return c.JSON(http.StatusOK, echo.Map{"status": "cancelled"})
}

func (s *Server) handleOwnerBookings(c echo.Context) error {
	metrics.IncHTTP("owner_bookings")

	reservations, err := s.db.ListByOwner(c.Request().Context(), holderID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": reservations})
}

func (s *Server) handleOwnerExport(c echo.Context) error {
	metrics.IncHTTP("owner_export")

	reservations, err := s.db.ListByOwner(c.Request().Context(), holderID(c))
	if err != nil {
		return writeError(c, err)
	}

	var buf bytes.Buffer
	if err := report.WriteOwnerReport(&buf, reservations, s.now(), s.guard.Window()); err != nil {
		s.logger.Error().Err(err).Msg("owner export failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "report generation failed"})
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="bookings.xlsx"`)
	return c.Blob(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}
