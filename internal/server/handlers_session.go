package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"emotrack/internal/digest"
	"emotrack/internal/logging"
	"emotrack/internal/series"
	"emotrack/internal/services"
	"emotrack/internal/session"
	"emotrack/internal/sessionstore"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

type startRequest struct {
	Participant string `json:"participant"`
	Notes       string `json:"notes"`
}

type sessionDetail struct {
	Session      sessionstore.Session `json:"session"`
	Digest       digest.Digest        `json:"digest"`
	KeyMoments   []string             `json:"key_moments"`
	Observations []series.Observation `json:"observations"`
}

func (s *Server) handleSnapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, s.opts.Controller.Snapshot())
}

func (s *Server) handleObservations(c echo.Context) error {
	observations := s.opts.Controller.Observations()
	if observations == nil {
		observations = []series.Observation{}
	}
	return c.JSON(http.StatusOK, observations)
}

func (s *Server) handleStart(c echo.Context) error {
	var req startRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}
	}
	snap, err := s.opts.Controller.Start(c.Request().Context(), session.StartOptions{
		Participant: req.Participant,
		Notes:       req.Notes,
	})
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleStop(c echo.Context) error {
	completed, err := s.opts.Controller.Stop(c.Request().Context())
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, sessionDetail{
		Session:      completed.Session,
		Digest:       completed.Digest,
		KeyMoments:   completed.Digest.KeyMoments(),
		Observations: completed.Observations,
	})
}

func (s *Server) handleReset(c echo.Context) error {
	if err := s.opts.Controller.Reset(); err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, s.opts.Controller.Snapshot())
}

func (s *Server) handleListSessions(c echo.Context) error {
	limit := defaultListLimit
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = min(parsed, maxListLimit)
	}
	sessions, err := s.opts.Archive.List(c.Request().Context(), limit)
	if err != nil {
		return s.errorResponse(c, err)
	}
	if sessions == nil {
		sessions = []sessionstore.Session{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleGetSession(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := s.opts.Archive.Resolve(ctx, c.Param("id"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	sess, err := s.opts.Archive.Get(ctx, id)
	if err != nil {
		return s.errorResponse(c, err)
	}
	observations, err := s.opts.Archive.Observations(ctx, id)
	if err != nil {
		return s.errorResponse(c, err)
	}
	if observations == nil {
		observations = []series.Observation{}
	}
	d := digest.Compute(observations)
	return c.JSON(http.StatusOK, sessionDetail{
		Session:      *sess,
		Digest:       d,
		KeyMoments:   d.KeyMoments(),
		Observations: observations,
	})
}

// errorResponse maps error markers onto HTTP statuses.
func (s *Server) errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrConfiguration), errors.Is(err, services.ErrDevice):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logging.ErrorWithContext(s.logger, "api request failed", "api_error",
			logging.Error(err),
			logging.String("path", c.Request().URL.Path),
		)
	}
	return c.JSON(status, map[string]any{
		"error":        err.Error(),
		"user_visible": services.UserVisible(err),
	})
}
