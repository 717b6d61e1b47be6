package api

import (
	"net/http"
	"strconv"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"github.com/gin-gonic/gin"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

func (s *Server) getStatus(c *gin.Context) {
	status := s.deps.Controller.Status()

	c.JSON(http.StatusOK, statusResponse{
		Running:   status.Running,
		LastValue: status.LastValue,
	})
}

func (s *Server) postStart(c *gin.Context) {
	if err := s.deps.Controller.Start(); err != nil {
		s.log.Error().Err(err).Msg("Start rejected")
		writeError(c, http.StatusServiceUnavailable, err)
		return
	}
	c.String(http.StatusOK, "OK")
}

func (s *Server) postStop(c *gin.Context) {
	s.deps.Controller.Stop()
	c.String(http.StatusOK, "OK")
}

func (s *Server) postInterval(c *gin.Context) {
	errFactory := errors.New()

	minutes, err := intervalMinutes(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, errFactory.Wrap(ErrInvalidRequest, err))
		return
	}

	if err := s.deps.Controller.SetIntervalMinutes(minutes); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	c.String(http.StatusOK, "OK")
}

// intervalMinutes takes the value from the query string, else from a JSON body
func intervalMinutes(c *gin.Context) (int, error) {
	if raw, ok := c.GetQuery("minutes"); ok {
		return strconv.Atoi(raw)
	}

	var req intervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return 0, err
	}
	if req.Minutes == nil {
		return 0, errors.New().WithMessage(ErrInvalidRequest, "minutes is required")
	}
	return *req.Minutes, nil
}

func (s *Server) getHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(c, http.StatusBadRequest, errors.New().WithMessage(ErrInvalidRequest, "limit must be between 1 and 1000"))
			return
		}
		limit = n
	}

	snapshots, err := s.deps.History.Recent(c.Request.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load history")
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, snapshots)
}

func writeError(c *gin.Context, code int, err error) {
	errCode := errors.CodeOf(err)
	if errCode == "" {
		errCode = errors.ErrInternal
	}

	c.AbortWithStatusJSON(code, errorResponse{
		Error:   string(errCode),
		Message: err.Error(),
	})
}
