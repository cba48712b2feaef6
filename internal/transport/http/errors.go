package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"scheduleit/backend/internal/domain"
	"scheduleit/backend/internal/service"
)

const (
	codeValidation    = "validation"
	codeRuleViolation = "domain_rule_violation"
	codeNotFound      = "not_found"
	codeInternal      = "internal"
	codeRateLimited   = "rate_limited"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSONError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Error: msg, Code: code})
}

// respondBadRequest reports a body or query that could not be decoded.
func respondBadRequest(c *gin.Context, err error) {
	respondJSONError(c, http.StatusBadRequest, codeValidation, "malformed request: "+err.Error())
}

func respondError(c *gin.Context, log *slog.Logger, err error) {
	var (
		vErr  *service.ValidationError
		nfErr *service.NotFoundError
		rvErr *domain.RuleViolationError
	)
	switch {
	case errors.As(err, &vErr):
		respondJSONError(c, http.StatusBadRequest, codeValidation, vErr.Error())
	case errors.As(err, &rvErr):
		respondJSONError(c, http.StatusBadRequest, codeRuleViolation, rvErr.Error())
	case errors.As(err, &nfErr):
		respondJSONError(c, http.StatusNotFound, codeNotFound, nfErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.WarnContext(c.Request.Context(), "request deadline exceeded", slog.Any("err", err))
		respondJSONError(c, http.StatusGatewayTimeout, codeInternal, "deadline exceeded")
	default:
		log.ErrorContext(c.Request.Context(), "request failed",
			slog.Any("err", err),
			slog.String("path", c.FullPath()),
			slog.String("request_id", c.GetString("request_id")),
		)
		respondJSONError(c, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
