package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// errorHandler renders every error as a json body.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		}
	} else {
		log.Err(err).Str("path", c.Path()).Msg("unexpected error in http handler")
	}

	if err := c.JSON(code, errorResponse{Code: code, Message: message}); err != nil {
		log.Err(err).Msg("failed to write error response")
	}
}
