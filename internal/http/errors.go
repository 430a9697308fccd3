package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jmehdipour/credit-gateway/internal/engine"
	"github.com/jmehdipour/credit-gateway/internal/logger"
	"github.com/jmehdipour/credit-gateway/internal/service/lending"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func errorJSON(c echo.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidInput), errors.Is(err, lending.ErrInvalidCustomer):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, lending.ErrCustomerNotFound), errors.Is(err, lending.ErrLoanNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, lending.ErrDuplicatePhone):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}

	logger.Log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

// idParam parses a positive integer path parameter.
func idParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
