package collector

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIError is the JSON body of every failed collector response
type APIError struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newAPIError(status int, code, message string) *echo.HTTPError {
	return echo.NewHTTPError(status, &APIError{Code: code, Message: message})
}

func badRequest(code, message string) *echo.HTTPError {
	return newAPIError(http.StatusBadRequest, code, message)
}

func internalError(code, message string) *echo.HTTPError {
	return newAPIError(http.StatusInternalServerError, code, message)
}

func invalidTenant() *echo.HTTPError {
	return badRequest("invalid_tenant_id", "tenantId may only contain letters, digits, '-' and '_'")
}
