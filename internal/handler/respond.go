package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// All endpoints answer in the same envelope:
//
//	{ "success": bool, "message": string, "data": object|null }
//
// so the frontend needs exactly one response decoder.

func ok(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, echo.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, echo.Map{
		"success": false,
		"message": message,
	})
}

func badRequest(c echo.Context, message string) error {
	return fail(c, http.StatusBadRequest, message)
}
