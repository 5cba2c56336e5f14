// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the HTTP endpoints of the auth service.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports service liveness.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
