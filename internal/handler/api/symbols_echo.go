package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	drepo "KlineFeed/internal/domain/repository"
	"KlineFeed/pkg/logger"
)

// SymbolsHandler serves the published active-symbol view as a read
// replica for other processes (symbol-validation lookups and the like).
type SymbolsHandler struct {
	view drepo.SymbolView
	log  *logger.Logger
}

func NewSymbolsHandler(view drepo.SymbolView, log *logger.Logger) *SymbolsHandler {
	return &SymbolsHandler{view: view, log: log}
}

// RegisterRoutes registers the symbol view routes on Echo.
func (h *SymbolsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/symbols", h.getSymbols)
}

func (h *SymbolsHandler) getSymbols(c echo.Context) error {
	symbols, err := h.view.Active(c.Request().Context())
	if err != nil {
		h.log.Error("symbol view read failed", logger.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "symbol view unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":   len(symbols),
		"symbols": symbols,
	})
}
