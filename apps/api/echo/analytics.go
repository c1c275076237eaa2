package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core/analytics"
)

func registerAnalyticsAPI(g *echo.Group, svc *analytics.Service) {
	g.GET("/financial-analytics", func(ctx echo.Context) error {
		res, err := svc.Financials(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "financial analytics")
		}
		return ctx.JSON(http.StatusOK, res)
	})
}
