package echoapi

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core/analytics"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/enrollment"
	"github.com/trezcool/schoolcrm/services/spreadsheet"
)

const importFileField = "file"

type classApi struct {
	service   *class.Service
	manager   *enrollment.Manager
	analytics *analytics.Service
}

func registerClassAPI(g *echo.Group, svc *class.Service, manager *enrollment.Manager, analyticsSvc *analytics.Service) {
	api := classApi{service: svc, manager: manager, analytics: analyticsSvc}

	cg := g.Group("/classes")
	cg.POST("", api.classCreate)
	cg.GET("", api.classQuery)
	cg.GET("/analytics", api.classesAnalytics)

	// detail endpoints
	dg := cg.Group("/:id")
	dg.GET("", api.classRetrieve)
	dg.PUT("", api.classUpdate)
	dg.DELETE("", api.classDestroy)
	dg.PATCH("/capacity", api.classSetCapacity)
	dg.GET("/analytics", api.classAnalytics)
	dg.GET("/roster.xlsx", api.classExportRoster)
	dg.POST("/students/import", api.classImportRoster)
}

// Handlers

func (api *classApi) classCreate(ctx echo.Context) error {
	data := new(class.NewClass)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	c, err := api.service.Create(ctx.Request().Context(), *data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *classApi) classQuery(ctx echo.Context) error {
	var filter class.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	classes, total, err := api.service.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"classes": classes, "total": total})
}

func (api *classApi) classRetrieve(ctx echo.Context) error {
	c, err := api.service.Get(ctx.Request().Context(), ctx.Param("id"), false)
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) classUpdate(ctx echo.Context) error {
	data := new(class.UpdateClass)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	c, err := api.manager.UpdateClass(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) classSetCapacity(ctx echo.Context) error {
	data := new(class.SetCapacity)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	c, err := api.manager.SetClassCapacity(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return errors.Wrap(err, "setting class capacity")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classApi) classDestroy(ctx echo.Context) error {
	if err := api.manager.DeleteClass(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *classApi) classAnalytics(ctx echo.Context) error {
	res, err := api.analytics.Class(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "class analytics")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *classApi) classesAnalytics(ctx echo.Context) error {
	res, err := api.analytics.Classes(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "classes analytics")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *classApi) classExportRoster(ctx echo.Context) error {
	c, err := api.service.Get(ctx.Request().Context(), ctx.Param("id"), true)
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	var buf bytes.Buffer
	if err = spreadsheet.ExportRoster(&buf, c); err != nil {
		return errors.Wrap(err, "exporting roster")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+spreadsheet.FileName(c)+`"`)
	return ctx.Blob(http.StatusOK, spreadsheet.ContentType, buf.Bytes())
}

func (api *classApi) classImportRoster(ctx echo.Context) error {
	fh, err := ctx.FormFile(importFileField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{importFileField: "an XLSX file is required"}).SetInternal(err)
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	rows, err := spreadsheet.ParseRoster(f)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{importFileField: err.Error()}).SetInternal(err)
	}
	report, err := api.manager.ImportRoster(ctx.Request().Context(), ctx.Param("id"), rows)
	if err != nil {
		return errors.Wrap(err, "importing roster")
	}
	return ctx.JSON(http.StatusOK, report)
}
