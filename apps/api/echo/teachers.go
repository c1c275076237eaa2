package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core/teacher"
)

type teacherApi struct {
	service *teacher.Service
}

func registerTeacherAPI(g *echo.Group, svc *teacher.Service) {
	api := teacherApi{service: svc}

	tg := g.Group("/teachers")
	tg.POST("", api.teacherCreate)
	tg.GET("", api.teacherQuery)

	// detail endpoints
	tg.GET("/:teacher_id", api.teacherRetrieve)
	tg.PUT("/:teacher_id", api.teacherUpdate)
	tg.DELETE("/:teacher_id", api.teacherDestroy)
}

// Handlers

func (api *teacherApi) teacherCreate(ctx echo.Context) error {
	data := new(teacher.NewTeacher)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	t, err := api.service.Create(ctx.Request().Context(), *data)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *teacherApi) teacherQuery(ctx echo.Context) error {
	var filter teacher.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	teachers, total, err := api.service.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []teacher.Teacher{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"teachers": teachers, "total": total})
}

func (api *teacherApi) teacherRetrieve(ctx echo.Context) error {
	t, err := api.service.Get(ctx.Request().Context(), ctx.Param("teacher_id"))
	if err != nil {
		return errors.Wrap(err, "getting teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) teacherUpdate(ctx echo.Context) error {
	data := new(teacher.UpdateTeacher)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	t, err := api.service.Update(ctx.Request().Context(), ctx.Param("teacher_id"), *data)
	if err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *teacherApi) teacherDestroy(ctx echo.Context) error {
	if err := api.service.Delete(ctx.Request().Context(), ctx.Param("teacher_id")); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}
