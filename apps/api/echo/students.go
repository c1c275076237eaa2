package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolcrm/core/enrollment"
	"github.com/trezcool/schoolcrm/core/student"
)

type studentApi struct {
	service *student.Service
	manager *enrollment.Manager
}

func registerStudentAPI(g *echo.Group, svc *student.Service, manager *enrollment.Manager) {
	api := studentApi{service: svc, manager: manager}

	sg := g.Group("/students")
	sg.POST("", api.studentEnroll)
	sg.GET("", api.studentQuery)

	// detail endpoints
	dg := sg.Group("/:id")
	dg.GET("", api.studentRetrieve)
	dg.PUT("", api.studentUpdate)
	dg.DELETE("", api.studentDestroy)
	dg.POST("/transfer", api.studentTransfer)
}

// Handlers

func (api *studentApi) studentEnroll(ctx echo.Context) error {
	data := new(student.NewStudent)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	s, err := api.manager.Enroll(ctx.Request().Context(), *data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) studentQuery(ctx echo.Context) error {
	var filter student.QueryFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}
	students, total, err := api.service.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"students": students, "total": total})
}

func (api *studentApi) studentRetrieve(ctx echo.Context) error {
	s, err := api.service.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) studentUpdate(ctx echo.Context) error {
	data := new(student.UpdateStudent)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	s, err := api.service.Update(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) studentTransfer(ctx echo.Context) error {
	data := new(student.Transfer)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	s, err := api.manager.TransferStudent(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return errors.Wrap(err, "transferring student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) studentDestroy(ctx echo.Context) error {
	if err := api.manager.DeleteStudent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}
