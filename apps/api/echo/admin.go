package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/organquest/backend/core/analytics"
	"github.com/organquest/backend/core/user"
)

type adminApi struct {
	service      *user.Service
	analyticsSvc *analytics.Service
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{service: deps.UserSvc, analyticsSvc: deps.AnalyticsSvc}

	ag := g.Group("/admin", jwt, adminMiddleware())
	ag.GET("/students", api.studentQuery)
	ag.GET("/students/:id", api.studentRetrieve)
	ag.GET("/analytics", api.analytics)

	// superuser only
	sg := g.Group("/admin", jwt, superuserMiddleware())
	sg.GET("/admins", api.adminQuery)
	sg.POST("/create-admin", api.adminCreate)
	sg.PUT("/admins/:id", api.adminUpdate)
	sg.DELETE("/admins/:id", api.adminDestroy)
}

// Handlers

func (api *adminApi) studentQuery(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return err
	}
	filter.Scope = getContextScope(ctx)

	students, total, err := api.service.FilterStudents(ctx.Request().Context(), *filter)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{
		"students": analytics.ListStudentMetrics(students),
		"total":    total,
		"page":     filter.Page,
		"limit":    filter.Limit,
	})
}

func (api *adminApi) studentRetrieve(ctx echo.Context) error {
	usr, err := api.service.GetStudent(ctx.Request().Context(), ctx.Param("id"), getContextScope(ctx))
	if err != nil {
		return err
	}
	metrics := analytics.ListStudentMetrics([]user.User{usr})
	return respond(ctx, http.StatusOK, echo.Map{"student": metrics[0]})
}

func (api *adminApi) analytics(ctx echo.Context) error {
	report, err := api.analyticsSvc.Compute(ctx.Request().Context(), getContextScope(ctx))
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, report)
}

func (api *adminApi) adminQuery(ctx echo.Context) error {
	admins, err := api.service.QueryAdmins(ctx.Request().Context())
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"admins": admins})
}

func (api *adminApi) adminCreate(ctx echo.Context) error {
	data := new(user.NewAdmin)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.service); err != nil {
		return err
	}

	usr, err := api.service.CreateAdmin(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return respondMessage(ctx, http.StatusCreated, "Admin account created", echo.Map{"admin": usr})
}

func (api *adminApi) adminUpdate(ctx echo.Context) error {
	data := new(user.UpdateAdmin)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.service); err != nil {
		return err
	}

	usr, err := api.service.UpdateAdmin(ctx.Request().Context(), ctx.Param("id"), *data)
	if err != nil {
		return err
	}
	return respondMessage(ctx, http.StatusOK, "Admin account updated", echo.Map{"admin": usr})
}

func (api *adminApi) adminDestroy(ctx echo.Context) error {
	if err := api.service.DeleteAdmin(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return respondMessage(ctx, http.StatusOK, "Admin account deleted")
}
