package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/organquest/backend/core/progress"
)

type progressApi struct {
	service *progress.Service
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := progressApi{service: deps.ProgressSvc}

	pg := g.Group("/progress", jwt)
	pg.POST("/organ", api.organExplored)
	pg.GET("/organs", api.organList)
	pg.GET("/summary", api.summary)
}

func (api *progressApi) organExplored(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	data := new(progress.ExploreOrgan)
	if err = ctx.Bind(data); err != nil {
		return err
	}

	res, err := api.service.RecordOrganExplored(ctx.Request().Context(), claims.Subject, data.OrganName)
	if err != nil {
		return err
	}

	message := "Organ explored!"
	if res.AlreadyExplored {
		message = "Organ already explored"
	}
	return respondMessage(ctx, http.StatusOK, message, res)
}

func (api *progressApi) organList(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	list, err := api.service.ListOrgans(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, list)
}

func (api *progressApi) summary(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	summary, err := api.service.Summary(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, summary)
}
