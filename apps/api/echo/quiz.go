package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/organquest/backend/core/progress"
)

type quizApi struct {
	service *progress.Service
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := quizApi{service: deps.ProgressSvc}

	qg := g.Group("/quiz")
	qg.GET("/leaderboard", api.leaderboard) // public
	qg.POST("/submit", api.submit, jwt)
	qg.GET("/history", api.history, jwt)
}

func (api *quizApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	data := new(progress.NewQuizResult)
	if err = ctx.Bind(data); err != nil {
		return err
	}

	res, err := api.service.SubmitQuiz(ctx.Request().Context(), claims.Subject, *data)
	if err != nil {
		return err
	}
	return respondMessage(ctx, http.StatusOK, "Quiz result recorded", res)
}

func (api *quizApi) history(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	hist, err := api.service.History(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, hist)
}

func (api *quizApi) leaderboard(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	entries, err := api.service.Leaderboard(ctx.Request().Context(), limit)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"leaderboard": entries})
}
