package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/organquest/backend/core"
	"github.com/organquest/backend/core/progress"
	"github.com/organquest/backend/core/user"
)

type userApi struct {
	conf        *core.Config
	service     *user.Service
	progressSvc *progress.Service
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{conf: deps.Conf, service: deps.UserSvc, progressSvc: deps.ProgressSvc}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/register", api.userRegister)
	ug.POST("/login", api.userLogin)

	// authed endpoints
	ag := ug.Group("", jwt)
	ag.GET("/profile", api.userProfile)
	ag.PUT("/profile", api.userUpdateProfile)
	ag.GET("/stats", api.userStats)
}

type authResponse struct {
	User  user.User `json:"user"`
	Token string    `json:"token"`
}

// Handlers

func (api *userApi) userRegister(ctx echo.Context) error {
	data := new(user.NewUser)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.service); err != nil {
		return err
	}

	usr, err := api.service.Register(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}

	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return err
	}
	return respondMessage(ctx, http.StatusCreated, "Account created successfully", authResponse{User: usr, Token: token})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (api *userApi) userLogin(ctx echo.Context) error {
	data := new(loginRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	data.Username = core.CleanString(data.Username, true /* lower */)
	if data.Username == "" || data.Password == "" {
		return user.ErrInvalidCredentials
	}

	usr, err := api.service.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return err
	}

	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return err
	}
	return respondMessage(ctx, http.StatusOK, "Login successful", authResponse{User: usr, Token: token})
}

func (api *userApi) userProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"user": usr})
}

func (api *userApi) userUpdateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.service)
	if err != nil {
		return err
	}

	data := new(user.UpdateUser)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(usr, api.service); err != nil {
		return err
	}

	usr, err = api.service.UpdateProfile(ctx.Request().Context(), usr, *data)
	if err != nil {
		return err
	}
	return respondMessage(ctx, http.StatusOK, "Profile updated successfully", echo.Map{"user": usr})
}

func (api *userApi) userStats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	summary, err := api.progressSvc.Summary(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, summary)
}
