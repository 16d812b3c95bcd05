package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/organquest/backend/core"
	"github.com/organquest/backend/core/user"
)

var (
	tokenContextKey = "userToken"
	userContextKey  = "user"
	scopeContextKey = "scope"
)

// newJWTConfig builds the JWT auth middleware config.
func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Username      string `json:"username,omitempty"`
	Role          string `json:"role,omitempty"`
	AssignedGrade string `json:"assignedGrade,omitempty"`
}

func (c Claims) IsAdmin() bool     { return c.Role == user.RoleAdmin || c.Role == user.RoleSuperuser }
func (c Claims) IsSuperuser() bool { return c.Role == user.RoleSuperuser }

// Scope resolves the grades the claims holder may see.
func (c Claims) Scope() user.Scope {
	return user.ScopeFor(user.User{Role: c.Role, AssignedGrade: c.AssignedGrade})
}

// GetUserClaims builds the claims embedded in the account's bearer token.
func GetUserClaims(conf *core.Config, usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username:      usr.Username,
		Role:          usr.Role,
		AssignedGrade: usr.AssignedGrade,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(userContextKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(userContextKey, usr)
	return usr, nil
}

// getContextScope returns the grade scope resolved by the admin middleware.
func getContextScope(ctx echo.Context) user.Scope {
	if scope, ok := ctx.Get(scopeContextKey).(user.Scope); ok {
		return scope
	}
	return user.Scope{}
}
