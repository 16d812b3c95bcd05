package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/organquest/backend/core"
	"github.com/organquest/backend/core/user"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that maps our errors
// onto the response envelope.
// signalShutdown is called in order to gracefully shutdown the Server whenever a
// core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		env := envelope{Success: false}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				env.Message = "missing or malformed token"
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				env.Message = msg
			} else {
				env.Message = http.StatusText(code)
			}
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			env.Errors = fldErrs
		case *core.ValidationError:
			code = http.StatusBadRequest
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				env.Errors = fldErrs
			} else {
				env.Message = origErr.Error()
			}
		default:
			switch origErr {
			case user.ErrNotFound:
				code = http.StatusNotFound
				env.Message = origErr.Error()
			case user.ErrInvalidCredentials:
				code = http.StatusUnauthorized
				env.Message = origErr.Error()
			case user.ErrSuperuserImmutable, user.ErrStudentForbidden:
				code = http.StatusForbidden
				env.Message = origErr.Error()
			case user.ErrUsernameExists:
				code = http.StatusBadRequest
				env.Errors = map[string]string{"username": origErr.Error()}
			default: // any other error is a server error
				code = http.StatusInternalServerError
				env.Message = http.StatusText(code)

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Username = claims.Username
				}
				logger.Error(env.Message, errors.Wrap(err, env.Message), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			env.Message = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, env)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
