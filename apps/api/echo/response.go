package echoapi

import "github.com/labstack/echo/v4"

// envelope is the wire format of every API response.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func respond(ctx echo.Context, code int, data interface{}) error {
	return ctx.JSON(code, envelope{Success: true, Data: data})
}

func respondMessage(ctx echo.Context, code int, message string, data ...interface{}) error {
	env := envelope{Success: true, Message: message}
	if len(data) > 0 {
		env.Data = data[0]
	}
	return ctx.JSON(code, env)
}
