package echoapi

import (
	"github.com/labstack/echo/v4"
)

type (
	// Response is the envelope of every successful answer.
	Response struct {
		Success bool        `json:"success"`
		Message string      `json:"message,omitempty"`
		Data    interface{} `json:"data"`
	}

	// ErrorResponse is the envelope of every failed answer.
	ErrorResponse struct {
		Success bool        `json:"success"`
		Message string      `json:"message"`
		Error   interface{} `json:"error,omitempty"`
	}
)

func respond(ctx echo.Context, code int, data interface{}, msg ...string) error {
	res := Response{Success: true, Data: data}
	if len(msg) > 0 {
		res.Message = msg[0]
	}
	return ctx.JSON(code, res)
}
