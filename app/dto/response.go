package dto

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
)

// Response is the envelope every HTTP endpoint answers with.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Success    bool   `json:"success"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
}

type SessionResponse struct {
	User         *entity.User `json:"user,omitempty"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

type Empty struct{}

func NewResponse(status int, data any, message string) Response {
	if data == nil {
		data = Empty{}
	}
	return Response{
		StatusCode: status,
		Success:    status < http.StatusBadRequest,
		Data:       data,
		Message:    message,
	}
}

func JSON(c echo.Context, status int, data any, message string) error {
	return c.JSON(status, NewResponse(status, data, message))
}

func Error(c echo.Context, status int, message string) error {
	return c.JSON(status, NewResponse(status, nil, message))
}
