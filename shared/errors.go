package shared

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// AppError carries an HTTP status and a stable machine-readable code through
// the handler boundary. Internal detail stays in Err and is only logged,
// never serialized to the client.
type AppError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(statusCode int, code, message string) *AppError {
	return &AppError{StatusCode: statusCode, Code: code, Message: message}
}

func WrapAppError(statusCode int, code string, err error) *AppError {
	return &AppError{StatusCode: statusCode, Code: code, Err: err}
}

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// APIError is the wire shape of the session management API error responses.
type APIError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func ResponseError(c *fiber.Ctx, statusCode int, code string) error {
	return c.Status(statusCode).JSON(APIError{Success: false, Error: code})
}
