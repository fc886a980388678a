package api

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

func ErrorHandler(c *fiber.Ctx, err error) error {
	var (
		apiErr    Error
		valErr    ValidationError
		actionErr ActionError
		fiberErr  *fiber.Error
	)
	switch {
	case errors.As(err, &apiErr):
		logFailure(c, apiErr.Code, apiErr.Message)
		return c.Status(apiErr.Code).JSON(apiErr)
	case errors.As(err, &valErr):
		logFailure(c, valErr.Status, valErr.Error())
		return c.Status(valErr.Status).JSON(valErr)
	case errors.As(err, &actionErr):
		logFailure(c, actionErr.Status, actionErr.Message)
		return c.Status(actionErr.Status).JSON(actionErr)
	case errors.As(err, &fiberErr):
		logFailure(c, fiberErr.Code, fiberErr.Message)
		return c.Status(fiberErr.Code).JSON(NewError(fiberErr.Code, fiberErr.Message))
	}

	slog.Error("unhandled error", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrInternal("internal server error"))
}

func logFailure(c *fiber.Ctx, code int, msg string) {
	if code >= fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "code", code, "error", msg)
		return
	}
	slog.Debug("request rejected", "path", c.Path(), "code", code, "error", msg)
}

type Error struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

type ValidationError struct {
	Status int               `json:"status"`
	Errors map[string]string `json:"errors"`
}

func (e ValidationError) Error() string {
	return "validation failed"
}

func NewValidationError(errors map[string]string) ValidationError {
	return ValidationError{
		Status: fiber.StatusBadRequest,
		Errors: errors,
	}
}

// ActionError is the failure shape of mutation endpoints that answer with
// {success, message}.
type ActionError struct {
	Status  int               `json:"-"`
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func (e ActionError) Error() string {
	return e.Message
}

func NewActionError(status int, msg string) ActionError {
	return ActionError{Status: status, Message: msg}
}

// Error implements the Error interface
func (e Error) Error() string {
	return e.Message
}

func NewError(code int, err string) Error {
	return Error{
		Code:    code,
		Message: err,
	}
}

func ErrBadRequest() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid JSON request",
	}
}

func ErrInvalidID() Error {
	return Error{
		Code:    fiber.StatusBadRequest,
		Message: "invalid id given",
	}
}

func ErrForbidden(msg string) Error {
	return Error{
		Code:    fiber.StatusForbidden,
		Message: msg,
	}
}

func ErrNotFound[T any](arg T, resource string) Error {
	return Error{
		Code:    fiber.StatusNotFound,
		Message: fmt.Sprintf("%s with %v not found", resource, arg),
	}
}

func ErrInternal(msg string) Error {
	return Error{
		Code:    fiber.StatusInternalServerError,
		Message: msg,
	}
}
