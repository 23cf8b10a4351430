package utils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Meta    any        `json:"meta,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

func RespondOK(ctx *gin.Context, message string, data any) {
	ctx.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func RespondCreated(ctx *gin.Context, message string, data any) {
	ctx.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

func RespondPaginated(ctx *gin.Context, message string, data any, meta PageMeta) {
	ctx.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data, Meta: meta})
}

// RespondError maps err to a status code and writes the error envelope.
// Only server faults are logged.
func RespondError(ctx *gin.Context, err error) {
	appErr := ToAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		entry := logrus.WithError(err).WithFields(logrus.Fields{
			"method": ctx.Request.Method,
			"path":   ctx.FullPath(),
		})
		if rid, ok := ctx.Get(RequestIDKey); ok {
			entry = entry.WithField("request_id", rid)
		}
		entry.Error(appErr.Message)
	}
	AbortWithError(ctx, appErr)
}

func AbortWithError(ctx *gin.Context, appErr *AppError) {
	ctx.AbortWithStatusJSON(appErr.Status, Envelope{
		Success: false,
		Message: appErr.Message,
		Error:   &ErrorBody{Code: appErr.Code, Details: appErr.Fields},
	})
}

func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return ValidationFailed(FieldErrors(validationErrs))
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		return &AppError{
			Status:  http.StatusBadRequest,
			Code:    CodeValidation,
			Message: "Validation failed",
			Fields:  map[string]string{typeErr.Field: "must be of type " + typeErr.Type.String()},
		}
	case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return BadRequest("Malformed JSON body")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound("Resource not found")
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Conflict("Resource already exists")
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return Conflict("Resource is referenced by other records")
	}
	return Internal("Internal server error", err)
}
