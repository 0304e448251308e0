package errors

import (
	"net/http"

	"github.com/dalemusser/vpcroadmap/internal/app/system/auth"
	"go.uber.org/zap"
)

// ErrorLogger logs a failure with request context and answers the client
// with a user-facing message. Internal error text never reaches the client.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger wraps logger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{log: logger}
}

// LogServerError logs err at error level and writes a 500.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.log.Error(msg, e.fields(r, err)...)
	write(w, r, http.StatusInternalServerError, userMsg, backURL)
}

// LogServiceUnavailable logs err and writes a 503. Used when a backing
// source (Mongo) could not answer in time.
func (e *ErrorLogger) LogServiceUnavailable(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.log.Error(msg, e.fields(r, err)...)
	write(w, r, http.StatusServiceUnavailable, userMsg, "")
}

// LogBadRequest logs err at warn level and writes a 400.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.log.Warn(msg, e.fields(r, err)...)
	write(w, r, http.StatusBadRequest, userMsg, backURL)
}

// HTTPError writes status with userMsg without logging. For expected
// client mistakes (404, 409, 422).
func (e *ErrorLogger) HTTPError(w http.ResponseWriter, r *http.Request, status int, userMsg string) {
	write(w, r, status, userMsg, "")
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if u, ok := auth.CurrentUser(r); ok {
		fields = append(fields, zap.String("user_id", u.ID))
	}
	return fields
}
