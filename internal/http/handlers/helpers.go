package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Code: code, Message: message, Details: details}})
}

// bind decodes the JSON body and runs struct validation, writing the error
// response itself. Returns false when the handler should stop.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			detalles := make([]string, 0, len(fields))
			for _, f := range fields {
				detalles = append(detalles, f.Field()+" failed "+f.Tag())
			}
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", detalles)
			return false
		}
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return false
	}
	return true
}

func (h *Handler) conversacionExiste(c *gin.Context, id string) bool {
	_, err := h.Store.GetConversacion(c.Request.Context(), id)
	if err == nil {
		return true
	}
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
		return false
	}
	writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load conversation", err.Error())
	return false
}

func contextWithTimeout(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

func validarJSON(valor string) error {
	var v any
	return json.Unmarshal([]byte(valor), &v)
}
