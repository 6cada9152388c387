package pkg

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/lendpanel/internal/domain"
)

// Toast types understood by the front-end toast handler.
const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastInfo    = "info"
)

// IsHTMX reports whether the request was issued by htmx.
func IsHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// Toast sets the HX-Trigger response header with a showToast event.
func Toast(c *gin.Context, message, toastType string) {
	trigger, _ := json.Marshal(map[string]any{
		"showToast": map[string]string{
			"message": message,
			"type":    toastType,
		},
	})
	c.Header("HX-Trigger", string(trigger))
}

// KeepContent tells htmx not to swap the response into the page, so the
// current content stays at its last rendered state.
func KeepContent(c *gin.Context) {
	c.Header("HX-Reswap", "none")
}

// PushURL asks htmx to push url into the browser history.
func PushURL(c *gin.Context, url string) {
	c.Header("HX-Push-Url", url)
}

// Redirect makes htmx perform a full client-side redirect.
func Redirect(c *gin.Context, url string) {
	c.Header("HX-Redirect", url)
}

// SafeMessage returns a message fit for end users. Messages of user-facing
// error codes pass through; anything else yields fallback so internal details
// do not leak.
func SafeMessage(err error, fallback string) string {
	var appErr *domain.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		switch appErr.Code {
		case domain.CodeNotFound, domain.CodeAlreadyExists, domain.CodeValidation,
			domain.CodeUnauthorized, domain.CodeUpstream:
			return appErr.Message
		}
	}
	return fallback
}
