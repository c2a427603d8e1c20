package http

import (
	"errors"
	"html/template"
	"net/http"
	"strconv"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/ports"
	apperrors "livegrid/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"go.uber.org/zap"
)

// loginTemplate posts the hidden fields to the identity provider as soon as
// the page loads.
var loginTemplate = template.Must(template.New("sso_login").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Signing in</title></head>
<body onload="document.forms[0].submit()">
<form method="POST" action="{{.Action}}">
{{- range .Fields}}
<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{- end}}
<noscript><button type="submit">Continue</button></noscript>
</form>
</body>
</html>
`))

type SSOHandler struct {
	sso     ports.SSOService
	metrics Metrics
	logger  *zap.SugaredLogger
}

func NewSSOHandler(sso ports.SSOService, metrics Metrics, logger *zap.SugaredLogger) *SSOHandler {
	return &SSOHandler{
		sso:     sso,
		metrics: metrics,
		logger:  logger,
	}
}

func (h *SSOHandler) SetupRoutes(router gin.IRouter) {
	sso := router.Group("/sso")
	{
		sso.GET("/login", h.Login)
		sso.POST("/callback", h.Callback)
	}
}

func (h *SSOHandler) Login(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Render(http.StatusOK, render.HTML{
		Template: loginTemplate,
		Name:     "sso_login",
		Data:     h.sso.LoginForm(),
	})
}

// Callback receives the provider's form post and, once the session checks
// out, sends the browser back to the page it started from.
func (h *SSOHandler) Callback(c *gin.Context) {
	cb := domain.SSOCallback{
		SessionID:  c.PostForm("session_id"),
		RequestURL: c.PostForm("request_url"),
		Unauth:     isTruthy(c.PostForm("unauth")),
	}

	target, err := h.sso.HandleCallback(c.Request.Context(), cb)
	if err != nil {
		outcome := callbackOutcome(err)
		h.metrics.RecordSSOCallback(outcome)
		h.logger.Warnw("sso callback rejected",
			"outcome", outcome,
			"error", err,
		)
		abortWithError(c, err)
		return
	}

	h.metrics.RecordSSOCallback("ok")
	c.Redirect(http.StatusMovedPermanently, target)
}

func callbackOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrSSOUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrRedirectNotAllowed):
		return "redirect_rejected"
	case errors.Is(err, domain.ErrSSOVerification):
		return "verification_failed"
	case apperrors.IsAppError(err):
		return "invalid"
	default:
		return "error"
	}
}

func isTruthy(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
