package http

import (
	"errors"
	"net/http"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/ports"
	apperrors "livegrid/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CredentialHandler struct {
	issuer  ports.CredentialIssuer
	metrics Metrics
	logger  *zap.SugaredLogger
}

func NewCredentialHandler(issuer ports.CredentialIssuer, metrics Metrics, logger *zap.SugaredLogger) *CredentialHandler {
	return &CredentialHandler{
		issuer:  issuer,
		metrics: metrics,
		logger:  logger,
	}
}

func (h *CredentialHandler) SetupRoutes(router gin.IRouter) {
	router.POST("/proctor/register", h.register(domain.RoleProctor))
	router.POST("/participant/register", h.register(domain.RoleParticipant))
	router.POST("/e2e_test/register", h.RegisterSelfTest)
}

type registerRequest struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

// register answers with the bare credential as text/plain.
func (h *CredentialHandler) register(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, apperrors.NewInvalidInputError("body must be JSON with name and room"))
			return
		}

		cred, err := h.issuer.Issue(req.Name, req.Room, role)
		if err != nil {
			h.issueFailed(c, err, "role", role, "room", req.Room)
			return
		}

		h.metrics.RecordCredentialIssued(role)
		h.logger.Infow("credential issued",
			"role", role,
			"identity", req.Name,
			"room", req.Room,
		)
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(cred))
	}
}

func (h *CredentialHandler) RegisterSelfTest(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.NewInvalidInputError("body must be JSON with name"))
		return
	}

	pair, err := h.issuer.IssueSelfTestPair(req.Name)
	if err != nil {
		h.issueFailed(c, err, "role", "self-test", "identity", req.Name)
		return
	}

	h.metrics.RecordCredentialIssued(domain.RoleProducer)
	h.metrics.RecordCredentialIssued(domain.RoleConsumer)
	h.logger.Infow("self-test credentials issued",
		"identity", req.Name,
		"room", domain.SelfTestRoom(req.Name),
	)
	c.JSON(http.StatusOK, pair)
}

func (h *CredentialHandler) issueFailed(c *gin.Context, err error, keysAndValues ...interface{}) {
	if !errors.Is(err, domain.ErrInvalidGrant) && !errors.Is(err, domain.ErrUnknownRole) {
		h.metrics.RecordCredentialError()
		h.logger.Errorw("credential signing failed", append(keysAndValues, "error", err)...)
	}
	abortWithError(c, err)
}
