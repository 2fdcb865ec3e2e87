package adaptor

import (
	"net/http"

	"identity-core/internal/dto/request"
	"identity-core/internal/usecase"
	"identity-core/pkg/utils"

	"go.uber.org/zap"
)

type TwoFactorHandler struct {
	service usecase.TwoFactorService
	log     *zap.Logger
}

func NewTwoFactorHandler(service usecase.TwoFactorService, log *zap.Logger) *TwoFactorHandler {
	return &TwoFactorHandler{
		service: service,
		log:     log,
	}
}

// GetSecret handles GET /api/users/2fa/secret
func (h *TwoFactorHandler) GetSecret(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	secret, err := h.service.GenerateSecret(r.Context(), actor)
	if err != nil {
		handleServiceError(w, h.log, err, "generate 2FA secret")
		return
	}

	utils.ResponseSuccess(w, "Scan the QR code with your authenticator app", secret)
}

// Verify handles POST /api/users/2fa/verify
func (h *TwoFactorHandler) Verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	var req request.TwoFactorVerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.Enable(r.Context(), actor, &req, utils.RequestMetaFrom(r)); err != nil {
		handleServiceError(w, h.log, err, "verify 2FA")
		return
	}

	utils.ResponseSuccess(w, "Two-factor authentication is now enabled", nil)
}
