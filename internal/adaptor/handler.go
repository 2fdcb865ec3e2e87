package adaptor

import (
	"encoding/json"
	"net/http"

	"identity-core/internal/usecase"
	"identity-core/pkg/apperror"
	"identity-core/pkg/utils"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	Auth      *AuthHandler
	TwoFactor *TwoFactorHandler
	User      *UserHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(service.Auth, log),
		TwoFactor: NewTwoFactorHandler(service.TwoFactor, log),
		User:      NewUserHandler(service.User, log),
	}
}

// decodeBody reads a JSON payload into dst and writes the 400 itself on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

// handleServiceError logs err with its full cause and writes the public
// rendering of it.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	code := apperror.CodeOf(err)
	if code.HTTPStatus() >= http.StatusInternalServerError {
		log.Error(operation+" failed", zap.String("code", string(code)), zap.Error(err))
	} else {
		log.Warn(operation+" failed", zap.String("code", string(code)), zap.Error(err))
	}
	utils.ResponseError(w, err)
}

func principal(w http.ResponseWriter, r *http.Request) (*utils.Principal, bool) {
	p, ok := utils.GetPrincipalFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Unauthorized")
	}
	return p, ok
}
