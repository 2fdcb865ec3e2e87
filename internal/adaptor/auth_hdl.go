package adaptor

import (
	"net/http"

	"identity-core/internal/data/entity"
	"identity-core/internal/dto/request"
	"identity-core/internal/usecase"
	"identity-core/pkg/utils"

	"go.uber.org/zap"
)

type AuthHandler struct {
	service usecase.AuthService
	log     *zap.Logger
}

func NewAuthHandler(service usecase.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		log:     log,
	}
}

// Signup handles POST /api/users/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req request.SignupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.RequestSignup(r.Context(), &req); err != nil {
		handleServiceError(w, h.log, err, "signup")
		return
	}

	utils.ResponseSuccess(w, "OTP sent to your email", nil)
}

// ResendOTP handles POST /api/users/resend-otp
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req request.ResendOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.ResendOTP(r.Context(), &req); err != nil {
		handleServiceError(w, h.log, err, "resend OTP")
		return
	}

	utils.ResponseSuccess(w, "OTP sent to your email", nil)
}

// RequestPasswordReset handles PUT /api/users/reset-password
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req request.PasswordResetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), &req); err != nil {
		handleServiceError(w, h.log, err, "password reset request")
		return
	}

	utils.ResponseSuccess(w, "OTP sent to your email", nil)
}

// VerifyOTP handles POST /api/users/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req request.VerifyOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.VerifyOTP(r.Context(), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "verify OTP")
		return
	}

	switch entity.VerificationType(req.Type) {
	case entity.VerificationRegister:
		utils.ResponseCreated(w, "Registration successful", resp)
	case entity.VerificationResetPassword:
		utils.ResponseSuccess(w, "Password reset successfully", resp)
	default:
		utils.ResponseSuccess(w, "Login successful", resp)
	}
}

// Login handles POST /api/users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), &req, utils.RequestMetaFrom(r))
	if err != nil {
		handleServiceError(w, h.log, err, "login")
		return
	}

	utils.ResponseSuccess(w, "Login successful", resp)
}

// ChangePassword handles PUT /api/users/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal(w, r)
	if !ok {
		return
	}

	var req request.ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), actor, &req, utils.RequestMetaFrom(r)); err != nil {
		handleServiceError(w, h.log, err, "change password")
		return
	}

	utils.ResponseSuccess(w, "Password changed successfully", nil)
}
