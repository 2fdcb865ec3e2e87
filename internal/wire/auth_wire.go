package wire

import (
	"identity-core/internal/adaptor"
	"identity-core/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

func wireAuth(r chi.Router, authHandler *adaptor.AuthHandler, guard *middleware.Guard) {
	// ==================== PUBLIC ROUTES ====================
	r.Post("/signup", authHandler.Signup)
	r.Post("/resend-otp", authHandler.ResendOTP)
	r.Put("/reset-password", authHandler.RequestPasswordReset)
	r.Post("/verify-otp", authHandler.VerifyOTP)
	r.Post("/login", authHandler.Login)

	// ==================== PROTECTED ROUTES ====================
	// self-or-admin is decided by the service from the body id
	r.With(guard.Authenticate()).Put("/change-password", authHandler.ChangePassword)
}

func wireTwoFactor(r chi.Router, twoFactorHandler *adaptor.TwoFactorHandler, guard *middleware.Guard) {
	r.Route("/2fa", func(r chi.Router) {
		r.Use(guard.Authenticate())

		r.Get("/secret", twoFactorHandler.GetSecret)
		r.Post("/verify", twoFactorHandler.Verify)
	})
}
