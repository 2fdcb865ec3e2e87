package request

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
}

type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// PasswordResetRequest accepts either identifier.
type PasswordResetRequest struct {
	Email    string `json:"email" validate:"required_without=Username,omitempty,email,max=254"`
	Username string `json:"username" validate:"omitempty,max=50"`
}

// VerifyOTPRequest completes one of the OTP flows selected by Type.
// Registration needs both email and username; the other flows need one.
type VerifyOTPRequest struct {
	Type     string `json:"type" validate:"required,oneof=register-verification login-verification reset-password"`
	Email    string `json:"email" validate:"required_without=Username,omitempty,email,max=254"`
	Username string `json:"username" validate:"omitempty,min=3,max=50,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	OTP      string `json:"otp" validate:"required,numeric,min=6,max=10"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required_without=Username,omitempty,email,max=254"`
	Username string `json:"username" validate:"omitempty,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

// ChangePasswordRequest targets the caller unless ID names another identity.
type ChangePasswordRequest struct {
	ID              string `json:"id" validate:"omitempty,uuid"`
	CurrentPassword string `json:"current_password" validate:"omitempty,max=72"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}
