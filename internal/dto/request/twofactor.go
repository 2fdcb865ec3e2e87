package request

// TwoFactorVerifyRequest enables two-factor authentication once Code proves
// the authenticator holds Secret. Email defaults to the caller.
type TwoFactorVerifyRequest struct {
	Email  string `json:"email" validate:"omitempty,email,max=254"`
	Secret string `json:"secret" validate:"required,max=128"`
	Code   string `json:"code" validate:"required,numeric,len=6"`
}
