package usecase

import (
	"context"
	"testing"

	"identity-core/internal/data/entity"
	"identity-core/internal/dto/request"
	"identity-core/pkg/apperror"
	"identity-core/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) register(email, username string) string {
	h.t.Helper()
	ctx := context.Background()
	require.NoError(h.t, h.svc.Auth.RequestSignup(ctx, &request.SignupRequest{Email: email, Username: username}))
	resp, err := h.svc.Auth.VerifyOTP(ctx, &request.VerifyOTPRequest{
		Type:     string(entity.VerificationRegister),
		Email:    email,
		Username: username,
		Password: testPassword,
		OTP:      h.lastCode(email),
	})
	require.NoError(h.t, err)
	return resp.User.ID
}

func TestRegistrationFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Auth.RequestSignup(ctx, &request.SignupRequest{Email: "a@x.com", Username: "alice"}))
	code := h.lastCode("a@x.com")

	req := &request.VerifyOTPRequest{
		Type:     string(entity.VerificationRegister),
		Email:    "a@x.com",
		Username: "alice",
		Password: testPassword,
		OTP:      code,
	}
	resp, err := h.svc.Auth.VerifyOTP(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, entity.RoleStandard, resp.User.Role)
	assert.True(t, resp.User.HasPassword)

	id, err := h.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, id.String())

	h.wait()
	assert.Equal(t, []string{"a@x.com"}, h.notifier.welcomes)

	_, err = h.svc.Auth.VerifyOTP(ctx, req)
	assert.Error(t, err, "repeating the verification must fail")
}

func TestRegistrationRejectsTakenIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser("a@x.com", "alice", testPassword, entity.RoleStandard)

	err := h.svc.Auth.RequestSignup(ctx, &request.SignupRequest{Email: "A@x.com", Username: "other"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	err = h.svc.Auth.RequestSignup(ctx, &request.SignupRequest{Email: "b@x.com", Username: "alice"})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestRegistrationWithWrongCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Auth.RequestSignup(ctx, &request.SignupRequest{Email: "a@x.com", Username: "alice"}))
	code := h.lastCode("a@x.com")
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	_, err := h.svc.Auth.VerifyOTP(ctx, &request.VerifyOTPRequest{
		Type: string(entity.VerificationRegister), Email: "a@x.com", Username: "alice",
		Password: testPassword, OTP: wrong,
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidOrExpiredCode)

	user, err := h.repo.User.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, user, "no identity without a valid code")
}

func TestRegistrationRequiresUsername(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Auth.VerifyOTP(context.Background(), &request.VerifyOTPRequest{
		Type: string(entity.VerificationRegister), Email: "a@x.com", Password: testPassword, OTP: "123456",
	})
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Metadata, "username")
}

func TestVerifyOTPUnknownType(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Auth.VerifyOTP(context.Background(), &request.VerifyOTPRequest{
		Type: "magic-link", Email: "a@x.com", Password: testPassword, OTP: "123456",
	})
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Metadata, "type")
}

func TestLoginVerificationChecksPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register("a@x.com", "alice")

	require.NoError(t, h.svc.Auth.ResendOTP(ctx, &request.ResendOTPRequest{Email: "a@x.com"}))
	_, err := h.svc.Auth.VerifyOTP(ctx, &request.VerifyOTPRequest{
		Type: string(entity.VerificationLogin), Username: "alice", Password: "not-the-password", OTP: h.lastCode("a@x.com"),
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidPassword)

	require.NoError(t, h.svc.Auth.ResendOTP(ctx, &request.ResendOTPRequest{Email: "a@x.com"}))
	resp, err := h.svc.Auth.VerifyOTP(ctx, &request.VerifyOTPRequest{
		Type: string(entity.VerificationLogin), Username: "alice", Password: testPassword, OTP: h.lastCode("a@x.com"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
}

func TestLoginVerificationUnknownIdentity(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Auth.VerifyOTP(context.Background(), &request.VerifyOTPRequest{
		Type: string(entity.VerificationLogin), Email: "ghost@x.com", Password: testPassword, OTP: "123456",
	})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register("a@x.com", "alice")

	require.NoError(t, h.svc.Auth.RequestPasswordReset(ctx, &request.PasswordResetRequest{Username: "alice"}))
	resp, err := h.svc.Auth.VerifyOTP(ctx, &request.VerifyOTPRequest{
		Type: string(entity.VerificationResetPassword), Email: "a@x.com", Password: "brand-new-pass", OTP: h.lastCode("a@x.com"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	h.wait()
	assert.Equal(t, []string{"a@x.com"}, h.notifier.resets)

	_, err = h.svc.Auth.Login(ctx, &request.LoginRequest{Email: "a@x.com", Password: testPassword}, utils.RequestMeta{})
	assert.ErrorIs(t, err, apperror.ErrInvalidPassword)
	_, err = h.svc.Auth.Login(ctx, &request.LoginRequest{Email: "a@x.com", Password: "brand-new-pass"}, utils.RequestMeta{})
	assert.NoError(t, err)
}

func TestPasswordResetRequestUnknownIdentity(t *testing.T) {
	h := newHarness(t)
	err := h.svc.Auth.RequestPasswordReset(context.Background(), &request.PasswordResetRequest{Email: "ghost@x.com"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPasswordLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.seedUser("a@x.com", "alice", testPassword, entity.RoleStandard)

	resp, err := h.svc.Auth.Login(ctx, &request.LoginRequest{Username: "alice", Password: testPassword}, utils.RequestMeta{})
	require.NoError(t, err)
	id, err := h.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	h.wait()
	assert.Empty(t, h.notifier.events, "standard logins are not reported")
}

func TestPasswordLoginCollapsesFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser("a@x.com", "alice", testPassword, entity.RoleStandard)

	_, unknown := h.svc.Auth.Login(ctx, &request.LoginRequest{Email: "ghost@x.com", Password: testPassword}, utils.RequestMeta{})
	_, wrong := h.svc.Auth.Login(ctx, &request.LoginRequest{Email: "a@x.com", Password: "wrong-password"}, utils.RequestMeta{})

	var a, b *apperror.Error
	require.ErrorAs(t, unknown, &a)
	require.ErrorAs(t, wrong, &b)
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.PublicMessage(), b.PublicMessage())
}

func TestPasswordLoginFederatedAccount(t *testing.T) {
	h := newHarness(t)
	h.seedUser("g@x.com", "google", "", entity.RoleStandard)

	resp, err := h.svc.Auth.Login(context.Background(), &request.LoginRequest{Email: "g@x.com", Password: "anything"}, utils.RequestMeta{})
	assert.ErrorIs(t, err, apperror.ErrFederatedAccountOnly)
	assert.Nil(t, resp)
}

func TestAdminLoginNotifies(t *testing.T) {
	h := newHarness(t)
	h.seedUser("root@x.com", "root", testPassword, entity.RoleAdmin)

	meta := utils.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "curl/8"}
	resp, err := h.svc.Auth.Login(context.Background(), &request.LoginRequest{Email: "root@x.com", Password: testPassword}, meta)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token, "2FA is advisory and does not block login")

	h.wait()
	require.Len(t, h.notifier.events, 1)
	event := h.notifier.events[0]
	assert.Equal(t, "admin_login", event.Action)
	assert.Equal(t, "root@x.com", event.Actor)
	assert.Equal(t, "false", event.Metadata["requires_2fa"])
	assert.Equal(t, "10.0.0.1", event.Metadata["ip_address"])
	assert.Equal(t, "curl/8", event.Metadata["user_agent"])
}

func TestNotificationFailureDoesNotFailRequest(t *testing.T) {
	h := newHarness(t)
	h.notifier.fail = true

	err := h.svc.Auth.RequestSignup(context.Background(), &request.SignupRequest{Email: "a@x.com", Username: "alice"})
	assert.NoError(t, err)
	h.wait()
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.seedUser("a@x.com", "alice", testPassword, entity.RoleStandard)
	bob := h.seedUser("b@x.com", "bob", testPassword, entity.RoleStandard)
	admin := h.seedUser("root@x.com", "root", testPassword, entity.RoleAdmin)

	aliceP := utils.PrincipalFromUser(alice)

	err := h.svc.Auth.ChangePassword(ctx, aliceP, &request.ChangePasswordRequest{
		CurrentPassword: "wrong-password", NewPassword: "another-pass",
	}, utils.RequestMeta{})
	assert.ErrorIs(t, err, apperror.ErrInvalidPassword)

	err = h.svc.Auth.ChangePassword(ctx, aliceP, &request.ChangePasswordRequest{
		ID: bob.ID.String(), CurrentPassword: testPassword, NewPassword: "another-pass",
	}, utils.RequestMeta{})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	require.NoError(t, h.svc.Auth.ChangePassword(ctx, aliceP, &request.ChangePasswordRequest{
		CurrentPassword: testPassword, NewPassword: "another-pass",
	}, utils.RequestMeta{}))
	assert.True(t, h.hasher.Verify("another-pass", *h.reload(alice.ID).PasswordHash))

	require.NoError(t, h.svc.Auth.ChangePassword(ctx, utils.PrincipalFromUser(admin), &request.ChangePasswordRequest{
		ID: bob.ID.String(), NewPassword: "set-by-admin",
	}, utils.RequestMeta{IPAddress: "127.0.0.1"}))
	assert.True(t, h.hasher.Verify("set-by-admin", *h.reload(bob.ID).PasswordHash))

	h.wait()
	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, "admin_password_change", h.notifier.events[0].Action)
	assert.Equal(t, bob.ID.String(), h.notifier.events[0].Metadata["target_id"])
}

func TestChangePasswordFederatedSelf(t *testing.T) {
	h := newHarness(t)
	user := h.seedUser("g@x.com", "google", "", entity.RoleStandard)

	err := h.svc.Auth.ChangePassword(context.Background(), utils.PrincipalFromUser(user), &request.ChangePasswordRequest{
		NewPassword: "first-password",
	}, utils.RequestMeta{})
	assert.ErrorIs(t, err, apperror.ErrFederatedAccountOnly)
}
