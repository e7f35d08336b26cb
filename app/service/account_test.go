package service_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/service"
	"github.com/vibast-solutions/ms-go-inventory/app/types"
)

func registerRequest() *types.RegisterRequest {
	return &types.RegisterRequest{
		FullName:   "Jane Doe",
		Username:   "jane",
		Email:      "jane@example.com",
		Password:   "password123",
		Timezone:   "Europe/Bucharest",
		Avatar:     testFile("avatar.png"),
		CoverImage: testFile("cover.png"),
	}
}

func TestRegister_CreatesUnverifiedUserWithCode(t *testing.T) {
	h := newHarness()

	user, err := h.accounts.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	stored := h.users.get(user.ID)
	if stored.IsVerified {
		t.Fatalf("new users must be unverified")
	}
	if stored.Role != entity.RoleUser {
		t.Fatalf("expected USER role, got %s", stored.Role)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "password123" || !h.hasher.Compare("password123", stored.PasswordHash) {
		t.Fatalf("password was not hashed through the hasher")
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(stored.OTPSignup.String) {
		t.Fatalf("expected 6 digit code, got %q", stored.OTPSignup.String)
	}
	if !stored.OTPSignupExpiresAt.Time.Equal(h.clock.Now().Add(5 * time.Minute)) {
		t.Fatalf("unexpected code expiry %v", stored.OTPSignupExpiresAt.Time)
	}
	if stored.AvatarPublicID == "" || stored.CoverImagePublicID == "" {
		t.Fatalf("expected both images stored, got %+v", stored)
	}

	msg := h.mail.last()
	if msg.To != "jane@example.com" || !strings.Contains(msg.Text, stored.OTPSignup.String) {
		t.Fatalf("expected verification mail with code, got %+v", msg)
	}
}

func TestRegister_Conflict(t *testing.T) {
	h := newHarness()
	h.seedUser("jane", true, entity.RoleUser)

	_, err := h.accounts.Register(context.Background(), registerRequest())
	if !errors.Is(err, service.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if h.media.uploads != 0 {
		t.Fatalf("expected no uploads on conflict")
	}
}

func TestRegister_WeakPassword(t *testing.T) {
	h := newHarness()
	req := registerRequest()
	req.Password = "short"

	_, err := h.accounts.Register(context.Background(), req)
	if !errors.Is(err, service.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestRegister_CoverUploadFailureDiscardsAvatar(t *testing.T) {
	h := newHarness()
	h.media.failAfter = 1

	_, err := h.accounts.Register(context.Background(), registerRequest())
	if !errors.Is(err, service.ErrMediaUpload) {
		t.Fatalf("expected ErrMediaUpload, got %v", err)
	}
	if len(h.media.deleted) != 1 || !strings.HasSuffix(h.media.deleted[0], "avatar.png") {
		t.Fatalf("expected avatar to be discarded, got %v", h.media.deleted)
	}
}

func TestRegister_StoreFailureDiscardsUploads(t *testing.T) {
	h := newHarness()
	h.users.createErr = errors.New("db down")

	_, err := h.accounts.Register(context.Background(), registerRequest())
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(h.media.deleted) != 2 {
		t.Fatalf("expected both uploads discarded, got %v", h.media.deleted)
	}
	if h.mail.count() != 0 {
		t.Fatalf("expected no mail when the user was not stored")
	}
}

func TestVerifySignup_SingleUse(t *testing.T) {
	h := newHarness()
	user, err := h.accounts.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	code := h.users.get(user.ID).OTPSignup.String

	verified, err := h.accounts.VerifySignup(context.Background(), &types.VerifySignupRequest{OTP: code})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !verified.IsVerified {
		t.Fatalf("expected verified user in response")
	}
	stored := h.users.get(user.ID)
	if !stored.IsVerified || stored.OTPSignup.Valid || stored.OTPSignupExpiresAt.Valid {
		t.Fatalf("expected verified user with cleared code, got %+v", stored)
	}
	if h.mail.last().Subject != "Welcome to Inventory" {
		t.Fatalf("expected welcome mail, got %q", h.mail.last().Subject)
	}

	if _, err := h.accounts.VerifySignup(context.Background(), &types.VerifySignupRequest{OTP: code}); !errors.Is(err, service.ErrInvalidOrExpired) {
		t.Fatalf("expected reused code to fail, got %v", err)
	}
}

func TestVerifySignup_Expired(t *testing.T) {
	h := newHarness()
	user, err := h.accounts.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	code := h.users.get(user.ID).OTPSignup.String

	h.clock.Advance(5 * time.Minute)
	if _, err := h.accounts.VerifySignup(context.Background(), &types.VerifySignupRequest{OTP: code}); !errors.Is(err, service.ErrInvalidOrExpired) {
		t.Fatalf("expected expired code to fail, got %v", err)
	}
	if h.users.get(user.ID).IsVerified {
		t.Fatalf("expired code must not verify")
	}
}

func TestVerifySignup_ConcurrentConsumeOnce(t *testing.T) {
	h := newHarness()
	user, err := h.accounts.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	code := h.users.get(user.ID).OTPSignup.String

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.accounts.VerifySignup(context.Background(), &types.VerifySignupRequest{OTP: code}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful verification, got %d", successes)
	}
}

func TestResendSignupOTP(t *testing.T) {
	h := newHarness()
	h.seedUser("verified", true, entity.RoleUser)
	pending := h.seedUser("pending", false, entity.RoleUser)

	if err := h.accounts.ResendSignupOTP(context.Background(), &types.EmailRequest{Email: "nobody@example.com"}); !errors.Is(err, service.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := h.accounts.ResendSignupOTP(context.Background(), &types.EmailRequest{Email: "verified@example.com"}); !errors.Is(err, service.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
	if err := h.accounts.ResendSignupOTP(context.Background(), &types.EmailRequest{Email: "pending@example.com"}); err != nil {
		t.Fatalf("resend failed: %v", err)
	}

	stored := h.users.get(pending.ID)
	if !stored.OTPSignup.Valid || h.mail.last().To != "pending@example.com" {
		t.Fatalf("expected a stored code and a mail")
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	h := newHarness()
	user := h.seedUser("jane", true, entity.RoleUser)
	login(t, h, "jane")

	if err := h.accounts.ForgotPassword(context.Background(), &types.EmailRequest{Email: "nobody@example.com"}); !errors.Is(err, service.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := h.accounts.ForgotPassword(context.Background(), &types.EmailRequest{Email: "jane@example.com"}); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}

	stored := h.users.get(user.ID)
	resetToken := stored.ForgetPasswordToken.String
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(resetToken) {
		t.Fatalf("expected 64 hex chars, got %q", resetToken)
	}
	if !stored.ForgetPasswordExpiresAt.Time.Equal(h.clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected reset expiry %v", stored.ForgetPasswordExpiresAt.Time)
	}
	if !strings.Contains(h.mail.last().Text, "https://app.test/reset-password/"+resetToken) {
		t.Fatalf("expected reset link in mail, got %q", h.mail.last().Text)
	}

	req := &types.ResetPasswordRequest{Token: resetToken, Password: "new-password", ConfirmPassword: "new-password"}
	if err := h.accounts.ResetPassword(context.Background(), req); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	stored = h.users.get(user.ID)
	if !h.hasher.Compare("new-password", stored.PasswordHash) {
		t.Fatalf("password was not changed")
	}
	if stored.ForgetPasswordToken.Valid || stored.RefreshToken.Valid {
		t.Fatalf("expected reset token and refresh token cleared")
	}

	if err := h.accounts.ResetPassword(context.Background(), req); !errors.Is(err, service.ErrInvalidOrExpired) {
		t.Fatalf("expected reused reset token to fail, got %v", err)
	}
}

func TestResetPassword_Expired(t *testing.T) {
	h := newHarness()
	h.seedUser("jane", true, entity.RoleUser)
	if err := h.accounts.ForgotPassword(context.Background(), &types.EmailRequest{Email: "jane@example.com"}); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	resetToken := h.users.get(1).ForgetPasswordToken.String

	h.clock.Advance(time.Hour + time.Second)
	err := h.accounts.ResetPassword(context.Background(), &types.ResetPasswordRequest{Token: resetToken, Password: "new-password", ConfirmPassword: "new-password"})
	if !errors.Is(err, service.ErrInvalidOrExpired) {
		t.Fatalf("expected ErrInvalidOrExpired, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	h := newHarness()
	user := h.seedUser("jane", true, entity.RoleUser)
	login(t, h, "jane")

	err := h.accounts.ChangePassword(context.Background(), user.ID, &types.ChangePasswordRequest{OldPassword: "nope", NewPassword: "new-password"})
	if !errors.Is(err, service.ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}

	err = h.accounts.ChangePassword(context.Background(), user.ID, &types.ChangePasswordRequest{OldPassword: "password123", NewPassword: "new-password"})
	if err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	stored := h.users.get(user.ID)
	if !h.hasher.Compare("new-password", stored.PasswordHash) {
		t.Fatalf("password was not changed")
	}
	if stored.RefreshToken.Valid {
		t.Fatalf("expected sessions to be revoked")
	}
}

func TestUpdateAccount(t *testing.T) {
	h := newHarness()
	user := h.seedUser("jane", true, entity.RoleUser)
	h.seedUser("john", true, entity.RoleUser)

	taken := "john"
	if _, err := h.accounts.UpdateAccount(context.Background(), user.ID, &types.UpdateAccountRequest{Username: &taken}); !errors.Is(err, service.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	name, email := "Jane Smith", "jane.smith@example.com"
	updated, err := h.accounts.UpdateAccount(context.Background(), user.ID, &types.UpdateAccountRequest{FullName: &name, Email: &email})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.FullName != name || updated.Email != email || updated.Username != "jane" {
		t.Fatalf("unexpected user after update: %+v", updated)
	}
	if h.users.get(user.ID).Email != email {
		t.Fatalf("update not persisted")
	}
}

func TestUpdateAvatar_ReplacesAndDiscardsOld(t *testing.T) {
	h := newHarness()
	user, err := h.accounts.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	oldID := user.AvatarPublicID

	updated, err := h.accounts.UpdateAvatar(context.Background(), user.ID, &types.UpdateImageRequest{File: testFile("new.png")})
	if err != nil {
		t.Fatalf("update avatar failed: %v", err)
	}
	if updated.AvatarPublicID == oldID || !strings.HasSuffix(updated.AvatarPublicID, "new.png") {
		t.Fatalf("avatar not replaced: %s", updated.AvatarPublicID)
	}
	if len(h.media.deleted) != 1 || h.media.deleted[0] != oldID {
		t.Fatalf("expected old avatar deleted, got %v", h.media.deleted)
	}
}

func TestUpdateCoverImage_StoreFailureDiscardsNew(t *testing.T) {
	h := newHarness()
	user := h.seedUser("jane", true, entity.RoleUser)
	h.users.updateErr = errors.New("db down")

	if _, err := h.accounts.UpdateCoverImage(context.Background(), user.ID, &types.UpdateImageRequest{File: testFile("cover.png")}); err == nil {
		t.Fatalf("expected error")
	}
	if len(h.media.deleted) != 1 || !strings.HasSuffix(h.media.deleted[0], "cover.png") {
		t.Fatalf("expected new cover discarded, got %v", h.media.deleted)
	}
}

func TestUpdateRole(t *testing.T) {
	h := newHarness()
	admin := h.seedUser("admin", true, entity.RoleAdmin)
	user := h.seedUser("jane", true, entity.RoleUser)

	if _, err := h.accounts.UpdateRole(context.Background(), admin, &types.UpdateRoleRequest{UserID: admin.ID, Role: entity.RoleUser}); !errors.Is(err, service.ErrSelfRoleChange) {
		t.Fatalf("expected ErrSelfRoleChange, got %v", err)
	}
	if _, err := h.accounts.UpdateRole(context.Background(), user, &types.UpdateRoleRequest{UserID: admin.ID, Role: entity.RoleUser}); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := h.accounts.UpdateRole(context.Background(), admin, &types.UpdateRoleRequest{UserID: 99, Role: entity.RoleAdmin}); !errors.Is(err, service.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	promoted, err := h.accounts.UpdateRole(context.Background(), admin, &types.UpdateRoleRequest{UserID: user.ID, Role: entity.RoleAdmin})
	if err != nil {
		t.Fatalf("update role failed: %v", err)
	}
	if promoted.Role != entity.RoleAdmin || h.users.get(user.ID).Role != entity.RoleAdmin {
		t.Fatalf("role not updated")
	}
}

func TestSeedAdmin(t *testing.T) {
	h := newHarness()

	admin, created, err := h.accounts.SeedAdmin(context.Background())
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if !created || admin.Role != entity.RoleAdmin || !admin.IsVerified {
		t.Fatalf("unexpected seeded admin: %+v created=%v", admin, created)
	}
	if admin.Username != "admin" || admin.Email != "admin@inventory.local" {
		t.Fatalf("expected normalized identifiers, got %s %s", admin.Username, admin.Email)
	}
	if !h.hasher.Compare("admin-password", admin.PasswordHash) {
		t.Fatalf("admin password not hashed")
	}

	again, created, err := h.accounts.SeedAdmin(context.Background())
	if err != nil || created || again.ID != admin.ID {
		t.Fatalf("expected existing admin to be reused, got %+v %v %v", again, created, err)
	}
}

func TestSeedAdmin_RequiresPassword(t *testing.T) {
	h := newHarness()
	h.cfg.Admin.Password = ""

	if _, _, err := h.accounts.SeedAdmin(context.Background()); err == nil {
		t.Fatalf("expected error without admin password")
	}
}

// requestReset stores a reset token for username and returns it.
func requestReset(t *testing.T, h *harness, username string) string {
	t.Helper()
	if err := h.accounts.ForgotPassword(context.Background(), &types.EmailRequest{Email: username + "@example.com"}); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	u, _ := h.users.FindByUsernameAndEmail(context.Background(), username, username+"@example.com")
	return u.ForgetPasswordToken.String
}

func resetTo(h *harness, resetToken, newPassword string) error {
	return h.accounts.ResetPassword(context.Background(), &types.ResetPasswordRequest{
		Token:           resetToken,
		Password:        newPassword,
		ConfirmPassword: newPassword,
	})
}

func TestUpdateAccount_KeepsResetCompletedAfterRead(t *testing.T) {
	h := newHarness()
	user := h.seedUser("jane", true, entity.RoleUser)
	resetToken := requestReset(t, h, "jane")

	var resetErr error
	h.users.afterRead = func() { resetErr = resetTo(h, resetToken, "new-password") }

	tz := "Europe/Paris"
	if _, err := h.accounts.UpdateAccount(context.Background(), user.ID, &types.UpdateAccountRequest{Timezone: &tz}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if resetErr != nil {
		t.Fatalf("reset failed: %v", resetErr)
	}

	stored := h.users.get(user.ID)
	if stored.Timezone != tz {
		t.Fatalf("profile change lost: %q", stored.Timezone)
	}
	if !h.hasher.Compare("new-password", stored.PasswordHash) {
		t.Fatalf("profile update restored the old password hash")
	}
	if stored.ForgetPasswordToken.Valid {
		t.Fatalf("profile update restored the consumed reset token")
	}
	if err := resetTo(h, resetToken, "attacker-password"); !errors.Is(err, service.ErrInvalidOrExpired) {
		t.Fatalf("expected consumed token to stay dead, got %v", err)
	}
}

func TestUpdateAvatar_KeepsResetCompletedAfterRead(t *testing.T) {
	h := newHarness()
	user := h.seedUser("jane", true, entity.RoleUser)
	resetToken := requestReset(t, h, "jane")

	h.users.afterRead = func() { _ = resetTo(h, resetToken, "new-password") }

	if _, err := h.accounts.UpdateAvatar(context.Background(), user.ID, &types.UpdateImageRequest{File: testFile("new.png")}); err != nil {
		t.Fatalf("update avatar failed: %v", err)
	}

	stored := h.users.get(user.ID)
	if !h.hasher.Compare("new-password", stored.PasswordHash) || stored.ForgetPasswordToken.Valid {
		t.Fatalf("avatar update overwrote the completed reset")
	}
}

func TestForgotPassword_KeepsResetCompletedAfterRead(t *testing.T) {
	h := newHarness()
	user := h.seedUser("jane", true, entity.RoleUser)
	first := requestReset(t, h, "jane")

	h.users.afterRead = func() { _ = resetTo(h, first, "new-password") }

	if err := h.accounts.ForgotPassword(context.Background(), &types.EmailRequest{Email: "jane@example.com"}); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}

	stored := h.users.get(user.ID)
	if !h.hasher.Compare("new-password", stored.PasswordHash) {
		t.Fatalf("second reset request restored the old password hash")
	}
	if !stored.ForgetPasswordToken.Valid || stored.ForgetPasswordToken.String == first {
		t.Fatalf("expected a fresh reset token, got %+v", stored.ForgetPasswordToken)
	}
	if err := resetTo(h, first, "attacker-password"); !errors.Is(err, service.ErrInvalidOrExpired) {
		t.Fatalf("expected consumed token to stay dead, got %v", err)
	}
}

func TestChangePassword_LosesToResetCompletedAfterRead(t *testing.T) {
	h := newHarness()
	user := h.seedUser("jane", true, entity.RoleUser)
	resetToken := requestReset(t, h, "jane")

	h.users.afterRead = func() { _ = resetTo(h, resetToken, "reset-password") }

	err := h.accounts.ChangePassword(context.Background(), user.ID, &types.ChangePasswordRequest{OldPassword: "password123", NewPassword: "changed-password"})
	if !errors.Is(err, service.ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if !h.hasher.Compare("reset-password", h.users.get(user.ID).PasswordHash) {
		t.Fatalf("change password overwrote the completed reset")
	}
}

func TestChangePassword_ClearsPendingResetToken(t *testing.T) {
	h := newHarness()
	user := h.seedUser("jane", true, entity.RoleUser)
	resetToken := requestReset(t, h, "jane")

	err := h.accounts.ChangePassword(context.Background(), user.ID, &types.ChangePasswordRequest{OldPassword: "password123", NewPassword: "changed-password"})
	if err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if err := resetTo(h, resetToken, "other-password"); !errors.Is(err, service.ErrInvalidOrExpired) {
		t.Fatalf("expected pending reset token to be revoked, got %v", err)
	}
}

func TestResendSignupOTP_VerifiedAfterRead(t *testing.T) {
	h := newHarness()
	pending := h.seedUser("pending", false, entity.RoleUser)
	if err := h.accounts.ResendSignupOTP(context.Background(), &types.EmailRequest{Email: "pending@example.com"}); err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	code := h.users.get(pending.ID).OTPSignup.String

	var verifyErr error
	h.users.afterRead = func() {
		_, verifyErr = h.accounts.VerifySignup(context.Background(), &types.VerifySignupRequest{OTP: code})
	}

	err := h.accounts.ResendSignupOTP(context.Background(), &types.EmailRequest{Email: "pending@example.com"})
	if verifyErr != nil {
		t.Fatalf("verify failed: %v", verifyErr)
	}
	if !errors.Is(err, service.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
	stored := h.users.get(pending.ID)
	if !stored.IsVerified || stored.OTPSignup.Valid {
		t.Fatalf("resend re-armed a consumed code: %+v", stored)
	}
}
