package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/mailer"
	"github.com/vibast-solutions/ms-go-inventory/app/media"
	"github.com/vibast-solutions/ms-go-inventory/app/password"
	"github.com/vibast-solutions/ms-go-inventory/app/repository"
	"github.com/vibast-solutions/ms-go-inventory/app/service"
	"github.com/vibast-solutions/ms-go-inventory/app/token"
	"github.com/vibast-solutions/ms-go-inventory/config"

	"golang.org/x/crypto/bcrypt"
)

// fakeUsers mimics the MySQL store, including the conditional updates, and hands
// out copies so callers cannot mutate stored rows without Update.
type fakeUsers struct {
	mu        sync.Mutex
	rows      map[uint64]*entity.User
	nextID    uint64
	createErr error
	updateErr error
	setOTPErr error

	// afterRead runs once, right after the next FindByID or FindByEmail returns its copy.
	afterRead func()
}

func (f *fakeUsers) readHook() {
	f.mu.Lock()
	hook := f.afterRead
	f.afterRead = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{rows: map[uint64]*entity.User{}}
}

func clone(u *entity.User) *entity.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (f *fakeUsers) get(id uint64) *entity.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.rows[id])
}

func (f *fakeUsers) put(u *entity.User) *entity.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u.ID = f.nextID
	f.rows[u.ID] = clone(u)
	return u
}

func (f *fakeUsers) find(match func(*entity.User) bool) *entity.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := uint64(1); id <= f.nextID; id++ {
		if u, ok := f.rows[id]; ok && match(u) {
			return clone(u)
		}
	}
	return nil
}

func (f *fakeUsers) Create(_ context.Context, user *entity.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.find(func(u *entity.User) bool { return u.Username == user.Username || u.Email == user.Email }) != nil {
		return repository.ErrDuplicate
	}
	f.put(user)
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id uint64) (*entity.User, error) {
	u := f.get(id)
	f.readHook()
	return u, nil
}

func (f *fakeUsers) FindByUsernameAndEmail(_ context.Context, username, email string) (*entity.User, error) {
	return f.find(func(u *entity.User) bool { return u.Username == username && u.Email == email }), nil
}

func (f *fakeUsers) FindByUsernameOrEmail(_ context.Context, username, email string) (*entity.User, error) {
	return f.find(func(u *entity.User) bool { return u.Username == username || u.Email == email }), nil
}

func (f *fakeUsers) FindConflicting(_ context.Context, excludeID uint64, username, email string) (*entity.User, error) {
	return f.find(func(u *entity.User) bool {
		return u.ID != excludeID && (u.Username == username || u.Email == email)
	}), nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	u := f.find(func(u *entity.User) bool { return u.Email == email })
	f.readHook()
	return u, nil
}

func (f *fakeUsers) FindByActiveOTP(_ context.Context, otp string, now time.Time) (*entity.User, error) {
	return f.find(func(u *entity.User) bool {
		return u.OTPSignup.Valid && u.OTPSignup.String == otp && u.OTPSignupExpiresAt.Time.After(now)
	}), nil
}

func (f *fakeUsers) FindByActiveResetToken(_ context.Context, tok string, now time.Time) (*entity.User, error) {
	return f.find(func(u *entity.User) bool {
		return u.ForgetPasswordToken.Valid && u.ForgetPasswordToken.String == tok && u.ForgetPasswordExpiresAt.Time.After(now)
	}), nil
}

func (f *fakeUsers) FindAnyByRole(_ context.Context, role entity.Role) (*entity.User, error) {
	return f.find(func(u *entity.User) bool { return u.Role == role }), nil
}

// Update writes the same profile and image columns as the SQL statement.
func (f *fakeUsers) Update(_ context.Context, user *entity.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.rows[user.ID]
	if !ok {
		return nil
	}
	stored.FullName = user.FullName
	stored.Username = user.Username
	stored.Email = user.Email
	stored.AvatarURL = user.AvatarURL
	stored.AvatarPublicID = user.AvatarPublicID
	stored.CoverImageURL = user.CoverImageURL
	stored.CoverImagePublicID = user.CoverImagePublicID
	stored.Timezone = user.Timezone
	return nil
}

func (f *fakeUsers) SetSignupOTP(_ context.Context, userID uint64, otp string, expiresAt time.Time) (bool, error) {
	if f.setOTPErr != nil {
		return false, f.setOTPErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[userID]
	if !ok || u.IsVerified {
		return false, nil
	}
	u.SetSignupOTP(otp, expiresAt)
	return true, nil
}

func (f *fakeUsers) SetResetToken(_ context.Context, userID uint64, tok string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.rows[userID]; ok {
		u.SetResetToken(tok, expiresAt)
	}
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, userID uint64, currentHash, newHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[userID]
	if !ok || u.PasswordHash != currentHash {
		return false, nil
	}
	u.PasswordHash = newHash
	u.RefreshToken.String, u.RefreshToken.Valid = "", false
	u.ClearResetToken()
	return true, nil
}

func (f *fakeUsers) ConsumeSignupOTP(_ context.Context, userID uint64, otp string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[userID]
	if !ok || !u.OTPSignup.Valid || u.OTPSignup.String != otp || !u.OTPSignupExpiresAt.Time.After(now) {
		return false, nil
	}
	u.IsVerified = true
	u.ClearSignupOTP()
	return true, nil
}

func (f *fakeUsers) ConsumeResetToken(_ context.Context, userID uint64, tok, hash string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[userID]
	if !ok || !u.ForgetPasswordToken.Valid || u.ForgetPasswordToken.String != tok || !u.ForgetPasswordExpiresAt.Time.After(now) {
		return false, nil
	}
	u.PasswordHash = hash
	u.ClearResetToken()
	u.RefreshToken.String, u.RefreshToken.Valid = "", false
	return true, nil
}

func (f *fakeUsers) SetRefreshToken(_ context.Context, userID uint64, tok string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.rows[userID]; ok {
		u.RefreshToken.String, u.RefreshToken.Valid = tok, true
	}
	return nil
}

func (f *fakeUsers) RotateRefreshToken(_ context.Context, userID uint64, current, next string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[userID]
	if !ok || !u.RefreshToken.Valid || u.RefreshToken.String != current {
		return false, nil
	}
	u.RefreshToken.String = next
	return true, nil
}

func (f *fakeUsers) ClearRefreshToken(_ context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.rows[userID]; ok {
		u.RefreshToken.String, u.RefreshToken.Valid = "", false
	}
	return nil
}

func (f *fakeUsers) UpdateRole(_ context.Context, userID uint64, role entity.Role) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[userID]
	if !ok {
		return false, nil
	}
	u.Role = role
	return true, nil
}

type fakeMedia struct {
	mu        sync.Mutex
	uploads   int
	deleted   []string
	failAfter int
}

func (f *fakeMedia) Upload(_ context.Context, file media.File) (media.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter > 0 && f.uploads >= f.failAfter {
		return media.Asset{}, errors.New("media host unavailable")
	}
	f.uploads++
	id := fmt.Sprintf("inventory/test/%d-%s", f.uploads, file.Name)
	return media.Asset{URL: "https://cdn.test/" + id, PublicID: id}, nil
}

func (f *fakeMedia) Delete(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (r *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingMailer) last() mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return mailer.Message{}
	}
	return r.sent[len(r.sent)-1]
}

func (r *recordingMailer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Now().Truncate(time.Second)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func syncRunner(task func()) { task() }

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			AccessSecret:    "access-secret",
			RefreshSecret:   "refresh-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
		},
		Tokens: config.TokenConfig{
			SignupOTPTTL:              5 * time.Minute,
			SignupOTPLength:           6,
			ResetTTL:                  time.Hour,
			ResendVerificationOnLogin: true,
		},
		Password: config.PasswordConfig{
			BcryptCost: bcrypt.MinCost,
			Policy:     config.PasswordPolicy{MinLength: 8},
		},
		AppBaseURL: "https://app.test",
		Admin: config.AdminConfig{
			Username: "Admin",
			Email:    "Admin@Inventory.Local",
			Password: "admin-password",
			FullName: "Admin",
			Timezone: "UTC",
		},
	}
}

type harness struct {
	cfg      *config.Config
	users    *fakeUsers
	media    *fakeMedia
	mail     *recordingMailer
	clock    *clock
	hasher   *password.BcryptHasher
	issuer   *token.Issuer
	accounts service.AccountService
	sessions service.SessionService
}

func newHarness() *harness {
	h := &harness{
		cfg:    testConfig(),
		users:  newFakeUsers(),
		media:  &fakeMedia{},
		mail:   &recordingMailer{},
		clock:  newClock(),
		hasher: password.NewBcryptHasher(bcrypt.MinCost),
	}
	h.issuer = token.NewIssuer(token.Config{
		AccessSecret:  h.cfg.JWT.AccessSecret,
		RefreshSecret: h.cfg.JWT.RefreshSecret,
		AccessTTL:     h.cfg.JWT.AccessTokenTTL,
		RefreshTTL:    h.cfg.JWT.RefreshTokenTTL,
	})
	opts := []service.Option{service.WithAsyncRunner(syncRunner), service.WithClock(h.clock.Now)}
	h.accounts = service.NewAccountService(h.users, h.hasher, h.media, h.mail, h.cfg, opts...)
	h.sessions = service.NewSessionService(h.users, h.issuer, h.hasher, h.mail, h.cfg, opts...)
	return h
}

// seedUser stores a user with the given password and verification state.
func (h *harness) seedUser(username string, verified bool, role entity.Role) *entity.User {
	u := &entity.User{
		FullName:   strings.ToUpper(username[:1]) + username[1:],
		Username:   username,
		Email:      username + "@example.com",
		Timezone:   "UTC",
		Role:       role,
		IsVerified: verified,
		CreatedAt:  h.clock.Now(),
		UpdatedAt:  h.clock.Now(),
	}
	if err := u.SetPassword(h.hasher, "password123"); err != nil {
		panic(err)
	}
	return h.users.put(u)
}

func testFile(name string) *media.File {
	return &media.File{
		Name:        name,
		ContentType: "image/png",
		Size:        4,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("data")), nil
		},
	}
}
