package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/middleware"
	"github.com/vibast-solutions/ms-go-inventory/app/service"
	"github.com/vibast-solutions/ms-go-inventory/app/types"
)

// Fakes embed the service interface; calling a method that is not overridden panics.
type fakeAccounts struct {
	service.AccountService
	register       func(*types.RegisterRequest) (*entity.User, error)
	verifySignup   func(*types.VerifySignupRequest) (*entity.User, error)
	forgotPassword func(*types.EmailRequest) error
	changePassword func(uint64, *types.ChangePasswordRequest) error
	updateRole     func(*entity.User, *types.UpdateRoleRequest) (*entity.User, error)
}

func (f *fakeAccounts) Register(_ context.Context, req *types.RegisterRequest) (*entity.User, error) {
	return f.register(req)
}

func (f *fakeAccounts) VerifySignup(_ context.Context, req *types.VerifySignupRequest) (*entity.User, error) {
	return f.verifySignup(req)
}

func (f *fakeAccounts) ForgotPassword(_ context.Context, req *types.EmailRequest) error {
	return f.forgotPassword(req)
}

func (f *fakeAccounts) ChangePassword(_ context.Context, userID uint64, req *types.ChangePasswordRequest) error {
	return f.changePassword(userID, req)
}

func (f *fakeAccounts) UpdateRole(_ context.Context, actor *entity.User, req *types.UpdateRoleRequest) (*entity.User, error) {
	return f.updateRole(actor, req)
}

type fakeSessions struct {
	service.SessionService
	login   func(*types.LoginRequest) (*service.Session, error)
	refresh func(*types.RefreshTokenRequest) (*service.Session, error)
	logout  func(uint64) error
}

func (f *fakeSessions) Login(_ context.Context, req *types.LoginRequest) (*service.Session, error) {
	return f.login(req)
}

func (f *fakeSessions) Refresh(_ context.Context, req *types.RefreshTokenRequest) (*service.Session, error) {
	return f.refresh(req)
}

func (f *fakeSessions) Logout(_ context.Context, userID uint64) error {
	return f.logout(userID)
}

type fakeProducts struct {
	service.ProductService
	create func(*entity.User, *types.CreateProductRequest) (*entity.Product, error)
	list   func(*types.ListProductsRequest) (*service.ProductPage, error)
	search func(*types.ListProductsRequest) (*service.ProductPage, error)
	get    func(uint64) (*entity.Product, error)
	update func(*entity.User, *types.UpdateProductRequest) (*entity.Product, error)
	delete func(*entity.User, uint64) error
}

func (f *fakeProducts) Create(_ context.Context, actor *entity.User, req *types.CreateProductRequest) (*entity.Product, error) {
	return f.create(actor, req)
}

func (f *fakeProducts) List(_ context.Context, req *types.ListProductsRequest) (*service.ProductPage, error) {
	return f.list(req)
}

func (f *fakeProducts) Search(_ context.Context, req *types.ListProductsRequest) (*service.ProductPage, error) {
	return f.search(req)
}

func (f *fakeProducts) Get(_ context.Context, id uint64) (*entity.Product, error) {
	return f.get(id)
}

func (f *fakeProducts) Update(_ context.Context, actor *entity.User, req *types.UpdateProductRequest) (*entity.Product, error) {
	return f.update(actor, req)
}

func (f *fakeProducts) Delete(_ context.Context, actor *entity.User, id uint64) error {
	return f.delete(actor, id)
}

type recordedEvent struct {
	event string
	ok    bool
}

type eventRecorder struct {
	events []recordedEvent
}

func (r *eventRecorder) RecordAuthEvent(event string, err error) {
	r.events = append(r.events, recordedEvent{event: event, ok: err == nil})
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	if env.StatusCode != rec.Code {
		t.Fatalf("envelope status %d does not match response status %d", env.StatusCode, rec.Code)
	}
	return env
}

func jsonContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func multipartContext(t *testing.T, method, target string, fields map[string]string, files map[string][]string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for field, names := range files {
		for _, name := range names {
			part, err := writer.CreateFormFile(field, name)
			if err != nil {
				t.Fatalf("create form file: %v", err)
			}
			_, _ = part.Write([]byte("\x89PNG\r\n\x1a\n-fake-image"))
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withUser(ctx echo.Context, user *entity.User) echo.Context {
	ctx.Set(middleware.ContextKeyUser, user)
	return ctx
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
