package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/userhub/internal/accounts"
	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/cache"
	"github.com/geocoder89/userhub/internal/config"
	httpx "github.com/geocoder89/userhub/internal/http"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/repo/memory"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type testApp struct {
	router http.Handler
	svc    *accounts.Service
	tokens *auth.Manager
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Fields []struct {
				Field string `json:"field"`
				Rule  string `json:"rule"`
			} `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	svc := accounts.NewService(memory.NewAccountsRepo(), cache.New(time.Minute), prom)
	tokens := auth.NewManager("test-secret", 0)

	r := httpx.NewRouter(httpx.Deps{
		Config:   config.Config{Env: "test", ServiceName: "userhub-test"},
		Accounts: svc,
		Tokens:   tokens,
		Prom:     prom,
		Gatherer: reg,
	})

	return &testApp{router: r, svc: svc, tokens: tokens}
}

func (a *testApp) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) login(t *testing.T, email, password string) string {
	t.Helper()

	w := a.do(t, http.MethodPost, "/user/token", `{"email":"`+email+`","password":"`+password+`"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body=%s", email, w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return resp["token"]
}

func (a *testApp) tokenFor(t *testing.T, id int64, email string) string {
	t.Helper()

	tok, err := a.tokens.Issue(id, email)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body: %v body=%s", err, w.Body.String())
	}
	return m
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var e errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error: %v body=%s", err, w.Body.String())
	}
	return e
}

func TestCreateUser(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/user/create", `{"email":"test@example.com","password":"testpass","name":"Test name"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}

	body := decodeMap(t, w)
	if body["email"] != "test@example.com" || body["name"] != "Test name" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["password"]; ok {
		t.Fatalf("password must not be echoed: %v", body)
	}

	items, _, err := app.svc.List(context.Background(), 10, 0)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one account, got %d err=%v", len(items), err)
	}

	ok, err := app.svc.VerifyPassword(context.Background(), items[0].ID, "testpass")
	if err != nil || !ok {
		t.Fatalf("stored password should verify: ok=%v err=%v", ok, err)
	}
}

func TestCreateUser_NormalizesEmailDomain(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/user/create", `{"email":"Test2@EXAMPLE.com","password":"testpass"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}

	if got := decodeMap(t, w)["email"]; got != "Test2@example.com" {
		t.Fatalf("expected normalized email, got %v", got)
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	app := newTestApp(t)

	body := `{"email":"test@example.com","password":"testpass"}`
	if w := app.do(t, http.MethodPost, "/user/create", body, ""); w.Code != http.StatusCreated {
		t.Fatalf("first create: %d", w.Code)
	}

	w := app.do(t, http.MethodPost, "/user/create", body, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}

	e := decodeError(t, w)
	if len(e.Error.Details.Fields) != 1 || e.Error.Details.Fields[0].Field != "email" || e.Error.Details.Fields[0].Rule != "unique" {
		t.Fatalf("expected unique email field error, got %+v", e.Error.Details.Fields)
	}

	_, total, _ := app.svc.List(context.Background(), 10, 0)
	if total != 1 {
		t.Fatalf("expected one account after duplicate, got %d", total)
	}
}

func TestCreateUser_ShortPasswordCreatesNothing(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/user/create", `{"email":"test@example.com","password":"pw"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	_, total, _ := app.svc.List(context.Background(), 10, 0)
	if total != 0 {
		t.Fatalf("no account should exist, got %d", total)
	}
}

func TestCreateUser_RequiresJSON(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/user/create", strings.NewReader("email=a@b.c"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", w.Code)
	}
}

func TestToken(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.svc.CreateUser(context.Background(), "test@example.com", "testpass", accounts.Extra{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"valid", `{"email":"test@example.com","password":"testpass"}`, http.StatusOK},
		{"domain case differs", `{"email":"test@EXAMPLE.COM","password":"testpass"}`, http.StatusOK},
		{"wrong password", `{"email":"test@example.com","password":"wrong"}`, http.StatusBadRequest},
		{"unknown email", `{"email":"nobody@example.com","password":"testpass"}`, http.StatusBadRequest},
		{"missing password", `{"email":"test@example.com"}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := app.do(t, http.MethodPost, "/user/token", tc.body, "")
			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d body=%s", tc.wantCode, w.Code, w.Body.String())
			}

			body := decodeMap(t, w)
			_, hasToken := body["token"]

			if tc.wantCode == http.StatusOK && !hasToken {
				t.Fatalf("expected token in body: %v", body)
			}
			if tc.wantCode != http.StatusOK && hasToken {
				t.Fatalf("failed login must not carry a token: %v", body)
			}
		})
	}
}

func TestToken_BadCredentialsCode(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/user/token", `{"email":"nobody@example.com","password":"testpass"}`, "")
	if e := decodeError(t, w); e.Error.Code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %q", e.Error.Code)
	}
}

func TestToken_InactiveAccount(t *testing.T) {
	app := newTestApp(t)

	inactive := false
	if _, err := app.svc.CreateUser(context.Background(), "off@example.com", "testpass", accounts.Extra{IsActive: &inactive}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := app.do(t, http.MethodPost, "/user/token", `{"email":"off@example.com","password":"testpass"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inactive account, got %d", w.Code)
	}
}

func TestMe_RequiresAuth(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/user/me", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer") {
		t.Fatalf("expected WWW-Authenticate challenge, got %q", w.Header().Get("WWW-Authenticate"))
	}

	w = app.do(t, http.MethodGet, "/user/me", "", "not-a-token")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", w.Code)
	}
}

func TestMe_Get(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.svc.CreateUser(context.Background(), "test@example.com", "testpass", accounts.Extra{Name: "name"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	token := app.login(t, "test@example.com", "testpass")

	w := app.do(t, http.MethodGet, "/user/me", "", token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	body := decodeMap(t, w)
	if len(body) != 2 || body["name"] != "name" || body["email"] != "test@example.com" {
		t.Fatalf("unexpected profile: %v", body)
	}
}

func TestMe_PostNotAllowed(t *testing.T) {
	app := newTestApp(t)

	a, err := app.svc.CreateUser(context.Background(), "test@example.com", "testpass", accounts.Extra{})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	for _, token := range []string{"", app.tokenFor(t, a.ID, a.Email)} {
		w := app.do(t, http.MethodPost, "/user/me", `{}`, token)
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d body=%s", w.Code, w.Body.String())
		}
		if e := decodeError(t, w); e.Error.Code != "method_not_allowed" {
			t.Fatalf("unexpected code %q", e.Error.Code)
		}
		if !strings.Contains(w.Header().Get("Allow"), http.MethodGet) {
			t.Fatalf("expected Allow to list GET, got %q", w.Header().Get("Allow"))
		}
	}
}

func TestMe_Patch(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.svc.CreateUser(context.Background(), "test@example.com", "testpass", accounts.Extra{Name: "old"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	token := app.login(t, "test@example.com", "testpass")

	w := app.do(t, http.MethodPatch, "/user/me", `{"name":"new name","password":"newpassword123"}`, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	body := decodeMap(t, w)
	if body["name"] != "new name" || body["email"] != "test@example.com" {
		t.Fatalf("unexpected body: %v", body)
	}

	// the existing token keeps working and the new password is live
	if w := app.do(t, http.MethodGet, "/user/me", "", token); w.Code != http.StatusOK {
		t.Fatalf("token should survive a password change, got %d", w.Code)
	}
	app.login(t, "test@example.com", "newpassword123")

	w = app.do(t, http.MethodPost, "/user/token", `{"email":"test@example.com","password":"testpass"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("old password should be rejected, got %d", w.Code)
	}
}

func TestMe_PatchPartialAndInvalid(t *testing.T) {
	app := newTestApp(t)

	if _, err := app.svc.CreateUser(context.Background(), "test@example.com", "testpass", accounts.Extra{Name: "keep"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	token := app.login(t, "test@example.com", "testpass")

	w := app.do(t, http.MethodPatch, "/user/me", `{"password":"pw"}`, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short password, got %d", w.Code)
	}

	w = app.do(t, http.MethodPatch, "/user/me", `{}`, token)
	if w.Code != http.StatusOK {
		t.Fatalf("empty patch should succeed, got %d body=%s", w.Code, w.Body.String())
	}
	if decodeMap(t, w)["name"] != "keep" {
		t.Fatalf("name should be unchanged")
	}

	app.login(t, "test@example.com", "testpass")
}

func TestMe_DeactivatedAccountRejected(t *testing.T) {
	app := newTestApp(t)

	a, err := app.svc.CreateUser(context.Background(), "test@example.com", "testpass", accounts.Extra{})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	token := app.login(t, "test@example.com", "testpass")

	if w := app.do(t, http.MethodGet, "/user/me", "", token); w.Code != http.StatusOK {
		t.Fatalf("warm-up: %d", w.Code)
	}

	off := false
	if _, err := app.svc.AdminUpdate(context.Background(), a.ID, accounts.AdminUpdate{IsActive: &off}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if w := app.do(t, http.MethodGet, "/user/me", "", token); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after deactivation, got %d", w.Code)
	}
}

type adminFixture struct {
	app      *testApp
	userID   int64
	staffID  int64
	superID  int64
	userTok  string
	staffTok string
	superTok string
}

func newAdminFixture(t *testing.T) adminFixture {
	t.Helper()

	app := newTestApp(t)
	ctx := context.Background()

	user, err := app.svc.CreateUser(ctx, "user@example.com", "testpass", accounts.Extra{Name: "user"})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	staff, err := app.svc.CreateUser(ctx, "staff@example.com", "testpass", accounts.Extra{IsStaff: true})
	if err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	super, err := app.svc.CreateSuperuser(ctx, "admin@example.com", "testpass", "admin")
	if err != nil {
		t.Fatalf("seed superuser: %v", err)
	}

	return adminFixture{
		app:      app,
		userID:   user.ID,
		staffID:  staff.ID,
		superID:  super.ID,
		userTok:  app.tokenFor(t, user.ID, user.Email),
		staffTok: app.tokenFor(t, staff.ID, staff.Email),
		superTok: app.tokenFor(t, super.ID, super.Email),
	}
}

func TestAdmin_RequiresStaff(t *testing.T) {
	f := newAdminFixture(t)

	if w := f.app.do(t, http.MethodGet, "/admin/users", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", w.Code)
	}
	if w := f.app.do(t, http.MethodGet, "/admin/users", "", f.userTok); w.Code != http.StatusForbidden {
		t.Fatalf("regular user: expected 403, got %d", w.Code)
	}
	if w := f.app.do(t, http.MethodGet, "/admin/users", "", f.staffTok); w.Code != http.StatusOK {
		t.Fatalf("staff: expected 200, got %d", w.Code)
	}
}

func TestAdmin_List(t *testing.T) {
	f := newAdminFixture(t)

	w := f.app.do(t, http.MethodGet, "/admin/users?limit=2", "", f.superTok)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Items []map[string]any `json:"items"`
		Count int              `json:"count"`
		Total int              `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Count != 2 || resp.Total != 3 {
		t.Fatalf("expected 2 of 3, got count=%d total=%d", resp.Count, resp.Total)
	}
	if resp.Items[0]["email"] != "user@example.com" {
		t.Fatalf("expected id order, got %v", resp.Items[0]["email"])
	}
	for _, item := range resp.Items {
		if _, ok := item["password_hash"]; ok {
			t.Fatalf("hash leaked: %v", item)
		}
	}

	if w := f.app.do(t, http.MethodGet, "/admin/users?limit=0", "", f.superTok); w.Code != http.StatusBadRequest {
		t.Fatalf("limit=0: expected 400, got %d", w.Code)
	}
}

func TestAdmin_Get(t *testing.T) {
	f := newAdminFixture(t)

	w := f.app.do(t, http.MethodGet, "/admin/users/"+strconv.FormatInt(f.userID, 10), "", f.staffTok)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if decodeMap(t, w)["email"] != "user@example.com" {
		t.Fatalf("wrong account")
	}

	if w := f.app.do(t, http.MethodGet, "/admin/users/9999", "", f.staffTok); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := f.app.do(t, http.MethodGet, "/admin/users/abc", "", f.staffTok); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := f.app.do(t, http.MethodDelete, "/admin/users/1", "", f.superTok); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("delete: expected 405, got %d", w.Code)
	}
}

func TestAdmin_Create(t *testing.T) {
	f := newAdminFixture(t)

	w := f.app.do(t, http.MethodPost, "/admin/users", `{"email":"new@example.com","password1":"testpass","password2":"other"}`, f.staffTok)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("mismatch: expected 400, got %d", w.Code)
	}
	if e := decodeError(t, w); e.Error.Code != "password_mismatch" {
		t.Fatalf("expected password_mismatch, got %q", e.Error.Code)
	}

	w = f.app.do(t, http.MethodPost, "/admin/users", `{"email":"new@example.com","password1":"testpass","password2":"testpass","is_staff":true}`, f.staffTok)
	if w.Code != http.StatusForbidden {
		t.Fatalf("staff granting staff: expected 403, got %d", w.Code)
	}

	w = f.app.do(t, http.MethodPost, "/admin/users", `{"email":"new@example.com","password1":"testpass","password2":"testpass","name":"New"}`, f.staffTok)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	body := decodeMap(t, w)
	if body["is_staff"] != false || body["is_active"] != true {
		t.Fatalf("unexpected flags: %v", body)
	}

	f.app.login(t, "new@example.com", "testpass")
}

func TestAdmin_UpdateFlags(t *testing.T) {
	f := newAdminFixture(t)
	path := "/admin/users/" + strconv.FormatInt(f.userID, 10)

	if w := f.app.do(t, http.MethodPatch, path, `{"is_staff":true}`, f.staffTok); w.Code != http.StatusForbidden {
		t.Fatalf("staff changing flags: expected 403, got %d", w.Code)
	}

	w := f.app.do(t, http.MethodPatch, path, `{"is_staff":true}`, f.superTok)
	if w.Code != http.StatusOK {
		t.Fatalf("superuser: expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if decodeMap(t, w)["is_staff"] != true {
		t.Fatalf("is_staff not applied")
	}

	// promoted account can reach the admin surface on its existing token
	if w := f.app.do(t, http.MethodGet, "/admin/users", "", f.userTok); w.Code != http.StatusOK {
		t.Fatalf("promoted user: expected 200, got %d", w.Code)
	}
}

func TestAdmin_UpdateIgnoresLastLogin(t *testing.T) {
	f := newAdminFixture(t)
	path := "/admin/users/" + strconv.FormatInt(f.userID, 10)

	w := f.app.do(t, http.MethodPatch, path, `{"name":"renamed","last_login":"2000-01-01T00:00:00Z"}`, f.staffTok)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	body := decodeMap(t, w)
	if body["name"] != "renamed" {
		t.Fatalf("name not applied: %v", body)
	}
	if body["last_login"] != nil {
		t.Fatalf("last_login must stay system maintained, got %v", body["last_login"])
	}
}

func TestAdmin_DeactivateBlocksLogin(t *testing.T) {
	f := newAdminFixture(t)
	path := "/admin/users/" + strconv.FormatInt(f.userID, 10)

	if w := f.app.do(t, http.MethodPatch, path, `{"is_active":false}`, f.staffTok); w.Code != http.StatusOK {
		t.Fatalf("deactivate: %d", w.Code)
	}

	w := f.app.do(t, http.MethodPost, "/user/token", `{"email":"user@example.com","password":"testpass"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("inactive login: expected 400, got %d", w.Code)
	}
	if w := f.app.do(t, http.MethodGet, "/user/me", "", f.userTok); w.Code != http.StatusUnauthorized {
		t.Fatalf("inactive bearer: expected 401, got %d", w.Code)
	}
}

func TestAdmin_StaffCannotEditSuperuser(t *testing.T) {
	f := newAdminFixture(t)
	superPath := "/admin/users/" + strconv.FormatInt(f.superID, 10)

	for _, body := range []string{`{"password":"takeover1"}`, `{"email":"mine@example.com"}`, `{"is_active":false}`} {
		if w := f.app.do(t, http.MethodPatch, superPath, body, f.staffTok); w.Code != http.StatusForbidden {
			t.Fatalf("staff patching superuser with %s: expected 403, got %d", body, w.Code)
		}
	}

	w := f.app.do(t, http.MethodPost, "/user/token", `{"email":"admin@example.com","password":"takeover1"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("superuser password must be unchanged, got %d", w.Code)
	}
	f.app.login(t, "admin@example.com", "testpass")
}

func TestAdmin_StaffEditScope(t *testing.T) {
	f := newAdminFixture(t)

	other, err := f.app.svc.CreateUser(context.Background(), "staff2@example.com", "testpass", accounts.Extra{IsStaff: true})
	if err != nil {
		t.Fatalf("seed staff2: %v", err)
	}
	otherPath := "/admin/users/" + strconv.FormatInt(other.ID, 10)
	selfPath := "/admin/users/" + strconv.FormatInt(f.staffID, 10)

	if w := f.app.do(t, http.MethodPatch, otherPath, `{"password":"takeover1"}`, f.staffTok); w.Code != http.StatusForbidden {
		t.Fatalf("staff patching other staff: expected 403, got %d", w.Code)
	}
	if w := f.app.do(t, http.MethodPatch, selfPath, `{"name":"me"}`, f.staffTok); w.Code != http.StatusOK {
		t.Fatalf("staff patching self: expected 200, got %d", w.Code)
	}
	if w := f.app.do(t, http.MethodPatch, otherPath, `{"name":"renamed"}`, f.superTok); w.Code != http.StatusOK {
		t.Fatalf("superuser patching staff: expected 200, got %d", w.Code)
	}
	if w := f.app.do(t, http.MethodPatch, "/admin/users/9999", `{"name":"x"}`, f.staffTok); w.Code != http.StatusNotFound {
		t.Fatalf("missing target: expected 404, got %d", w.Code)
	}
}

func TestPasswordByteLimit(t *testing.T) {
	app := newTestApp(t)

	// 40 runes but 80 bytes
	long := strings.Repeat("é", 40)
	atLimit := strings.Repeat("é", 36)

	w := app.do(t, http.MethodPost, "/user/create", `{"email":"long@example.com","password":"`+long+`"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("create: expected 400, got %d body=%s", w.Code, w.Body.String())
	}
	e := decodeError(t, w)
	if len(e.Error.Details.Fields) != 1 || e.Error.Details.Fields[0].Field != "password" || e.Error.Details.Fields[0].Rule != "maxbytes" {
		t.Fatalf("expected maxbytes error on password, got %+v", e.Error.Details.Fields)
	}

	w = app.do(t, http.MethodPost, "/user/create", `{"email":"ok@example.com","password":"`+atLimit+`"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("72-byte password: expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	token := app.login(t, "ok@example.com", atLimit)

	if w := app.do(t, http.MethodPatch, "/user/me", `{"password":"`+long+`"}`, token); w.Code != http.StatusBadRequest {
		t.Fatalf("patch: expected 400, got %d", w.Code)
	}

	super, err := app.svc.CreateSuperuser(context.Background(), "admin@example.com", "testpass", "")
	if err != nil {
		t.Fatalf("seed superuser: %v", err)
	}
	body := `{"email":"adm@example.com","password1":"` + long + `","password2":"` + long + `"}`
	if w := app.do(t, http.MethodPost, "/admin/users", body, app.tokenFor(t, super.ID, super.Email)); w.Code != http.StatusBadRequest {
		t.Fatalf("admin create: expected 400, got %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	if w := app.do(t, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz: %d", w.Code)
	}
	if w := app.do(t, http.MethodGet, "/readyz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("readyz: %d", w.Code)
	}

	w := app.do(t, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "userhub_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}
