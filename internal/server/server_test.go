package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"bookbazaar/internal/app"
	"bookbazaar/pkg/auth"
	"bookbazaar/pkg/domain"
	"bookbazaar/pkg/store"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type failingStore struct {
	store.Store
	err error
}

func (f failingStore) ListBooks(context.Context, int64) ([]domain.Book, error) {
	return nil, f.err
}

func (f failingStore) Ping(context.Context) error {
	return f.err
}

type testServer struct {
	srv   *Server
	store *store.MemoryStore
}

func newTestServer(t *testing.T, mutate func(*app.Config, *Config)) testServer {
	t.Helper()
	sessions, err := auth.NewSessionIssuer([]byte("test-secret"), 0)
	if err != nil {
		t.Fatalf("session issuer: %v", err)
	}
	mem := store.NewMemoryStore()
	appCfg := app.Config{
		Store:      mem,
		Sessions:   sessions,
		Seeder:     app.NewSeeder(rand.NewPCG(3, 4), func() time.Time { return testNow }),
		SeedOnRead: true,
	}
	srvCfg := Config{}
	if mutate != nil {
		mutate(&appCfg, &srvCfg)
	}
	a, err := app.New(appCfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	srvCfg.App = a
	srv, err := New(srvCfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return testServer{srv: srv, store: mem}
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response headers %v", rec.Header())
	return nil
}

func register(t *testing.T, h http.Handler, email string) *http.Cookie {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/auth/register", `{"name":"Ana","email":"`+email+`","password":"secret1"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", rec.Code, rec.Body.String())
	}
	return sessionCookie(t, rec)
}

func createBook(t *testing.T, h http.Handler, cookie *http.Cookie, body string) bookView {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/books", body, cookie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create book status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Book bookView `json:"book"`
	}
	decodeBody(t, rec, &resp)
	return resp.Book
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	ts := newTestServer(t, nil)
	h := ts.srv.Router()
	paths := []string{"/auth/me", "/books", "/books/1", "/profile", "/sales", "/dashboard/stats"}
	for _, path := range paths {
		rec := doJSON(t, h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s status = %d, want 401", path, rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.Error != "Unauthorized" || resp.Code != codeUnauthorized {
			t.Fatalf("%s unexpected error body: %+v", path, resp)
		}
	}

	forged := &http.Cookie{Name: sessionCookieName, Value: "not-a-jwt"}
	if rec := doJSON(t, h, http.MethodGet, "/books", "", forged); rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token status = %d, want 401", rec.Code)
	}
}

func TestRegisterLoginSetCookie(t *testing.T) {
	ts := newTestServer(t, func(_ *app.Config, cfg *Config) { cfg.CookieSecure = true })
	h := ts.srv.Router()

	cookie := register(t, h, "ana@example.com")
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode || cookie.Path != "/" {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}
	if cookie.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Fatalf("cookie max age = %d", cookie.MaxAge)
	}

	rec := doJSON(t, h, http.MethodPost, "/auth/register", `{"name":"Ana","email":"ana@example.com","password":"secret1"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"wrong-pass"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/auth/login", `{"email":"ana@example.com","password":"secret1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body.String())
	}
	login := sessionCookie(t, rec)

	rec = doJSON(t, h, http.MethodGet, "/auth/me", "", login)
	var me struct {
		User domain.Seller `json:"user"`
	}
	decodeBody(t, rec, &me)
	if rec.Code != http.StatusOK || me.User.Email != "ana@example.com" {
		t.Fatalf("me status = %d user=%+v", rec.Code, me.User)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("me response leaks password field: %s", rec.Body.String())
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := doJSON(t, ts.srv.Router(), http.MethodPost, "/auth/logout", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	cookie := sessionCookie(t, rec)
	if cookie.MaxAge != -1 || cookie.Value != "" {
		t.Fatalf("expected cleared cookie, got %+v", cookie)
	}
}

func TestBookLifecycleAndOwnership(t *testing.T) {
	ts := newTestServer(t, nil)
	h := ts.srv.Router()
	ana := register(t, h, "ana@example.com")
	bob := register(t, h, "bob@example.com")

	book := createBook(t, h, ana, `{"title":"Dune","price":12.5,"stock":3}`)
	if book.Price != "12.50" || book.ImageURL != nil || book.Stock != 3 {
		t.Fatalf("unexpected created book: %+v", book)
	}

	rec := doJSON(t, h, http.MethodGet, "/books", "", bob)
	var list struct {
		Books []bookView `json:"books"`
	}
	decodeBody(t, rec, &list)
	if len(list.Books) != 0 {
		t.Fatalf("bob sees ana's books: %+v", list.Books)
	}

	path := "/books/" + itoa(book.ID)
	rec = doJSON(t, h, http.MethodPut, path, `{"title":"Mine","price":1,"stock":1}`, bob)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign update status = %d, want 404", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPut, "/books/9999", `{"title":"Mine","price":1,"stock":1}`, bob)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing update status = %d, want 404", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, path, "", bob)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPut, path, `{"title":"Dune Messiah","price":"9.99","stock":0,"image_url":"https://img/dm.png"}`, ana)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Message string   `json:"message"`
		Book    bookView `json:"book"`
	}
	decodeBody(t, rec, &updated)
	if updated.Message != "Book updated successfully" || updated.Book.Price != "9.99" || updated.Book.ImageURL == nil {
		t.Fatalf("unexpected update response: %+v", updated)
	}

	rec = doJSON(t, h, http.MethodDelete, path, "", ana)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, path, "", ana)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestCreateBookValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	h := ts.srv.Router()
	cookie := register(t, h, "ana@example.com")

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "zero price", body: `{"title":"Dune","price":0,"stock":1}`, code: codeValidation},
		{name: "missing stock", body: `{"title":"Dune","price":1}`, code: codeValidation},
		{name: "blank title", body: `{"title":"  ","price":1,"stock":1}`, code: codeValidation},
		{name: "non numeric price", body: `{"title":"Dune","price":"abc","stock":1}`, code: codeInvalidJSON},
		{name: "malformed", body: `{"title":`, code: codeInvalidJSON},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/books", tc.body, cookie)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp errorResponse
			decodeBody(t, rec, &resp)
			if resp.Code != tc.code {
				t.Fatalf("code = %q, want %q", resp.Code, tc.code)
			}
		})
	}

	book := createBook(t, h, cookie, `{"title":"Pamphlet","price":0.01,"stock":0}`)
	if book.Price != "0.01" {
		t.Fatalf("price = %q, want 0.01", book.Price)
	}
}

func TestInvalidBookID(t *testing.T) {
	ts := newTestServer(t, nil)
	h := ts.srv.Router()
	cookie := register(t, h, "ana@example.com")

	rec := doJSON(t, h, http.MethodDelete, "/books/abc", "", cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Error != "Invalid book ID" || resp.Code != codeInvalidBookID {
		t.Fatalf("unexpected error: %+v", resp)
	}
}

func TestSalesSeedsAndSummarizes(t *testing.T) {
	ts := newTestServer(t, nil)
	h := ts.srv.Router()
	cookie := register(t, h, "ana@example.com")

	rec := doJSON(t, h, http.MethodGet, "/sales", "", cookie)
	var empty struct {
		Sales   []saleView  `json:"sales"`
		Summary summaryView `json:"summary"`
	}
	decodeBody(t, rec, &empty)
	if len(empty.Sales) != 0 || empty.Summary.TotalRevenue != "0.00" || empty.Summary.AverageOrderValue != "0.00" {
		t.Fatalf("unexpected zero state: %+v", empty)
	}

	createBook(t, h, cookie, `{"title":"Dune","price":10,"stock":3}`)
	rec = doJSON(t, h, http.MethodGet, "/sales", "", cookie)
	var seeded struct {
		Sales   []saleView  `json:"sales"`
		Summary summaryView `json:"summary"`
	}
	decodeBody(t, rec, &seeded)
	if len(seeded.Sales) != 10 || seeded.Summary.TotalOrders != 10 {
		t.Fatalf("expected 10 seeded sales, got %d", len(seeded.Sales))
	}
	for _, sale := range seeded.Sales {
		if sale.Title != "Dune" || sale.Price != "10.00" || sale.Quantity < 1 || sale.Quantity > 5 {
			t.Fatalf("unexpected sale: %+v", sale)
		}
	}

	rec = doJSON(t, h, http.MethodPost, "/sales/seed", "", cookie)
	var again map[string]int
	decodeBody(t, rec, &again)
	if rec.Code != http.StatusOK || again["seeded"] != 0 {
		t.Fatalf("reseed status = %d body=%v", rec.Code, again)
	}

	rec = doJSON(t, h, http.MethodGet, "/sales/seed/job-1", "", cookie)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("job lookup without queue status = %d, want 503", rec.Code)
	}
}

func TestDashboardAndProfile(t *testing.T) {
	ts := newTestServer(t, func(cfg *app.Config, _ *Config) { cfg.SeedOnRead = false })
	h := ts.srv.Router()
	cookie := register(t, h, "ana@example.com")
	createBook(t, h, cookie, `{"title":"Dune","price":10,"stock":3}`)
	createBook(t, h, cookie, `{"title":"Emma","price":15,"stock":1}`)

	rec := doJSON(t, h, http.MethodGet, "/dashboard/stats", "", cookie)
	var dash struct {
		Stats dashboardView `json:"stats"`
	}
	decodeBody(t, rec, &dash)
	if dash.Stats.TotalBooks != 2 || dash.Stats.AveragePrice != "12.50" || dash.Stats.TotalRevenue != "0.00" {
		t.Fatalf("unexpected stats: %+v", dash.Stats)
	}

	rec = doJSON(t, h, http.MethodPut, "/profile", `{"name":"Ana B","email":"anab@example.com"}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile status = %d body=%s", rec.Code, rec.Body.String())
	}
	register(t, h, "bob@example.com")
	rec = doJSON(t, h, http.MethodPut, "/profile", `{"name":"Ana","email":"bob@example.com"}`, cookie)
	if rec.Code != http.StatusConflict {
		t.Fatalf("taken email status = %d, want 409", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPut, "/profile", `{"name":"","email":"x@example.com"}`, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/profile", "", cookie)
	var profile struct {
		User profileView `json:"user"`
	}
	decodeBody(t, rec, &profile)
	if profile.User.Email != "anab@example.com" || profile.User.BookCount != 2 || profile.User.TotalRevenue != "0.00" {
		t.Fatalf("unexpected profile: %+v", profile.User)
	}
}

func TestLoginRateLimited(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	ts := newTestServer(t, func(_ *app.Config, cfg *Config) {
		cfg.RedisAddr = redisSrv.Addr()
		cfg.LoginRateLimitPerMinute = 2
	})
	h := ts.srv.Router()
	body := `{"email":"nobody@example.com","password":"secret1"}`
	for i := 0; i < 2; i++ {
		if rec := doJSON(t, h, http.MethodPost, "/auth/login", body, nil); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i+1, rec.Code)
		}
	}
	rec := doJSON(t, h, http.MethodPost, "/auth/login", body, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestInternalErrorDetailsOnlyInDevMode(t *testing.T) {
	for _, dev := range []bool{false, true} {
		ts := newTestServer(t, func(appCfg *app.Config, cfg *Config) {
			appCfg.Store = failingStore{Store: appCfg.Store, err: errors.New("connection reset")}
			cfg.DevMode = dev
		})
		h := ts.srv.Router()
		cookie := register(t, h, "ana@example.com")

		rec := doJSON(t, h, http.MethodGet, "/books", "", cookie)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("dev=%v status = %d, want 500", dev, rec.Code)
		}
		var resp errorResponse
		decodeBody(t, rec, &resp)
		if resp.RequestID == "" {
			t.Fatalf("dev=%v missing request id", dev)
		}
		leaked := strings.Contains(rec.Body.String(), "connection reset")
		if leaked != dev {
			t.Fatalf("dev=%v details leaked=%v body=%s", dev, leaked, rec.Body.String())
		}
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := doJSON(t, ts.srv.Router(), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	down := newTestServer(t, func(appCfg *app.Config, _ *Config) {
		appCfg.Store = failingStore{Store: appCfg.Store, err: errors.New("db down")}
	})
	rec = doJSON(t, down.srv.Router(), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded health status = %d, want 503", rec.Code)
	}
}

func TestCoverUploadWithoutStorage(t *testing.T) {
	ts := newTestServer(t, nil)
	h := ts.srv.Router()
	cookie := register(t, h, "ana@example.com")
	book := createBook(t, h, cookie, `{"title":"Dune","price":10,"stock":3}`)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("cover", "dune.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("\x89PNG fake"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/books/"+itoa(book.ID)+"/cover", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 body=%s", rec.Code, rec.Body.String())
	}
}

func TestCoverUploadTooLarge(t *testing.T) {
	ts := newTestServer(t, func(_ *app.Config, cfg *Config) { cfg.MaxCoverBytes = 16 })
	h := ts.srv.Router()
	cookie := register(t, h, "ana@example.com")
	book := createBook(t, h, cookie, `{"title":"Dune","price":10,"stock":3}`)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("cover", "dune.png")
	_, _ = part.Write(bytes.Repeat([]byte("x"), 128))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/books/"+itoa(book.ID)+"/cover", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413 body=%s", rec.Code, rec.Body.String())
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := doJSON(t, ts.srv.Router(), http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("status = %d content-type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
