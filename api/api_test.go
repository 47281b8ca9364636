package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/microcosm-cc/bluemonday"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/buildboard/dbopen"
	"github.com/hazyhaar/buildboard/idgen"
	"github.com/hazyhaar/buildboard/store"
)

func newTestServer(t *testing.T, enableMCP bool) (*Server, http.Handler) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithMigrations(store.Migrations...))
	s, err := New(Config{Store: store.New(db), EnableMCP: enableMCP, Version: "test"})
	if err != nil {
		t.Fatal(err)
	}
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHelloAndHealth(t *testing.T) {
	_, h := newTestServer(t, false)

	rec := do(t, h, http.MethodGet, "/api/", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"message":"Hello World"}` {
		t.Fatalf("GET /api/: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/health", "")
	var health map[string]string
	decode(t, rec, &health)
	if health["status"] != "ok" || health["version"] != "test" {
		t.Fatalf("health: %v", health)
	}

	rec = do(t, h, http.MethodHead, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("HEAD /health: %d", rec.Code)
	}
}

func TestWaitlist_Created(t *testing.T) {
	s, h := newTestServer(t, false)
	rec := do(t, h, http.MethodPost, "/api/waitlist", `{
		"name": "Test User",
		"email": "test@Example.COM",
		"role": "Enthusiast",
		"source_url": "https://example.com/landing?utm_source=ig&utm_campaign=summer",
		"utm_source": "ig",
		"utm_campaign": "summer"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var got map[string]any
	decode(t, rec, &got)
	id, _ := got["id"].(string)
	if len(id) != 24 || !idgen.IsObjectID(id) {
		t.Fatalf("id %q", id)
	}
	if _, ok := got["created_at"].(string); !ok {
		t.Fatalf("created_at missing: %v", got)
	}
	if got["email"] != "test@example.com" {
		t.Fatalf("email: %v", got["email"])
	}
	if got["utm_medium"] != nil {
		t.Fatalf("utm_medium should be null: %v", got["utm_medium"])
	}

	list, err := s.store.ListWaitlist(t.Context(), 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
}

func TestWaitlist_StripsMarkup(t *testing.T) {
	_, h := newTestServer(t, false)
	rec := do(t, h, http.MethodPost, "/api/waitlist",
		`{"name":"<b>Fast</b> & <script>alert(1)</script>Loud","email":"a@b.co","role":"Builder"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var got map[string]any
	decode(t, rec, &got)
	if got["name"] != "Fast & Loud" {
		t.Fatalf("name: %q", got["name"])
	}
}

func TestWaitlist_Validation(t *testing.T) {
	_, h := newTestServer(t, false)
	cases := []struct {
		name  string
		body  string
		field string
		typ   string
	}{
		{"missing name", `{"email":"a@b.co","role":"Shop"}`, "name", "missing"},
		{"bad email", `{"name":"A","email":"bad-email","role":"Shop"}`, "email", "value_error"},
		{"numeric role", `{"name":"A","email":"a@b.co","role":3}`, "role", "string_type"},
		{"numeric utm", `{"name":"A","email":"a@b.co","role":"Shop","utm_source":1}`, "utm_source", "string_type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/waitlist", tc.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status %d", rec.Code)
			}
			var resp struct {
				Detail []ValidationError `json:"detail"`
			}
			decode(t, rec, &resp)
			if len(resp.Detail) != 1 {
				t.Fatalf("detail: %+v", resp.Detail)
			}
			d := resp.Detail[0]
			if d.Type != tc.typ || len(d.Loc) != 2 || d.Loc[1] != tc.field {
				t.Fatalf("detail: %+v", d)
			}
		})
	}

	rec := do(t, h, http.MethodPost, "/api/waitlist", `not json`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid json: %d", rec.Code)
	}
}

func TestReferral_Created(t *testing.T) {
	_, h := newTestServer(t, false)
	rec := do(t, h, http.MethodPost, "/api/referrals", `{
		"referrer_name":"Ann","referrer_email":"ann@b.co","referral_type":"Builder",
		"referral_name":"Speed Shop","referral_contact":"@speedshop","source_url":"app://buildboard"
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var got map[string]any
	decode(t, rec, &got)
	if got["referral_contact"] != "@speedshop" || got["notes"] != nil {
		t.Fatalf("optional fields: %v", got)
	}
}

func TestReferral_TypeRejected(t *testing.T) {
	_, h := newTestServer(t, false)
	rec := do(t, h, http.MethodPost, "/api/referrals", `{
		"referrer_name":"Ann","referrer_email":"ann@b.co","referral_type":"Other","referral_name":"X"
	}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", rec.Code)
	}
	var resp map[string]string
	decode(t, rec, &resp)
	if resp["detail"] != MsgReferralType {
		t.Fatalf("detail: %q", resp["detail"])
	}
}

func TestReferral_SchemaErrorsBeforeTypeCheck(t *testing.T) {
	_, h := newTestServer(t, false)
	rec := do(t, h, http.MethodPost, "/api/referrals", `{"referral_type":"Other"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", rec.Code)
	}
	var resp struct {
		Detail []ValidationError `json:"detail"`
	}
	decode(t, rec, &resp)
	if len(resp.Detail) != 3 {
		t.Fatalf("want 3 missing fields, got %+v", resp.Detail)
	}
}

func TestStatusChecks(t *testing.T) {
	_, h := newTestServer(t, false)
	rec := do(t, h, http.MethodPost, "/api/status", `{"client_name":"web"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/api/status", `{}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing client_name: %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/status", "")
	var list []store.StatusCheck
	decode(t, rec, &list)
	if len(list) != 1 || list[0].ClientName != "web" {
		t.Fatalf("list: %+v", list)
	}
}

func TestResources_CRUD(t *testing.T) {
	_, h := newTestServer(t, false)

	rec := do(t, h, http.MethodPost, "/api/parts/", `{"name":"Coilovers","price":1299}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var created map[string]any
	decode(t, rec, &created)
	id := created["id"].(string)

	rec = do(t, h, http.MethodGet, "/api/parts/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}

	rec = do(t, h, http.MethodPut, "/api/parts/"+id, `{"name":"Coilovers v2"}`)
	var updated map[string]any
	decode(t, rec, &updated)
	if updated["name"] != "Coilovers v2" || updated["price"] != nil {
		t.Fatalf("update replaces the body: %v", updated)
	}

	rec = do(t, h, http.MethodGet, "/api/parts/", "")
	var list []map[string]any
	decode(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("list: %v", list)
	}

	if rec := do(t, h, http.MethodDelete, "/api/parts/"+id, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/parts/"+id, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/parts/", `[1,2]`); rec.Code != http.StatusBadRequest {
		t.Fatalf("array body: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/users/", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown kind: %d", rec.Code)
	}
}

func TestRateLimit_Waitlist(t *testing.T) {
	_, h := newTestServer(t, false)
	body := `{"name":"Ann","email":"a@b.co","role":"Subscriber"}`
	for i := range 10 {
		if rec := do(t, h, http.MethodPost, "/api/waitlist", body); rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rec.Code)
		}
	}
	rec := do(t, h, http.MethodPost, "/api/waitlist", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("11th: %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	_, h := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodOptions, "/api/waitlist", nil)
	req.Header.Set("Origin", "https://buildboard.app")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code >= 300 {
		t.Fatalf("preflight: %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://buildboard.app" {
		t.Fatal("allow-origin missing")
	}
}

func TestCORS_ConfiguredOrigins(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithMigrations(store.Migrations...))
	s, err := New(Config{Store: store.New(db), CORSOrigins: []string{"https://*.buildboard.app"}})
	if err != nil {
		t.Fatal(err)
	}
	h := s.Handler()
	for origin, want := range map[string]string{
		"https://www.buildboard.app": "https://www.buildboard.app",
		"https://evil.example":       "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("%s: allow-origin %q, want %q", origin, got, want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, false)
	do(t, h, http.MethodPost, "/api/waitlist", `{"name":"Ann","email":"a@b.co","role":"Shop"}`)
	do(t, h, http.MethodPost, "/api/waitlist", `{"name":"Ann"}`)

	rec := do(t, h, http.MethodGet, "/metrics", "")
	text := rec.Body.String()
	for _, want := range []string{
		`buildboard_submissions_total{form="waitlist",result="created"} 1`,
		`buildboard_submissions_total{form="waitlist",result="invalid"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %s", want)
		}
	}
}

func TestBodyTooLarge(t *testing.T) {
	_, h := newTestServer(t, false)
	big := bytes.Repeat([]byte("x"), 70*1024)
	rec := do(t, h, http.MethodPost, "/api/waitlist", `{"name":"`+string(big)+`","email":"a@b.co","role":"Shop"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestBusinessEventsRecorded(t *testing.T) {
	s, h := newTestServer(t, false)
	do(t, h, http.MethodPost, "/api/waitlist", `{"name":"Ann","email":"a@b.co","role":"Shop","utm_source":"ig"}`)

	var typ, details string
	err := s.store.DB().QueryRow(`SELECT event_type, details FROM business_event_logs`).Scan(&typ, &details)
	if err != nil {
		t.Fatal(err)
	}
	if typ != "waitlist.joined" || details != `{"role":"Shop","utm_source":"ig"}` {
		t.Fatalf("event: %s %s", typ, details)
	}
}

func TestClean_EncodedMarkupStaysInert(t *testing.T) {
	s := &Server{policy: bluemonday.StrictPolicy()}
	cases := []struct{ in, want string }{
		{"Fast & Loud", "Fast & Loud"},
		{"a < b", "a < b"},
		{"<b>Bold</b> rider", "Bold rider"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;Bob", "Bob"},
		{"&lt;b onclick=x&gt;Hi&lt;/b&gt;", "Hi"},
		{"&amp;lt;script&amp;gt;alert(1)&amp;lt;/script&amp;gt;Eve", "Eve"},
	}
	for _, tc := range cases {
		if got := s.clean(tc.in, maxName); got != tc.want {
			t.Errorf("clean(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWaitlist_EncodedMarkupNotStoredAsTags(t *testing.T) {
	s, h := newTestServer(t, false)
	rec := do(t, h, http.MethodPost, "/api/waitlist",
		`{"name":"&lt;script&gt;alert(1)&lt;/script&gt;Ann","email":"a@b.co","role":"Shop"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	list, err := s.store.ListWaitlist(t.Context(), 10, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
	if list[0].Name != "Ann" {
		t.Fatalf("stored name %q", list[0].Name)
	}
}
