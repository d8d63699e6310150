package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/doclife/internal/models"
	"github.com/starford/doclife/internal/testutil"
)

// testEnv sets up a temp vault, registry, service and router.
// An empty authToken means auth is disabled.
func testEnv(t *testing.T, authToken string) (http.Handler, string) {
	t.Helper()
	svc, _, vaultDir := testutil.TestService(t)
	return NewRouter(svc, authToken != "", authToken, nil), vaultDir
}

func do(t *testing.T, router http.Handler, method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createStatus(t *testing.T, router http.Handler) DocumentDetail {
	t.Helper()
	w := do(t, router, http.MethodPost, "/documents", map[string]string{
		"type": "Status", "description": "LearnApp", "purpose": "Track fixes", "body": "# Status\n",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var d DocumentDetail
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	return d
}

func TestCreateAndGetDocument(t *testing.T) {
	router, _ := testEnv(t, "")
	d := createStatus(t, router)
	if d.Path != "Active/Status-LearnApp-251017-1430.md" {
		t.Fatalf("path = %q", d.Path)
	}

	w := do(t, router, http.MethodGet, "/documents/"+d.Path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if etag := w.Header().Get("ETag"); etag != `"`+d.Checksum+`"` {
		t.Errorf("ETag = %q", etag)
	}
	var got DocumentDetail
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Category != models.CategoryTimestamped || got.Header == nil {
		t.Errorf("got %+v", got.Document)
	}
	if !strings.Contains(got.Content, "# Status") {
		t.Errorf("content = %q", got.Content)
	}

	// Encoded slashes resolve to the same document.
	w = do(t, router, http.MethodGet, "/documents/Active%2FStatus-LearnApp-251017-1430.md", nil)
	if w.Code != http.StatusOK {
		t.Errorf("encoded get = %d", w.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/documents", map[string]string{"type": "Status"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing description = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, "/documents", map[string]string{"type": "Memo", "description": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown type = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPost, "/documents", map[string]string{"type": "Protocol", "description": "Ship"})
	if w.Code != http.StatusCreated {
		t.Fatalf("living create = %d", w.Code)
	}
	w = do(t, router, http.MethodPost, "/documents", map[string]string{"type": "Protocol", "description": "Ship"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate living = %d, want 409", w.Code)
	}
}

func TestUpdateExemptWithOptimisticLocking(t *testing.T) {
	router, vaultDir := testEnv(t, "")
	testutil.WriteDoc(t, vaultDir, "README.md", "# Readme\n", testutil.Now.Add(-time.Hour))

	w := do(t, router, http.MethodGet, "/documents/README.md", nil)
	etag := w.Header().Get("ETag")

	w = do(t, router, http.MethodPut, "/documents/README.md", map[string]string{"content": "v2"}, "If-Match", `"stale"`)
	if w.Code != http.StatusConflict {
		t.Errorf("stale If-Match = %d, want 409", w.Code)
	}

	w = do(t, router, http.MethodPut, "/documents/README.md", map[string]string{"content": "v2", "note": "second"}, "If-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	var d DocumentDetail
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if d.Header.Version != 2 || d.Header.Changelog[1].Note != "second" {
		t.Errorf("header = %+v", d.Header)
	}
}

func TestUpdateTimestampedRejected(t *testing.T) {
	router, _ := testEnv(t, "")
	d := createStatus(t, router)

	w := do(t, router, http.MethodPut, "/documents/"+d.Path, map[string]string{"content": "edit"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("edit instance = %d, want 422", w.Code)
	}
}

func TestSupersedeAndAudit(t *testing.T) {
	router, vaultDir := testEnv(t, "")
	d := createStatus(t, router)

	w := do(t, router, http.MethodPost, "/supersede/"+d.Path, map[string]string{"content": "# Wave 2\n"})
	if w.Code != http.StatusCreated {
		t.Fatalf("supersede = %d, body = %s", w.Code, w.Body.String())
	}
	var next DocumentDetail
	_ = json.Unmarshal(w.Body.Bytes(), &next)
	if next.Path != "Active/Status-LearnApp-251017-1431.md" {
		t.Errorf("successor = %q", next.Path)
	}
	if _, err := os.Stat(filepath.Join(vaultDir, "Archive", "Status-LearnApp-251017-1430.md")); err != nil {
		t.Errorf("predecessor not archived: %v", err)
	}

	w = do(t, router, http.MethodGet, "/audit?limit=10", nil)
	var audit AuditResponse
	_ = json.Unmarshal(w.Body.Bytes(), &audit)
	kinds := map[string]bool{}
	for _, ev := range audit.Events {
		kinds[ev.Kind] = true
	}
	for _, k := range []string{models.EventCreated, models.EventSuperseded, models.EventArchived} {
		if !kinds[k] {
			t.Errorf("audit missing %s: %+v", k, audit.Events)
		}
	}
}

func TestArchiveAndSweep(t *testing.T) {
	router, vaultDir := testEnv(t, "")
	testutil.WriteDoc(t, vaultDir, "Active/Report-Q1-250101-0900.md", "old\n", time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))

	w := do(t, router, http.MethodPost, "/archive?dry_run=true", nil)
	var plan MovesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &plan)
	if w.Code != http.StatusOK || !plan.DryRun || len(plan.Moves) != 1 {
		t.Fatalf("dry run = %d %+v", w.Code, plan)
	}

	w = do(t, router, http.MethodPost, "/archive", nil)
	var done MovesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &done)
	if len(done.Moves) != 1 || done.Moves[0].To != "Archive/Report-Q1-250101-0900.md" {
		t.Fatalf("sweep = %+v", done)
	}

	d := createStatus(t, router)
	w = do(t, router, http.MethodPost, "/archive/"+d.Path, nil)
	if w.Code != http.StatusOK {
		t.Errorf("archive one = %d", w.Code)
	}
	w = do(t, router, http.MethodPost, "/archive/ghost.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("archive missing = %d, want 404", w.Code)
	}
}

func TestClassifyAndNames(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/classify?name=Status-X-20251017.md", nil)
	var cl ClassifyResponse
	_ = json.Unmarshal(w.Body.Bytes(), &cl)
	if cl.Valid || cl.Category != models.CategoryTimestamped || cl.Error == "" {
		t.Errorf("classify = %+v", cl)
	}

	w = do(t, router, http.MethodGet, "/classify?name=README.md", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &cl)
	if !cl.Valid || cl.Category != models.CategoryExempt {
		t.Errorf("classify README = %+v", cl)
	}

	w = do(t, router, http.MethodGet, "/classify", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("classify without name = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/names?type=analysis&description=db+locks", nil)
	var n NameResponse
	_ = json.Unmarshal(w.Body.Bytes(), &n)
	if n.Path != "Active/Analysis-Db-Locks-251017-1430.md" {
		t.Errorf("name = %q", n.Path)
	}
}

func TestViolationsAndList(t *testing.T) {
	router, vaultDir := testEnv(t, "")
	testutil.WriteRaw(t, vaultDir, "Active/scratch.md", []byte("plain\n"))
	createStatus(t, router)

	// Registering the stray file happens through a sweep-triggered sync.
	do(t, router, http.MethodPost, "/archive?dry_run=true", nil)

	w := do(t, router, http.MethodGet, "/violations", nil)
	var vr ViolationsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &vr)
	if len(vr.Violations) != 2 || vr.Summary == nil || vr.Summary.Documents != 2 {
		t.Errorf("violations = %+v", vr)
	}

	w = do(t, router, http.MethodGet, "/documents?category=timestamped&limit=1", nil)
	var list DocumentListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 || len(list.Documents) != 1 {
		t.Errorf("list = total %d len %d", list.Total, len(list.Documents))
	}
}

func TestSearchEndpoint(t *testing.T) {
	router, _ := testEnv(t, "")
	do(t, router, http.MethodPost, "/documents", map[string]string{
		"type": "Decision", "description": "Storage", "purpose": "Pick a store", "body": "We chose sqlite for the registry.\n",
	})

	w := do(t, router, http.MethodGet, "/search?q=sqlite", nil)
	var sr SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sr)
	if len(sr.Results) != 1 {
		t.Errorf("results = %+v", sr.Results)
	}

	w = do(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestGetDocument_NotFoundAndTraversal(t *testing.T) {
	router, _ := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/documents/nope.md", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodGet, "/documents/..%2F..%2Fetc%2Fpasswd", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("traversal = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/documents", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/documents", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/documents", nil, "Authorization", "Bearer secret123"); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}

	open, _ := testEnv(t, "")
	if w := do(t, open, http.MethodGet, "/documents", nil); w.Code != http.StatusOK {
		t.Errorf("auth disabled = %d, want 200", w.Code)
	}
}

// testEnvWithSSE creates a router with a stub SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	svc, _, _ := testutil.TestService(t)
	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		<-r.Context().Done()
	})
	return NewRouter(svc, authEnabled, token, sseHandler)
}

func TestSSEEvents_Auth(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
