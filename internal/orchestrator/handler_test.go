package orchestrator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ledworks/cabinetctl/internal/cabinet"
	"github.com/ledworks/cabinetctl/internal/config"
	"github.com/ledworks/cabinetctl/internal/registry"
)

// startCabinet runs a real cabinet endpoint behind httptest.
func startCabinet(t *testing.T, id string, rows, cols int) (*httptest.Server, *cabinet.State) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{CabinetID: id, RowLen: rows, ColLen: cols}
	state := cabinet.NewState(id, rows, cols)
	r := gin.New()
	cabinet.NewHandler(cfg, state, nil).Mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, state
}

func newOrchestrator(t *testing.T) (*gin.Engine, *registry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{RegistryFile: filepath.Join(t.TempDir(), "cabinets.json")}
	reg, err := registry.New(registry.NewStore(cfg.RegistryFile))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	h := NewHandler(cfg, reg, NewClient(cfg))
	r := gin.New()
	h.Mount(r)
	return r, reg
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterCachesDimensions(t *testing.T) {
	srv, _ := startCabinet(t, "A", 3, 3)
	r, reg := newOrchestrator(t)

	w := do(r, http.MethodPost, "/api/cabinets", fmt.Sprintf(`{"id":"A","url":"%s"}`, srv.URL))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		OK      bool           `json:"ok"`
		Cabinet registry.Entry `json:"cabinet"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Cabinet.RowLen != 3 || resp.Cabinet.ColLen != 3 {
		t.Errorf("response = %+v", resp)
	}
	if entry, ok := reg.Lookup("A"); !ok || entry.RowLen != 3 {
		t.Errorf("registry entry = %+v, %v", entry, ok)
	}
}

func TestRegisterUnreachableLeavesRegistryUnchanged(t *testing.T) {
	// a server that is already closed is reliably unreachable
	srv := httptest.NewServer(http.NotFoundHandler())
	dead := srv.URL
	srv.Close()

	r, reg := newOrchestrator(t)
	w := do(r, http.MethodPost, "/api/cabinets", fmt.Sprintf(`{"id":"A","url":"%s"}`, dead))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if got := reg.List(); len(got) != 0 {
		t.Errorf("registry = %+v, want empty", got)
	}
}

func TestRegisterValidation(t *testing.T) {
	r, _ := newOrchestrator(t)
	tests := []struct {
		name string
		body string
	}{
		{"missing id", `{"url":"http://h1"}`},
		{"missing url", `{"id":"A"}`},
		{"not json", `{"id":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(r, http.MethodPost, "/api/cabinets", tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestRegisterDuplicateRejected(t *testing.T) {
	srv, _ := startCabinet(t, "A", 3, 3)
	r, _ := newOrchestrator(t)

	body := fmt.Sprintf(`{"id":"A","url":"%s"}`, srv.URL)
	if w := do(r, http.MethodPost, "/api/cabinets", body); w.Code != http.StatusOK {
		t.Fatalf("first register: %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/cabinets", body); w.Code != http.StatusConflict {
		t.Errorf("second register = %d, want 409", w.Code)
	}
}

func TestListAndDeregister(t *testing.T) {
	srvA, _ := startCabinet(t, "A", 3, 3)
	srvB, _ := startCabinet(t, "B", 2, 5)
	r, _ := newOrchestrator(t)

	if w := do(r, http.MethodPost, "/api/cabinets", fmt.Sprintf(`{"id":"A","url":"%s"}`, srvA.URL)); w.Code != http.StatusOK {
		t.Fatalf("register A: %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/cabinets", fmt.Sprintf(`{"id":"B","url":"%s"}`, srvB.URL)); w.Code != http.StatusOK {
		t.Fatalf("register B: %d", w.Code)
	}

	w := do(r, http.MethodGet, "/api/cabinets", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var listResp struct {
		Items []registry.Entry `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listResp.Items) != 2 || listResp.Items[0].ID != "A" || listResp.Items[1].ID != "B" {
		t.Errorf("items = %+v", listResp.Items)
	}

	if w := do(r, http.MethodDelete, "/api/cabinets/A", ""); w.Code != http.StatusOK {
		t.Errorf("deregister A: %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/api/cabinets/A", ""); w.Code != http.StatusNotFound {
		t.Errorf("second deregister = %d, want 404", w.Code)
	}
}

func TestForwardTraceUnknownCabinet(t *testing.T) {
	r, _ := newOrchestrator(t)
	w := do(r, http.MethodPost, "/api/trace", `{"cabinet":"nope","command":{"on":false}}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestForwardTraceValidation(t *testing.T) {
	r, _ := newOrchestrator(t)
	if w := do(r, http.MethodPost, "/api/trace", `{"command":{"on":false}}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing cabinet = %d, want 400", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/trace", `{"cabinet":"A"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing command = %d, want 400", w.Code)
	}
}

func TestForwardTraceEndToEnd(t *testing.T) {
	srv, state := startCabinet(t, "A", 3, 3)
	r, _ := newOrchestrator(t)

	if w := do(r, http.MethodPost, "/api/cabinets", fmt.Sprintf(`{"id":"A","url":"%s"}`, srv.URL)); w.Code != http.StatusOK {
		t.Fatalf("register: %d", w.Code)
	}

	w := do(r, http.MethodPost, "/api/trace", `{"cabinet":"A","command":{"row":1,"col":2,"on":true,"color":"#00ff00"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("forward: %d, body %s", w.Code, w.Body.String())
	}
	snap := state.Snapshot()
	if snap.Row == nil || *snap.Row != 1 || snap.Col == nil || *snap.Col != 2 || !snap.On || snap.Color != "#00ff00" {
		t.Errorf("endpoint state = %+v", snap)
	}

	// off clears indices regardless of supplied color
	w = do(r, http.MethodPost, "/api/trace", `{"cabinet":"A","command":{"on":false,"color":"red"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("forward off: %d, body %s", w.Code, w.Body.String())
	}
	snap = state.Snapshot()
	if snap.Row != nil || snap.Col != nil || snap.On {
		t.Errorf("endpoint state after off = %+v", snap)
	}
}

func TestForwardTraceRelaysRemoteError(t *testing.T) {
	srv, _ := startCabinet(t, "A", 3, 3)
	r, _ := newOrchestrator(t)

	if w := do(r, http.MethodPost, "/api/cabinets", fmt.Sprintf(`{"id":"A","url":"%s"}`, srv.URL)); w.Code != http.StatusOK {
		t.Fatalf("register: %d", w.Code)
	}

	// out-of-range row: endpoint rejects, orchestrator relays as 502
	w := do(r, http.MethodPost, "/api/trace", `{"cabinet":"A","command":{"row":9,"on":true,"color":"red"}}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp["error"], "row out of range") {
		t.Errorf("error = %q, want the remote message relayed", resp["error"])
	}
}

func TestFetchStateRejectsMalformedResponses(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "hello"},
		{"zero dims", `{"cabinet_id":"x","row_len":0,"col_len":0}`},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			r, reg := newOrchestrator(t)
			w := do(r, http.MethodPost, "/api/cabinets", fmt.Sprintf(`{"id":"A","url":"%s"}`, srv.URL))
			if w.Code != http.StatusBadGateway {
				t.Fatalf("status = %d, want 502", w.Code)
			}
			if got := reg.List(); len(got) != 0 {
				t.Errorf("registry = %+v, want empty", got)
			}
		})
	}
}
