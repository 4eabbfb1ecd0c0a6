package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"chartbuilder-go/internal/models"
	"chartbuilder-go/internal/state"
)

func newTestServer(t *testing.T) (*httptest.Server, *state.AppState) {
	t.Helper()
	st := state.New()
	h := NewHandler(st)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, st
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, url, err)
		}
	}
	return resp
}

var sampleRows = []map[string]any{
	{"createdAt": "2023-01-01", "amount": 100, "status": "paid"},
	{"createdAt": "2023-01-02", "amount": 250, "status": "paid"},
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestInferFields(t *testing.T) {
	srv, _ := newTestServer(t)

	var out struct {
		Fields []models.FieldDescriptor `json:"fields"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/infer",
		map[string]any{"data": sampleRows}, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	idx := models.FieldIndex(out.Fields)
	if idx["root[].createdAt"] != models.FieldDate {
		t.Errorf("createdAt: %v", idx["root[].createdAt"])
	}
	if idx["root[].amount"] != models.FieldNumber {
		t.Errorf("amount: %v", idx["root[].amount"])
	}
}

func TestRunDatasetFirstLoadPersistsDefaults(t *testing.T) {
	srv, st := newTestServer(t)

	var result models.RunResult
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/datasets/d1/run",
		map[string]any{"data": sampleRows}, &result)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(result.Series) != 1 {
		t.Fatalf("series: %v", result.Series)
	}

	cfg, ok := st.GetConfig("d1")
	if !ok || cfg.XAxis != "root[].createdAt" {
		t.Errorf("auto-selected x-axis not persisted: %+v", cfg)
	}
	if cfg.YAxis != "root[].amount" {
		t.Errorf("auto-selected y-axis not persisted: %+v", cfg)
	}
}

func TestUpdateConfigStripsUnsaved(t *testing.T) {
	srv, st := newTestServer(t)

	cfg := models.DatasetConfig{
		XAxis: "root[].createdAt",
		Conditions: []models.Condition{
			{ID: "fc-1", Field: "root[].status", Operator: models.OpIs, Value: "paid", Saved: true},
			{ID: "fc-2", Field: "root[].status", Operator: models.OpIs, Value: "draft", Saved: false},
		},
	}
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/datasets/d1/config", cfg, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	stored, _ := st.GetConfig("d1")
	if len(stored.Conditions) != 1 || stored.Conditions[0].ID != "fc-1" {
		t.Errorf("unsaved conditions must not persist: %v", stored.Conditions)
	}
}

func TestConditionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/datasets/d1"

	// Run once so a field catalog exists for save validation.
	doJSON(t, http.MethodPost, base+"/run", map[string]any{"data": sampleRows}, nil)

	var cond models.Condition
	doJSON(t, http.MethodPost, base+"/conditions", nil, &cond)
	if cond.ID == "" || cond.Saved {
		t.Fatalf("new condition: %+v", cond)
	}

	condURL := fmt.Sprintf("%s/conditions/%s", base, cond.ID)

	var conditions []models.Condition
	doJSON(t, http.MethodPut, condURL, map[string]any{
		"field": "root[].status", "operator": "is", "value": "paid",
	}, &conditions)
	if conditions[0].Saved {
		t.Error("edited condition must stay pending")
	}

	doJSON(t, http.MethodPost, condURL+"/save", nil, &conditions)
	if !conditions[0].Saved {
		t.Error("condition should be saved")
	}
	if conditions[0].Type != models.FieldString {
		t.Errorf("save should stamp the inferred type, got %q", conditions[0].Type)
	}

	// A pending edit reverts to the saved snapshot.
	doJSON(t, http.MethodPut, condURL, map[string]any{"value": "refunded"}, &conditions)
	if conditions[0].Saved {
		t.Error("value edit should drop the saved flag")
	}
	doJSON(t, http.MethodPost, condURL+"/revert", nil, &conditions)
	if conditions[0].Value != "paid" || !conditions[0].Saved {
		t.Errorf("revert should restore the saved version: %+v", conditions[0])
	}

	resp := doJSON(t, http.MethodDelete, condURL, nil, &conditions)
	if resp.StatusCode != http.StatusOK || len(conditions) != 0 {
		t.Errorf("delete: %d, %v", resp.StatusCode, conditions)
	}
}

func TestSaveConditionValidationError(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/datasets/d1"
	doJSON(t, http.MethodPost, base+"/run", map[string]any{"data": sampleRows}, nil)

	var cond models.Condition
	doJSON(t, http.MethodPost, base+"/conditions", nil, &cond)

	// No field chosen yet.
	resp := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/conditions/%s/save", base, cond.ID), nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMoveColumnDoesNotPersist(t *testing.T) {
	srv, st := newTestServer(t)
	base := srv.URL + "/api/datasets/d1"

	var out struct {
		Order []string `json:"order"`
	}
	doJSON(t, http.MethodPost, base+"/columns/move", map[string]any{
		"order": []string{"a", "b", "c"}, "from": 0, "to": 2,
	}, &out)
	want := []string{"b", "c", "a"}
	for i := range want {
		if out.Order[i] != want[i] {
			t.Fatalf("order = %v, want %v", out.Order, want)
		}
	}

	if cfg, _ := st.GetConfig("d1"); len(cfg.ColumnsOrder) != 0 {
		t.Error("move must not persist until confirmed")
	}

	doJSON(t, http.MethodPut, base+"/columns/order", map[string]any{"order": out.Order}, nil)
	cfg, _ := st.GetConfig("d1")
	if len(cfg.ColumnsOrder) != 3 || cfg.ColumnsOrder[0] != "b" {
		t.Errorf("confirmed order not persisted: %v", cfg.ColumnsOrder)
	}
}

func TestGetDatasetNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/datasets/ghost")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

// Overlapping runs and dataset reads go through the locked state accessors;
// run with -race.
func TestConcurrentRunAndGetDataset(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/api/datasets/d1"

	doJSON(t, http.MethodPost, base+"/run", map[string]any{"data": sampleRows}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := doJSON(t, http.MethodPost, base+"/run", map[string]any{"data": sampleRows}, nil)
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
				t.Errorf("run status = %d", resp.StatusCode)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(base)
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("get status = %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()
}

// Swapping the source while fetches are in flight must neither race nor
// close the source under a running fetch; run with -race.
func TestConcurrentConnectAndRun(t *testing.T) {
	srv, _ := newTestServer(t)

	path := filepath.Join(t.TempDir(), "rows.json")
	if err := os.WriteFile(path, []byte(`[{"a": 1}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	connect := map[string]any{"type": "file", "path": path}

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/source/connect", connect, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connect status = %d", resp.StatusCode)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/datasets/d1/run",
				map[string]any{"use_source": true}, nil)
			if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
				t.Errorf("run status = %d", resp.StatusCode)
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/source/connect", connect, nil)
			if resp.StatusCode != http.StatusOK {
				t.Errorf("connect status = %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()
}

func TestRunDatasetNoSourceConnected(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/datasets/d1/run",
		map[string]any{"use_source": true}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
