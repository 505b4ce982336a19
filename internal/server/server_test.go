package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reasonlab/noesis/internal/config"
	"github.com/reasonlab/noesis/internal/llm"
)

type staticReasoner struct {
	reply string
}

func (s staticReasoner) Reason(_ context.Context, _ string, _ llm.Mode) (string, error) {
	return s.reply, nil
}

func (s staticReasoner) ReasonBatch(ctx context.Context, prompts []string, mode llm.Mode) ([]llm.BatchResult, error) {
	out := make([]llm.BatchResult, len(prompts))
	for i := range prompts {
		out[i] = llm.BatchResult{Index: i, Output: s.reply}
	}
	return out, nil
}

func newTestServer() (*Server, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	s := NewServer(staticReasoner{reply: "ok"}, config.Default(), nil, zap.NewNop())
	return s, s.SetupRouter()
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createRun(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/runs", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	return resp.RunID
}

func TestUnknownRunIs404(t *testing.T) {
	_, router := newTestServer()
	w := doJSON(t, router, http.MethodGet, "/runs/nope/graph", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStageOrderViolationIs409(t *testing.T) {
	_, router := newTestServer()
	id := createRun(t, router)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/runs/%s/stages/3", id), gin.H{})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStageParamValidation(t *testing.T) {
	_, router := newTestServer()
	id := createRun(t, router)

	for _, stage := range []string{"0", "10", "abc"} {
		w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/runs/%s/stages/%s", id, stage), gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code, "stage %q", stage)
	}
}

func TestRegisterHypothesis(t *testing.T) {
	_, router := newTestServer()
	id := createRun(t, router)
	path := fmt.Sprintf("/runs/%s/hypotheses", id)

	w := doJSON(t, router, http.MethodPost, path, gin.H{
		"id":                "h-1",
		"description":       "ocean warming drives the observed decline",
		"explanatory_power": 0.7,
		"falsifiability":    0.6,
		"simplicity":        0.5,
		"novelty":           0.4,
		"testability":       0.7,
		"scope":             "regional",
		"domain":            []string{"marine ecology"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var eval struct {
		HypothesisID string  `json:"hypothesis_id"`
		Overall      float64 `json:"overall"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eval))
	assert.Equal(t, "h-1", eval.HypothesisID)
	assert.Greater(t, eval.Overall, 0.0)

	// Validation failures surface the individual violations.
	w = doJSON(t, router, http.MethodPost, path, gin.H{"id": "h-bad", "description": "short"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp struct {
		Violations []string `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Violations)
}

func TestUnsupportedConsensusMechanismIs422(t *testing.T) {
	_, router := newTestServer()
	id := createRun(t, router)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/runs/%s/consensus", id), gin.H{
		"hypothesis_ids": []string{},
		"mechanism":      gin.H{"type": "delphi_method"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestExportWithoutDatabaseIs503(t *testing.T) {
	_, router := newTestServer()
	id := createRun(t, router)

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/runs/%s/export", id), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLandscapeOfEmptyRun(t *testing.T) {
	_, router := newTestServer()
	id := createRun(t, router)

	w := doJSON(t, router, http.MethodGet, fmt.Sprintf("/runs/%s/landscape", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var landscape struct {
		Clusters  [][]string `json:"clusters"`
		Conflicts []any      `json:"conflicts"`
		Gaps      []string   `json:"gaps"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &landscape))
	assert.Empty(t, landscape.Clusters)
	assert.Empty(t, landscape.Conflicts)
}
