package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/mycelium/internal/auth"
	"evalgo.org/mycelium/internal/config"
	"evalgo.org/mycelium/internal/conformance"
	"evalgo.org/mycelium/internal/engine"
	"evalgo.org/mycelium/internal/integration"
	"evalgo.org/mycelium/internal/logging"
	"evalgo.org/mycelium/internal/storage"
	"evalgo.org/mycelium/models"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Security.RateLimit = 0
	for _, fn := range mutate {
		fn(cfg)
	}
	eng, err := engine.New(context.Background(), cfg, engine.Options{
		Store:  storage.NewMemory(),
		Logger: logging.Discard(),
	})
	require.NoError(t, err)

	s := New(cfg, eng, logging.Discard())
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const personPatch = `{
	"id": "p1",
	"patchType": "composite",
	"target": "g1",
	"version": "1.0.0",
	"operations": [
		{"op": "add", "triple": {
			"subject": {"termType": "iri", "value": "http://example.org/Person"},
			"predicate": {"termType": "iri", "value": "http://www.w3.org/2000/01/rdf-schema#label"},
			"object": {"termType": "literal", "value": "Person"}
		}}
	]
}`

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "mycelium", body["service"])
}

func TestIntegrationFlow(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/patches", personPatch)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Patch](t, rec)
	assert.Equal(t, models.StatusDraft, created.Status)
	assert.NotEmpty(t, created.BaseVersion)

	rec = do(t, s, http.MethodPost, "/api/v1/patches/p1/submit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatusPending, decode[models.Patch](t, rec).Status)

	rec = do(t, s, http.MethodPost, "/api/v1/spores",
		`{"id": "s1", "conformanceLevel": "relaxed", "patches": ["p1"], "targets": ["g1"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/spores/s1/validate", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[ValidationResponse](t, rec).Valid)

	rec = do(t, s, http.MethodPost, "/api/v1/plan", `{"spores": ["s1"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, [][]string{{"p1"}}, decode[PlanResponse](t, rec).Waves)

	rec = do(t, s, http.MethodPost, "/api/v1/integrate", `{"spores": ["s1"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[integration.Result](t, rec)
	assert.Equal(t, integration.OutcomeApplied, res.Outcome)
	assert.Equal(t, []string{"p1"}, res.Applied)

	rec = do(t, s, http.MethodGet, "/api/v1/graphs/g1/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, res.Versions["g1"], decode[VersionResponse](t, rec).Version)

	rec = do(t, s, http.MethodGet, "/api/v1/graphs/g1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[HistoryResponse](t, rec).Records, 1)

	rec = do(t, s, http.MethodGet, "/api/v1/graphs/g1/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/n-quads", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<http://example.org/Person>")

	rec = do(t, s, http.MethodGet, "/api/v1/patches?status=applied", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[PatchesResponse](t, rec)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "p1", list.Patches[0].ID)

	rec = do(t, s, http.MethodPost, "/api/v1/patches/p1/apply", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/patches/p1/rollback", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.StatusReverted, decode[ApplyResponse](t, rec).Patch.Status)
}

func TestIntegrateRejected(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/patches", personPatch)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// A draft patch fails the gate.
	rec = do(t, s, http.MethodPost, "/api/v1/spores",
		`{"id": "s1", "conformanceLevel": "relaxed", "patches": ["p1"], "targets": ["g1"]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/integrate", `{"spores": ["s1"]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, integration.OutcomeRejected, decode[integration.Result](t, rec).Outcome)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown patch", http.MethodGet, "/api/v1/patches/missing", "", http.StatusNotFound},
		{"unknown spore", http.MethodGet, "/api/v1/spores/missing", "", http.StatusNotFound},
		{"empty batch", http.MethodPost, "/api/v1/integrate", `{"spores": []}`, http.StatusBadRequest},
		{"bad patch", http.MethodPost, "/api/v1/patches", `{"id": "bad", "patchType": "composite", "target": "g1", "operations": []}`, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/v1/patches?status=done", "", http.StatusBadRequest},
		{"bad severity filter", http.MethodGet, "/api/v1/violations?severity=urgent", "", http.StatusBadRequest},
		{"bad export format", http.MethodGet, "/api/v1/graphs/g1/export?format=turtle", "", http.StatusBadRequest},
		{"migrate without version", http.MethodPost, "/api/v1/spores/s1/migrate", `{"pinBases": true}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCreatePatchDocument(t *testing.T) {
	s := newTestServer(t)

	doc := `{
		"@context": "https://evalgo.org/mycelium/v1",
		"@type": "Patch",
		"@id": "doc-1",
		"patchType": "structural-add",
		"target": "g1",
		"baseVersion": "sha256:abc",
		"operations": [{"op": "add", "triple": {
			"subject": {"termType": "iri", "value": "http://example.org/a"},
			"predicate": {"termType": "iri", "value": "http://example.org/p"},
			"object": {"termType": "literal", "value": "x"}}}]
	}`
	rec := do(t, s, http.MethodPost, "/api/v1/patches/jsonld", doc, "Content-Type", "application/ld+json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "doc-1", decode[models.Patch](t, rec).ID)

	invalid := `{"@context": "https://evalgo.org/mycelium/v1", "@type": "Patch", "@id": "doc-2", "patchType": "rename"}`
	rec = do(t, s, http.MethodPost, "/api/v1/patches/jsonld", invalid, "Content-Type", "application/ld+json")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.False(t, decode[DocumentErrorResponse](t, rec).Result.Valid)
}

func TestViolationEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/violations", `{
		"target": "g1",
		"ref": {"kind": "patch", "id": "p1"},
		"label": "missing label",
		"violationType": "missing_label",
		"severity": "high"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	v := decode[models.Violation](t, rec)
	assert.Equal(t, models.ViolationOpen, v.Status)

	rec = do(t, s, http.MethodGet, "/api/v1/violations?target=g1&status=open", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[ViolationsResponse](t, rec).Total)

	rec = do(t, s, http.MethodPost, "/api/v1/violations/"+v.ID+"/resolve", `{"resolution": "labelled"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[ResolveResponse](t, rec).Changed)

	rec = do(t, s, http.MethodPost, "/api/v1/violations/"+v.ID+"/resolve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ResolveResponse](t, rec).Changed)

	rec = do(t, s, http.MethodGet, "/api/v1/graphs/g1/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[conformance.Statistics](t, rec)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Resolved)

	rec = do(t, s, http.MethodGet, "/api/v1/graphs/g1/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "missing label")
}

func TestImportGraphEndpoint(t *testing.T) {
	s := newTestServer(t)

	nq := "<http://example.org/postal_address> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://www.w3.org/2002/07/owl#Class> .\n"
	rec := do(t, s, http.MethodPut, "/api/v1/graphs/g2", nq, "Content-Type", "application/n-quads")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	version := decode[VersionResponse](t, rec).Version
	assert.NotEmpty(t, version)

	rec = do(t, s, http.MethodPost, "/api/v1/graphs/g2/conformance", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[ConformanceResponse](t, rec).Findings)

	rec = do(t, s, http.MethodPut, "/api/v1/graphs/g2", "not n-quads at all", "Content-Type", "application/n-quads")
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/graphs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[[]string](t, rec), "g2")
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Security.AuthEnabled = true
		c.Security.JWTSecret = "test-secret"
	})
	jwtService := auth.NewJWTService(s.config)
	reader, err := jwtService.GenerateToken("alice", models.RoleReader)
	require.NoError(t, err)
	writer, err := jwtService.GenerateToken("bob", models.RoleWriter)
	require.NoError(t, err)

	rec := do(t, s, http.MethodGet, "/api/v1/patches", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/patches", "", "Authorization", "Bearer "+reader)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/patches", personPatch, "Authorization", "Bearer "+reader)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/patches", personPatch, "Authorization", "Bearer "+writer)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mycelium_")
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(logging.Discard())
	go hub.Run()
	defer hub.Stop()

	client := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.BroadcastEvent(Event{Type: EventPatchApplied, Data: map[string]string{"id": "p1"}}))

	select {
	case msg := <-client.send:
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, EventPatchApplied, ev.Type)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}
