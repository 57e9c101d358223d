package http

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kingdom-atlas/kvk-tracker/internal/config"
	"github.com/kingdom-atlas/kvk-tracker/internal/database"
	"github.com/kingdom-atlas/kvk-tracker/internal/importer"
	"github.com/kingdom-atlas/kvk-tracker/internal/kingdom"
	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
	"github.com/kingdom-atlas/kvk-tracker/internal/metrics"
	"github.com/kingdom-atlas/kvk-tracker/internal/notifier"
	"github.com/kingdom-atlas/kvk-tracker/internal/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const importCSVHeader = "kingdom_number,kvk_number,opponent_kingdom,prep_result,battle_result,overall_result,kvk_date"

// setupTestServer initializes a new server with a test database and mock clients.
func setupTestServer(t *testing.T) (*Server, kingdom.Store, *pubsub.MockPubSubClient, func()) {
	t.Helper()

	db, dbTeardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)

	store := kingdom.New(db)
	cfg := config.Config{}

	reg := prometheus.NewRegistry()
	metricsSvc := metrics.NewService(reg)
	metricsHandler := metrics.NewMetricsHandler(reg)
	ps := pubsub.NewMock("TEST")
	ps.ProcessMessageFunc = func(data []byte, returnValue any) error {
		return msgpack.Unmarshal(data, returnValue)
	}
	notif := notifier.NewMock()
	imp := importer.New(store, metricsSvc, nil, notif, ps)

	server := NewServer(store, metricsSvc, metricsHandler, cfg, imp, notif, ps)
	return server, store, ps, dbTeardown
}

// uploadRequest builds a multipart POST carrying one import file.
func uploadRequest(t *testing.T, targetURL, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", targetURL, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func previewFile(t *testing.T, server *Server, csv string) string {
	t.Helper()

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, uploadRequest(t, "/import/preview", "history.csv", csv))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var view struct {
		ID    string `json:"id"`
		Stage string `json:"stage"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.NotEmpty(t, view.ID)
	return view.ID
}

func TestHealthCheckHandler(t *testing.T) {
	server, _, _, teardown := setupTestServer(t)
	defer teardown()

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "handler returned wrong status code")
	assert.Equal(t, "OK!", rr.Body.String(), "handler returned unexpected body")
}

func TestImportFlowOverHTTP(t *testing.T) {
	server, store, _, teardown := setupTestServer(t)
	defer teardown()

	csv := importCSVHeader + "\n" +
		"172,5,189,W,W,Domination,2025-03-01\n" +
		"204,5,310,L,W,Comeback,2025-03-01\n"
	sessionID := previewFile(t, server, csv)

	// Commit the session.
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/import/commit?session="+sessionID+"&operator=alice", nil))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var report importer.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 4, report.KingdomsCreated)
	assert.Empty(t, report.Error)

	// The records (and mirrors) landed in the store.
	records, err := store.GetAllMatchRecords()
	require.NoError(t, err)
	assert.Len(t, records, 4)

	// The audit trail lists the run.
	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("GET", "/import/batches", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var batches []kvk.ImportBatch
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &batches))
	require.Len(t, batches, 1)
	assert.Equal(t, "alice", batches[0].Operator)
}

func TestImportPreviewHandler_InvalidFile(t *testing.T) {
	server, _, _, teardown := setupTestServer(t)
	defer teardown()

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, uploadRequest(t, "/import/preview", "history.csv", "not,the,right,columns\n1,2,3,4\n"))

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "missing required columns")
}

func TestImportResolveHandler(t *testing.T) {
	server, _, _, teardown := setupTestServer(t)
	defer teardown()

	// Seed a conflict.
	sessionID := previewFile(t, server, importCSVHeader+"\n172,5,189,W,W,Domination,2025-03-01\n")
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/import/commit?session="+sessionID+"&operator=alice", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	conflicted := previewFile(t, server, importCSVHeader+"\n172,5,189,L,L,Invasion,2025-03-02\n")

	// Toggle the single conflict to replace.
	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/import/resolve?session="+conflicted+"&kingdom=172&kvk=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), string(importer.DecisionReplace))

	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/import/commit?session="+conflicted+"&operator=alice", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var report importer.Report
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Replaced)
}

func TestImportCommitHandler_AllSkippedRejected(t *testing.T) {
	server, _, _, teardown := setupTestServer(t)
	defer teardown()

	sessionID := previewFile(t, server, importCSVHeader+"\n172,5,189,W,W,Domination,2025-03-01\n")
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/import/commit?session="+sessionID+"&operator=alice", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	conflicted := previewFile(t, server, importCSVHeader+"\n172,5,189,L,L,Invasion,2025-03-02\n")

	// Conflicts default to skip, so the commit has nothing to do.
	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/import/commit?session="+conflicted+"&operator=alice", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestImportBackHandler(t *testing.T) {
	server, _, _, teardown := setupTestServer(t)
	defer teardown()

	sessionID := previewFile(t, server, importCSVHeader+"\n172,5,189,W,W,Domination,2025-03-01\n")

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/import/back?session="+sessionID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("GET", "/import/session?session="+sessionID, nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLeaderboardHandler(t *testing.T) {
	server, _, _, teardown := setupTestServer(t)
	defer teardown()

	sessionID := previewFile(t, server, importCSVHeader+"\n"+
		"172,5,189,W,W,Domination,2025-03-01\n"+
		"204,5,310,L,W,Comeback,2025-03-01\n")
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/import/commit?session="+sessionID+"&operator=alice", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("GET", "/leaderboard", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var kingdoms []kvk.Kingdom
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &kingdoms))
	require.Len(t, kingdoms, 4)
	// Domination outranks everyone else.
	assert.Equal(t, int64(172), kingdoms[0].ID)
	assert.Equal(t, float64(5), kingdoms[0].Score)
}

func TestScoreChartHandler(t *testing.T) {
	server, _, _, teardown := setupTestServer(t)
	defer teardown()

	// Two cycles give kingdom 172 two history snapshots.
	for _, results := range []string{
		"172,5,189,W,W,Domination,2025-03-01\n",
		"172,6,204,L,W,Comeback,2025-04-01\n",
	} {
		sessionID := previewFile(t, server, importCSVHeader+"\n"+results)
		rr := httptest.NewRecorder()
		server.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/import/commit?session="+sessionID+"&operator=alice", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("GET", "/kingdoms/chart?kingdomID=172", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.NotEmpty(t, rr.Body.Bytes())

	// A kingdom with a single snapshot cannot be charted.
	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("GET", "/kingdoms/chart?kingdomID=189", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("GET", "/kingdoms/chart?kingdomID=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecalculateStatsHandler(t *testing.T) {
	server, store, _, teardown := setupTestServer(t)
	defer teardown()

	sessionID := previewFile(t, server, importCSVHeader+"\n172,5,189,W,W,Domination,2025-03-01\n")
	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/import/commit?session="+sessionID+"&operator=alice", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	payload, err := msgpack.Marshal(pubsub.RecalculateStats{Cycles: []int64{5}})
	require.NoError(t, err)
	envelope := fmt.Sprintf(`{"subscription":"sub","message":{"data":"%s"}}`,
		base64.StdEncoding.EncodeToString(payload))

	rr = httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/recalculate-stats", bytes.NewBufferString(envelope)))
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "OK", rr.Body.String())

	k, err := store.GetKingdom(172)
	require.NoError(t, err)
	assert.Equal(t, float64(5), k.Score)
}

func TestLeaderboardCommandHandler(t *testing.T) {
	server, _, _, teardown := setupTestServer(t)
	defer teardown()

	rr := httptest.NewRecorder()
	server.Router.ServeHTTP(rr, httptest.NewRequest("POST", "/slack/command/leaderboard", nil))

	// The mock notifier formats to a plain string, which is not a
	// slack.Message, so the handler reports a server error. The real
	// formatter is covered in the slack package tests; here we only check
	// the wiring reaches the notifier.
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
