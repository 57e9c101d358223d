package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/kingdom-atlas/kvk-tracker/internal/importer"
	"github.com/kingdom-atlas/kvk-tracker/internal/kvk"
	"github.com/kingdom-atlas/kvk-tracker/internal/pubsub"
	"github.com/slack-go/slack"
	"github.com/wcharczuk/go-chart/v2"
)

const maxImportUpload = 10 << 20 // 10 MiB

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

func (s *Server) ClearStoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("Received request to clear entire store")
		s.Store.Clear()
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Store cleared!")
		log.Info("Store cleared successfully")
	}
}

func (s *Server) ListKingdomsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kingdoms, err := s.Store.GetAllKingdoms()
		if err != nil {
			http.Error(w, "Failed to get kingdoms", http.StatusInternalServerError)
			log.Error("Failed to get kingdoms from store", "error", err)
			return
		}
		respondJSON(w, kingdoms)
	}
}

func (s *Server) ListMatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := s.Store.GetAllMatchRecords()
		if err != nil {
			http.Error(w, "Failed to get match records", http.StatusInternalServerError)
			log.Error("Failed to get match records from store", "error", err)
			return
		}
		respondJSON(w, records)
	}
}

// LeaderboardHandler returns a handler that serves the kingdom leaderboard.
func (s *Server) LeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kingdoms, err := s.Store.Leaderboard()
		if err != nil {
			http.Error(w, "Failed to get leaderboard", http.StatusInternalServerError)
			log.Error("Failed to get leaderboard from store", "error", err)
			return
		}
		respondJSON(w, kingdoms)
	}
}

// ScoreChartHandler renders a kingdom's cumulative score over KvK cycles as
// a PNG line chart.
func (s *Server) ScoreChartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kingdomID, err := strconv.ParseInt(r.URL.Query().Get("kingdomID"), 10, 64)
		if err != nil || kingdomID <= 0 {
			http.Error(w, "kingdomID must be a positive integer", http.StatusBadRequest)
			return
		}

		history, err := s.Store.GetHistory(kingdomID)
		if err != nil {
			http.Error(w, "Failed to get history", http.StatusInternalServerError)
			log.Error("Failed to get history from store", "error", err, "kingdom", kingdomID)
			return
		}
		if len(history) < 2 {
			http.Error(w, "Not enough history to chart", http.StatusNotFound)
			return
		}

		xValues := make([]float64, len(history))
		yValues := make([]float64, len(history))
		for i, snapshot := range history {
			xValues[i] = float64(snapshot.KvKID)
			yValues[i] = snapshot.Score
		}

		graph := chart.Chart{
			Title: fmt.Sprintf("Kingdom %d score history", kingdomID),
			XAxis: chart.XAxis{Name: "KvK cycle"},
			YAxis: chart.YAxis{Name: "Score"},
			Series: []chart.Series{
				chart.ContinuousSeries{
					Name:    "Score",
					XValues: xValues,
					YValues: yValues,
				},
			},
		}

		w.Header().Set("Content-Type", "image/png")
		if err := graph.Render(chart.PNG, w); err != nil {
			log.Error("Failed to render score chart", "error", err, "kingdom", kingdomID)
		}
	}
}

// ImportPreviewHandler accepts a multipart file upload and opens an import
// session: parse, validate, detect duplicates. Nothing is written yet.
func (s *Server) ImportPreviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseMultipartForm(maxImportUpload); err != nil {
			http.Error(w, "Failed to parse upload", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Missing 'file' upload", http.StatusBadRequest)
			return
		}
		defer file.Close()

		session, err := s.Importer.Preview(header.Filename, file)
		if err != nil {
			log.Warn("Import preview rejected", "file", header.Filename, "error", err)
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		respondJSON(w, sessionView(session))
	}
}

// ImportSessionHandler returns the current state of an open session.
func (s *Server) ImportSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.Importer.Session(r.URL.Query().Get("session"))
		if err != nil {
			respondImporterError(w, err)
			return
		}
		respondJSON(w, sessionView(session))
	}
}

// ImportResolveHandler updates conflict decisions. With all=skip|replace the
// whole ledger is set at once; with kingdom and kvk a single row is toggled.
func (s *Server) ImportResolveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("session")

		if all := r.URL.Query().Get("all"); all != "" {
			decision := importer.Decision(all)
			if decision != importer.DecisionSkip && decision != importer.DecisionReplace {
				http.Error(w, "all must be 'skip' or 'replace'", http.StatusBadRequest)
				return
			}
			if err := s.Importer.ResolveAll(id, decision); err != nil {
				respondImporterError(w, err)
				return
			}
			fmt.Fprint(w, "OK")
			return
		}

		kingdomID, err1 := strconv.ParseInt(r.URL.Query().Get("kingdom"), 10, 64)
		kvkID, err2 := strconv.ParseInt(r.URL.Query().Get("kvk"), 10, 64)
		if err1 != nil || err2 != nil {
			http.Error(w, "kingdom and kvk must be integers", http.StatusBadRequest)
			return
		}
		decision, err := s.Importer.Resolve(id, kvk.MatchKey{KingdomID: kingdomID, KvKID: kvkID})
		if err != nil {
			respondImporterError(w, err)
			return
		}
		respondJSON(w, map[string]importer.Decision{"decision": decision})
	}
}

// ImportBackHandler discards a session, returning the operator to the input
// stage.
func (s *Server) ImportBackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if err := s.Importer.Back(r.URL.Query().Get("session")); err != nil {
			respondImporterError(w, err)
			return
		}
		fmt.Fprint(w, "OK")
	}
}

// ImportCommitHandler applies a previewed session. The response carries the
// full report; a commit that failed part-way still responds 200 with the
// error and the applied counts on the report.
func (s *Server) ImportCommitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		operator := r.URL.Query().Get("operator")
		if operator == "" {
			operator = "unknown"
		}
		isDryRun := isDryRunFromContext(r)

		report, err := s.Importer.Commit(r.URL.Query().Get("session"), operator, isDryRun, func(p importer.Progress) {
			log.Debug("Import progress", "phase", p.Phase, "completed", p.Completed, "total", p.Total)
		})
		if err != nil {
			respondImporterError(w, err)
			return
		}
		respondJSON(w, report)
	}
}

// ImportBatchesHandler lists the audit trail of past import runs.
func (s *Server) ImportBatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil || parsed <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		batches, err := s.Store.ListImportBatches(limit)
		if err != nil {
			http.Error(w, "Failed to list import batches", http.StatusInternalServerError)
			log.Error("Failed to list import batches", "error", err)
			return
		}
		respondJSON(w, batches)
	}
}

// RecalculateStatsHandler is the push endpoint for the recalculate-stats
// event. The payload arrives as a base64 MessagePack blob inside the
// standard push envelope.
func (s *Server) RecalculateStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error("Failed to read request body", "error", err)
			http.Error(w, "Failed to read request body", http.StatusInternalServerError)
			return
		}
		log.Debug("Received recalculate stats message", "body", string(bodyBytes))
		// Define a small struct to decode the incoming JSON's `data` field
		var pubsubMsg struct {
			Subscription string `json:"subscription"`
			Message      struct {
				Data string `json:"data"` // base64-encoded message payload
			} `json:"message"`
		}

		// Parse the outer JSON to get `data`
		if err := json.Unmarshal(bodyBytes, &pubsubMsg); err != nil {
			log.Error("Failed to unmarshal wrapper JSON", "error", err)
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		// Decode base64 to raw MessagePack bytes
		rawData, err := base64.StdEncoding.DecodeString(pubsubMsg.Message.Data)
		if err != nil {
			log.Error("Failed to decode base64 data", "error", err)
			http.Error(w, "Invalid base64 data", http.StatusBadRequest)
			return
		}
		request := pubsub.RecalculateStats{}
		if err := s.pubsub.ProcessMessage(rawData, &request); err != nil {
			http.Error(w, "Invalid message payload", http.StatusBadRequest)
			return
		}

		result, err := s.Store.RecomputeAggregates(request.KingdomIDs)
		if err != nil {
			log.Error("Failed to recompute aggregates", "error", err)
			http.Error(w, "Failed to recompute aggregates", http.StatusInternalServerError)
			return
		}
		log.Info("Recomputed aggregates", "updated", result.Updated, "avgScore", result.AvgScore)

		for _, cycle := range request.Cycles {
			created, err := s.Store.BackfillHistory(cycle)
			if err != nil {
				log.Error("Failed to backfill history", "error", err, "kvk", cycle)
				continue
			}
			log.Info("Backfilled history", "kvk", cycle, "created", created)

			offset := 0
			for {
				repair, err := s.Store.RepairRanks(cycle, offset)
				if err != nil {
					log.Error("Failed to repair ranks", "error", err, "kvk", cycle, "offset", offset)
					break
				}
				if !repair.HasMore {
					break
				}
				offset = repair.NextOffset
			}
		}
		w.Write([]byte("OK"))
	}
}

// respondWithSlackMsg is a helper to format and write a Slack message as an HTTP response.
func respondWithSlackMsg(w http.ResponseWriter, msg slack.Message) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		log.Error("Failed to encode slack message to JSON", "error", err)
	}
}

// LeaderboardCommandHandler returns a handler for the /leaderboard Slack command.
func (s *Server) LeaderboardCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kingdoms, err := s.Store.Leaderboard()
		if err != nil {
			http.Error(w, "Failed to get leaderboard", http.StatusInternalServerError)
			log.Error("Failed to get leaderboard from store", "error", err)
			return
		}

		msg, err := s.Notifier.FormatLeaderboardResponse(kingdoms)
		if err != nil {
			http.Error(w, "Failed to format leaderboard", http.StatusInternalServerError)
			log.Error("Failed to format leaderboard", "error", err)
			return
		}

		slackMsg, ok := msg.(slack.Message)
		if !ok {
			http.Error(w, "Invalid message format for Slack", http.StatusInternalServerError)
			log.Error("Failed to cast message to slack.Message")
			return
		}

		respondWithSlackMsg(w, slackMsg)
	}
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to write response", "error", err)
	}
}

// sessionView is the JSON shape of an import session, including the current
// ledger decisions which the session itself does not serialize.
func sessionView(session *importer.Session) map[string]any {
	return map[string]any{
		"id":         session.ID,
		"stage":      session.Stage,
		"validation": session.Validation,
		"partition":  session.Partition,
		"decisions":  session.Ledger.Decisions(),
		"created_at": session.CreatedAt,
	}
}

func respondImporterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, importer.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, importer.ErrWrongStage):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, importer.ErrNoAcceptedRows):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
