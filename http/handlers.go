package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"churnsight/analytics"
	"churnsight/db"
	"churnsight/logger"
	"churnsight/predict"
)

var predictService *predict.Service

// SetPredictService installs the inference service used by the predict
// handler. A nil or degraded service keeps the analysis endpoints working.
func SetPredictService(service *predict.Service) {
	predictService = service
}

// Persistence hooks, swappable in tests.
var (
	saveAnalysisRun    = db.SaveAnalysisRun
	savePrediction     = db.SavePrediction
	recentPredictions  = db.RecentPredictions
	recentAnalysisRuns = db.RecentAnalysisRuns
)

// RegisterHandlers wires all routes onto the mux.
func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/analyze", handleAnalyze)
	mux.HandleFunc("POST /api/predict", handlePredict)
	mux.HandleFunc("POST /api/download", handleDownload)
	mux.HandleFunc("GET /api/predictions", handlePredictionHistory)
	mux.HandleFunc("GET /api/analyses", handleAnalysisHistory)
	mux.HandleFunc("GET /api/ws/dashboard", liveHub.HandleWebSocket)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	ready := predictService != nil && predictService.Ready()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"model_loaded": ready,
	})
}

// handleAnalyze runs the aggregation engine over an uploaded labeled CSV.
// The report echoes the upload's own churn column; no inference happens
// here, so the endpoint works even in degraded mode.
func handleAnalyze(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("csv_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "csv_file upload is required")
		return
	}
	defer file.Close()

	table, err := analytics.ParseTable(file)
	if err != nil {
		var schemaErr *analytics.SchemaError
		if errors.As(err, &schemaErr) {
			writeError(w, http.StatusBadRequest, schemaErr.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report := analytics.BuildReport(table)

	runID, err := saveAnalysisRun(db.AnalysisRun{
		TotalRecords:    report.TotalRecords,
		ChurnCount:      report.ChurnCount,
		ChurnRate:       report.ChurnRate,
		AvgSatisfaction: report.AvgSatisfaction,
	})
	if err != nil {
		logger.L.Warn("failed to record analysis run", zap.Error(err))
	}

	liveHub.Broadcast(EventAnalysis, map[string]interface{}{
		"run_id":        runID,
		"total_records": report.TotalRecords,
		"churn_rate":    report.ChurnRate,
	})

	writeJSON(w, http.StatusOK, report)
}

// handlePredict scores one customer from submitted form fields. Unparseable
// numbers are a caller error; a missing model is reported as degraded, not
// as a failure of the process.
func handlePredict(w http.ResponseWriter, r *http.Request) {
	if predictService == nil || !predictService.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":        "model unavailable",
			"model_loaded": false,
		})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	input := predict.CustomerInput{ReviewText: r.FormValue("review")}
	fields := []struct {
		name   string
		target *float64
	}{
		{"age", &input.Age},
		{"tenure", &input.TenureDays},
		{"usage", &input.UsageFrequency},
		{"purchases", &input.NumPurchases},
		{"satisfaction", &input.SatisfactionScore},
		{"tickets", &input.NumSupportTickets},
	}
	for _, field := range fields {
		value, err := strconv.ParseFloat(r.FormValue(field.name), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("field %q must be numeric", field.name))
			return
		}
		*field.target = value
	}

	result, err := predictService.Predict(input)
	if err != nil {
		if errors.Is(err, predict.ErrModelUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"error":        "model unavailable",
				"model_loaded": false,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if _, err := savePrediction(db.PredictionRecord{
		Label:             result.Label,
		Probability:       result.Probability,
		Age:               input.Age,
		TenureDays:        input.TenureDays,
		UsageFrequency:    input.UsageFrequency,
		NumPurchases:      input.NumPurchases,
		SatisfactionScore: input.SatisfactionScore,
		NumSupportTickets: input.NumSupportTickets,
		ReviewLength:      len(input.ReviewText),
	}); err != nil {
		logger.L.Warn("failed to record prediction", zap.Error(err))
	}

	liveHub.Broadcast(EventPrediction, result)

	message := "Likely Retained"
	action := "Low churn risk"
	if result.Label == predict.LabelChurn {
		message = "Likely to Churn"
		action = "Retention required"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"label":       result.Label,
		"probability": result.Probability,
		"message":     message,
		"action":      action,
	})
}

// handleDownload streams previously produced CSV text back as a file
// attachment. Pure pass-through.
func handleDownload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	csvData := r.FormValue("csv_data")
	if csvData == "" {
		writeError(w, http.StatusBadRequest, "csv_data is required")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="churn_predictions.csv"`)
	w.Write([]byte(csvData))
}

func handlePredictionHistory(w http.ResponseWriter, r *http.Request) {
	records, err := recentPredictions(queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": records})
}

func handleAnalysisHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := recentAnalysisRuns(queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": runs})
}

func queryLimit(r *http.Request) int {
	limit := 20
	if value := r.URL.Query().Get("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
