package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"churnsight/db"
	"churnsight/ml"
	"churnsight/predict"
)

var errTest = errors.New("persistence down")

const uploadCSV = `age,usage_frequency,num_purchases,satisfaction_score,num_support_tickets,churn
25,10,3,2.4,5,1
40,2,8,4.6,0,0
40,2,8,4.6,0,0
`

func stubPersistence(t *testing.T) {
	t.Helper()
	origSaveRun, origSavePred := saveAnalysisRun, savePrediction
	origRecentPred, origRecentRuns := recentPredictions, recentAnalysisRuns
	t.Cleanup(func() {
		saveAnalysisRun, savePrediction = origSaveRun, origSavePred
		recentPredictions, recentAnalysisRuns = origRecentPred, origRecentRuns
	})

	saveAnalysisRun = func(run db.AnalysisRun) (string, error) { return "run-1", nil }
	savePrediction = func(record db.PredictionRecord) (string, error) { return "pred-1", nil }
	recentPredictions = func(limit int) ([]db.PredictionRecord, error) {
		return []db.PredictionRecord{{ID: "pred-1", Label: predict.LabelChurn}}, nil
	}
	recentAnalysisRuns = func(limit int) ([]db.AnalysisRun, error) {
		return []db.AnalysisRun{{ID: "run-1", TotalRecords: 3}}, nil
	}
}

func fittedService(t *testing.T) *predict.Service {
	t.Helper()

	texts := []string{
		"terrible support awful service",
		"slow refunds terrible billing",
		"great product excellent value",
		"love the excellent support",
	}
	vectorizer := ml.NewTFIDFVectorizer(20)
	if err := vectorizer.Fit(texts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	numericRows := [][]float64{
		{25, 2, 1, 1500, 0, 1.5, 6, 60},
		{30, 3, 2, 1500, 0, 2.0, 5, 90},
		{50, 20, 15, 1500, 0, 4.8, 0, 900},
		{55, 18, 12, 1500, 0, 4.5, 1, 700},
	}
	scaler := &ml.StandardScaler{}
	if err := scaler.Fit(numericRows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assembled := make([][]float64, len(texts))
	for i := range texts {
		textVector, err := vectorizer.Transform(texts[i])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		scaled, err := scaler.Transform(numericRows[i])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assembled[i] = ml.Assemble(textVector, scaled)
	}

	classifier := ml.NewLogisticRegression()
	if err := classifier.Train(assembled, []int{1, 1, 0, 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return predict.NewService(&ml.ModelArtifacts{
		Vectorizer: vectorizer,
		Scaler:     scaler,
		Classifier: classifier,
	})
}

func installService(t *testing.T, service *predict.Service) {
	t.Helper()
	orig := predictService
	t.Cleanup(func() { predictService = orig })
	SetPredictService(service)
}

func multipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("invalid json response: %v", err)
	}
	return payload
}

func TestHealthReportsModelState(t *testing.T) {
	installService(t, predict.NewService(nil))

	recorder := httptest.NewRecorder()
	handleHealth(recorder, httptest.NewRequest("GET", "/api/health", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodeBody(t, recorder)
	if payload["status"] != "ok" || payload["model_loaded"] != false {
		t.Fatalf("unexpected payload: %v", payload)
	}

	installService(t, fittedService(t))
	recorder = httptest.NewRecorder()
	handleHealth(recorder, httptest.NewRequest("GET", "/api/health", nil))
	if payload := decodeBody(t, recorder); payload["model_loaded"] != true {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestAnalyzeUpload(t *testing.T) {
	stubPersistence(t)

	body, contentType := multipartUpload(t, "csv_file", "customers.csv", uploadCSV)
	request := httptest.NewRequest("POST", "/api/analyze", body)
	request.Header.Set("Content-Type", contentType)

	recorder := httptest.NewRecorder()
	handleAnalyze(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(t, recorder)
	if payload["total_records"] != float64(3) || payload["churn_count"] != float64(1) {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if payload["churn_rate"] != 33.3 {
		t.Fatalf("unexpected churn rate: %v", payload["churn_rate"])
	}
	csvOut, ok := payload["full_data_csv"].(string)
	if !ok || !strings.Contains(csvOut, "churn_prediction_label") {
		t.Fatalf("enriched csv missing from response")
	}
}

func TestAnalyzeRejectsMissingColumn(t *testing.T) {
	stubPersistence(t)

	csv := "age,usage_frequency,num_purchases,satisfaction_score,num_support_tickets\n25,10,3,2.4,5\n"
	body, contentType := multipartUpload(t, "csv_file", "customers.csv", csv)
	request := httptest.NewRequest("POST", "/api/analyze", body)
	request.Header.Set("Content-Type", contentType)

	recorder := httptest.NewRecorder()
	handleAnalyze(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	payload := decodeBody(t, recorder)
	message, _ := payload["error"].(string)
	if !strings.Contains(message, "churn") {
		t.Fatalf("error should name the missing column: %v", payload)
	}
}

func TestAnalyzeRequiresFile(t *testing.T) {
	recorder := httptest.NewRecorder()
	handleAnalyze(recorder, httptest.NewRequest("POST", "/api/analyze", nil))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func predictForm() url.Values {
	return url.Values{
		"review":       {"terrible support awful service"},
		"age":          {"25"},
		"tenure":       {"60"},
		"usage":        {"2"},
		"purchases":    {"1"},
		"satisfaction": {"1.5"},
		"tickets":      {"6"},
	}
}

func postForm(path string, form url.Values) *http.Request {
	request := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return request
}

func TestPredictDegraded(t *testing.T) {
	installService(t, predict.NewService(nil))

	recorder := httptest.NewRecorder()
	handlePredict(recorder, postForm("/api/predict", predictForm()))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", recorder.Code)
	}
	payload := decodeBody(t, recorder)
	if payload["model_loaded"] != false {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestPredictRejectsBadNumeric(t *testing.T) {
	installService(t, fittedService(t))
	stubPersistence(t)

	form := predictForm()
	form.Set("age", "abc")
	recorder := httptest.NewRecorder()
	handlePredict(recorder, postForm("/api/predict", form))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	payload := decodeBody(t, recorder)
	message, _ := payload["error"].(string)
	if !strings.Contains(message, "age") {
		t.Fatalf("error should name the bad field: %v", payload)
	}
}

func TestPredictSuccess(t *testing.T) {
	installService(t, fittedService(t))
	stubPersistence(t)

	recorder := httptest.NewRecorder()
	handlePredict(recorder, postForm("/api/predict", predictForm()))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(t, recorder)
	if payload["label"] != predict.LabelChurn {
		t.Fatalf("expected churn label, got %v", payload)
	}
	if payload["message"] != "Likely to Churn" || payload["action"] != "Retention required" {
		t.Fatalf("unexpected advisory text: %v", payload)
	}
	probability, ok := payload["probability"].(float64)
	if !ok || probability < 0.5 {
		t.Fatalf("probability should agree with label: %v", payload)
	}
}

func TestPredictKeepsWorkingWhenPersistenceFails(t *testing.T) {
	installService(t, fittedService(t))
	stubPersistence(t)
	savePrediction = func(record db.PredictionRecord) (string, error) {
		return "", errTest
	}

	recorder := httptest.NewRecorder()
	handlePredict(recorder, postForm("/api/predict", predictForm()))
	if recorder.Code != http.StatusOK {
		t.Fatalf("persistence failure must not fail the request, got %d", recorder.Code)
	}
}

func TestDownloadPassThrough(t *testing.T) {
	form := url.Values{"csv_data": {"a,b\n1,2\n"}}
	recorder := httptest.NewRecorder()
	handleDownload(recorder, postForm("/api/download", form))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := recorder.Header().Get("Content-Disposition"); !strings.Contains(got, "churn_predictions.csv") {
		t.Fatalf("unexpected disposition %q", got)
	}
	if recorder.Body.String() != "a,b\n1,2\n" {
		t.Fatalf("body altered: %q", recorder.Body.String())
	}
}

func TestDownloadRequiresData(t *testing.T) {
	recorder := httptest.NewRecorder()
	handleDownload(recorder, postForm("/api/download", url.Values{}))
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestPredictionHistory(t *testing.T) {
	stubPersistence(t)

	recorder := httptest.NewRecorder()
	handlePredictionHistory(recorder, httptest.NewRequest("GET", "/api/predictions?limit=5", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodeBody(t, recorder)
	data, ok := payload["data"].([]interface{})
	if !ok || len(data) != 1 {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestQueryLimit(t *testing.T) {
	if got := queryLimit(httptest.NewRequest("GET", "/api/predictions", nil)); got != 20 {
		t.Fatalf("expected default 20, got %d", got)
	}
	if got := queryLimit(httptest.NewRequest("GET", "/api/predictions?limit=7", nil)); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := queryLimit(httptest.NewRequest("GET", "/api/predictions?limit=-2", nil)); got != 20 {
		t.Fatalf("negative limit should fall back to default, got %d", got)
	}
}
