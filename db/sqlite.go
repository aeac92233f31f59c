package db

import (
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// InitDB opens the SQLite database and bootstraps the schema.
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS analysis_runs (
        id TEXT PRIMARY KEY,
        total_records INTEGER,
        churn_count INTEGER,
        churn_rate REAL,
        avg_satisfaction REAL,
        created_at DATETIME
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id TEXT PRIMARY KEY,
        label TEXT,
        probability REAL,
        age REAL,
        tenure_days REAL,
        usage_frequency REAL,
        num_purchases REAL,
        satisfaction_score REAL,
        num_support_tickets REAL,
        review_length INTEGER,
        created_at DATETIME
    );
    `

	_, err = database.Exec(query)
	return err
}

// Close releases the database handle.
func Close() error {
	if database == nil {
		return nil
	}
	return database.Close()
}

// AnalysisRun is one recorded batch analysis summary.
type AnalysisRun struct {
	ID              string    `json:"id"`
	TotalRecords    int       `json:"total_records"`
	ChurnCount      int       `json:"churn_count"`
	ChurnRate       float64   `json:"churn_rate"`
	AvgSatisfaction float64   `json:"avg_satisfaction"`
	CreatedAt       time.Time `json:"created_at"`
}

// PredictionRecord is one recorded single-customer prediction. Only the
// review length is stored, not the review itself.
type PredictionRecord struct {
	ID                string    `json:"id"`
	Label             string    `json:"label"`
	Probability       float64   `json:"probability"`
	Age               float64   `json:"age"`
	TenureDays        float64   `json:"tenure_days"`
	UsageFrequency    float64   `json:"usage_frequency"`
	NumPurchases      float64   `json:"num_purchases"`
	SatisfactionScore float64   `json:"satisfaction_score"`
	NumSupportTickets float64   `json:"num_support_tickets"`
	ReviewLength      int       `json:"review_length"`
	CreatedAt         time.Time `json:"created_at"`
}

// SaveAnalysisRun records a batch analysis summary and returns its id.
func SaveAnalysisRun(run AnalysisRun) (string, error) {
	if database == nil {
		return "", errors.New("database not initialized")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := sq.Insert("analysis_runs").
		Columns("id", "total_records", "churn_count", "churn_rate", "avg_satisfaction", "created_at").
		Values(run.ID, run.TotalRecords, run.ChurnCount, run.ChurnRate, run.AvgSatisfaction, run.CreatedAt).
		RunWith(database).
		Exec()
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// SavePrediction records a single prediction and returns its id.
func SavePrediction(record PredictionRecord) (string, error) {
	if database == nil {
		return "", errors.New("database not initialized")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := sq.Insert("predictions").
		Columns("id", "label", "probability", "age", "tenure_days", "usage_frequency",
			"num_purchases", "satisfaction_score", "num_support_tickets", "review_length", "created_at").
		Values(record.ID, record.Label, record.Probability, record.Age, record.TenureDays,
			record.UsageFrequency, record.NumPurchases, record.SatisfactionScore,
			record.NumSupportTickets, record.ReviewLength, record.CreatedAt).
		RunWith(database).
		Exec()
	if err != nil {
		return "", err
	}
	return record.ID, nil
}

// RecentPredictions returns the newest predictions, most recent first.
func RecentPredictions(limit int) ([]PredictionRecord, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := sq.Select("id", "label", "probability", "age", "tenure_days", "usage_frequency",
		"num_purchases", "satisfaction_score", "num_support_tickets", "review_length", "created_at").
		From("predictions").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		RunWith(database).
		Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0, limit)
	for rows.Next() {
		var record PredictionRecord
		if err := rows.Scan(&record.ID, &record.Label, &record.Probability, &record.Age,
			&record.TenureDays, &record.UsageFrequency, &record.NumPurchases,
			&record.SatisfactionScore, &record.NumSupportTickets, &record.ReviewLength,
			&record.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// RecentAnalysisRuns returns the newest batch analysis summaries.
func RecentAnalysisRuns(limit int) ([]AnalysisRun, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := sq.Select("id", "total_records", "churn_count", "churn_rate", "avg_satisfaction", "created_at").
		From("analysis_runs").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		RunWith(database).
		Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]AnalysisRun, 0, limit)
	for rows.Next() {
		var run AnalysisRun
		if err := rows.Scan(&run.ID, &run.TotalRecords, &run.ChurnCount, &run.ChurnRate,
			&run.AvgSatisfaction, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
