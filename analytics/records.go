package analytics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// SchemaError reports a required column missing from an uploaded table.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("required column %q missing from upload", e.Column)
}

// Required batch columns. review_text and tenure_days are optional.
var requiredColumns = []string{
	"age",
	"usage_frequency",
	"num_purchases",
	"satisfaction_score",
	"num_support_tickets",
	"churn",
}

// CustomerRecord is one typed row of an uploaded batch. Churn is the
// ground-truth label carried by the upload itself.
type CustomerRecord struct {
	Age               float64
	UsageFrequency    float64
	NumPurchases      float64
	SatisfactionScore float64
	NumSupportTickets float64
	TenureDays        float64
	ReviewText        string
	Churn             int
}

// Table holds the typed records alongside the raw header and rows so the
// enriched CSV can re-serialize every original column untouched.
type Table struct {
	Header  []string
	Rows    [][]string
	Records []CustomerRecord
}

// ParseTable decodes a CSV upload into a typed table. Spreadsheet exports
// often carry a UTF-8 or UTF-16 byte order mark, so the stream goes through
// a BOM-aware decoder first. A missing required column yields a SchemaError;
// a row that fails numeric coercion is rejected with the row and column
// named rather than silently coerced.
func ParseTable(r io.Reader) (*Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("upload is empty")
	}

	header := rows[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, column := range requiredColumns {
		if _, ok := index[column]; !ok {
			return nil, &SchemaError{Column: column}
		}
	}

	dataRows := rows[1:]
	if len(dataRows) == 0 {
		return nil, errors.New("upload has no data rows")
	}

	records := make([]CustomerRecord, 0, len(dataRows))
	for i, row := range dataRows {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, want %d", i+1, len(row), len(header))
		}
		record, err := parseRecord(row, index)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, record)
	}

	return &Table{Header: header, Rows: dataRows, Records: records}, nil
}

func parseRecord(row []string, index map[string]int) (CustomerRecord, error) {
	var record CustomerRecord
	var err error

	numeric := []struct {
		column string
		target *float64
	}{
		{"age", &record.Age},
		{"usage_frequency", &record.UsageFrequency},
		{"num_purchases", &record.NumPurchases},
		{"satisfaction_score", &record.SatisfactionScore},
		{"num_support_tickets", &record.NumSupportTickets},
	}
	for _, field := range numeric {
		*field.target, err = strconv.ParseFloat(row[index[field.column]], 64)
		if err != nil {
			return record, fmt.Errorf("column %q: %q is not numeric", field.column, row[index[field.column]])
		}
	}

	churnRaw := row[index["churn"]]
	churn, err := strconv.Atoi(churnRaw)
	if err != nil || (churn != 0 && churn != 1) {
		return record, fmt.Errorf("column \"churn\": %q is not a 0/1 label", churnRaw)
	}
	record.Churn = churn

	if i, ok := index["tenure_days"]; ok && row[i] != "" {
		record.TenureDays, err = strconv.ParseFloat(row[i], 64)
		if err != nil {
			return record, fmt.Errorf("column \"tenure_days\": %q is not numeric", row[i])
		}
	}
	if i, ok := index["review_text"]; ok {
		record.ReviewText = row[i]
	}

	return record, nil
}
