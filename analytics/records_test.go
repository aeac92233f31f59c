package analytics

import (
	"errors"
	"strings"
	"testing"
)

const sampleCSV = `age,usage_frequency,num_purchases,satisfaction_score,num_support_tickets,tenure_days,review_text,churn
25,10,3,2.4,5,120,bad support,1
40,2,8,4.6,0,800,great product,0
`

func TestParseTable(t *testing.T) {
	table, err := ParseTable(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(table.Records))
	}

	first := table.Records[0]
	if first.Age != 25 || first.Churn != 1 || first.ReviewText != "bad support" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.TenureDays != 120 {
		t.Fatalf("expected tenure 120, got %f", first.TenureDays)
	}
}

func TestParseTableMissingChurnColumn(t *testing.T) {
	csv := "age,usage_frequency,num_purchases,satisfaction_score,num_support_tickets\n25,10,3,2.4,5\n"
	_, err := ParseTable(strings.NewReader(csv))

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if schemaErr.Column != "churn" {
		t.Fatalf("expected churn column in error, got %q", schemaErr.Column)
	}
}

func TestParseTableUTF8BOM(t *testing.T) {
	table, err := ParseTable(strings.NewReader("\uFEFF" + sampleCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Header[0] != "age" {
		t.Fatalf("BOM leaked into header: %q", table.Header[0])
	}
}

func TestParseTableRejectsBadNumeric(t *testing.T) {
	csv := "age,usage_frequency,num_purchases,satisfaction_score,num_support_tickets,churn\nabc,10,3,2.4,5,1\n"
	if _, err := ParseTable(strings.NewReader(csv)); err == nil {
		t.Fatal("expected coercion error")
	}
}

func TestParseTableRejectsBadLabel(t *testing.T) {
	csv := "age,usage_frequency,num_purchases,satisfaction_score,num_support_tickets,churn\n25,10,3,2.4,5,2\n"
	if _, err := ParseTable(strings.NewReader(csv)); err == nil {
		t.Fatal("expected label error")
	}
}

func TestParseTableEmptyUpload(t *testing.T) {
	if _, err := ParseTable(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty upload")
	}
	headerOnly := "age,usage_frequency,num_purchases,satisfaction_score,num_support_tickets,churn\n"
	if _, err := ParseTable(strings.NewReader(headerOnly)); err == nil {
		t.Fatal("expected error for header-only upload")
	}
}
