package analytics

import (
	"encoding/csv"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Age bucket boundaries: left edge inclusive, right edge exclusive. Ages
// outside [18,100) are excluded from the age breakdown entirely.
var (
	ageBucketEdges  = []float64{18, 25, 35, 45, 60, 100}
	ageBucketLabels = []string{"18-25", "26-35", "36-45", "46-60", "60+"}
)

// GroupStat splits one bucket's records by outcome.
type GroupStat struct {
	Retained int `json:"Retained"`
	Churned  int `json:"Churned"`
}

// UsageChurn is the mean churn value for one raw usage_frequency value.
type UsageChurn struct {
	UsageFrequency float64 `json:"usage_frequency"`
	Churn          float64 `json:"churn"`
}

// Report is the aggregation output for one uploaded batch. Every figure is
// computed from the upload's own churn label; the classifier is never
// involved here.
type Report struct {
	TotalRecords      int                  `json:"total_records"`
	ChurnCount        int                  `json:"churn_count"`
	ChurnRate         float64              `json:"churn_rate"`
	AvgSatisfaction   float64              `json:"avg_satisfaction"`
	ChurnDistribution map[int]int          `json:"churn_distribution"`
	AgeChurn          map[string]GroupStat `json:"age_churn_data"`
	UsageChurn        []UsageChurn         `json:"usage_churn_data"`
	SatisfactionChurn map[string]GroupStat `json:"satisfaction_churn_data"`
	TicketsChurn      map[string]GroupStat `json:"tickets_churn_data"`
	FullDataCSV       string               `json:"full_data_csv"`
}

// BuildReport computes the grouped churn statistics for a parsed table and
// attaches the enriched full-table CSV for download.
func BuildReport(table *Table) *Report {
	records := table.Records
	report := &Report{
		TotalRecords:      len(records),
		ChurnDistribution: map[int]int{0: 0, 1: 0},
		AgeChurn:          make(map[string]GroupStat),
		SatisfactionChurn: make(map[string]GroupStat),
		TicketsChurn:      make(map[string]GroupStat),
	}

	var satisfactionSum float64
	usageTotals := make(map[float64]int)
	usageChurned := make(map[float64]int)

	for _, record := range records {
		report.ChurnDistribution[record.Churn]++
		if record.Churn == 1 {
			report.ChurnCount++
		}
		satisfactionSum += record.SatisfactionScore

		if label, ok := ageBucket(record.Age); ok {
			report.AgeChurn[label] = bump(report.AgeChurn[label], record.Churn)
		}

		usageTotals[record.UsageFrequency]++
		usageChurned[record.UsageFrequency] += record.Churn

		satLabel := satisfactionBucket(record.SatisfactionScore)
		report.SatisfactionChurn[satLabel] = bump(report.SatisfactionChurn[satLabel], record.Churn)

		ticketLabel := ticketBucket(record.NumSupportTickets)
		report.TicketsChurn[ticketLabel] = bump(report.TicketsChurn[ticketLabel], record.Churn)
	}

	total := float64(report.TotalRecords)
	report.ChurnRate = round1(float64(report.ChurnCount) / total * 100)
	report.AvgSatisfaction = round2(satisfactionSum / total)

	usageValues := make([]float64, 0, len(usageTotals))
	for value := range usageTotals {
		usageValues = append(usageValues, value)
	}
	sort.Float64s(usageValues)
	for _, value := range usageValues {
		report.UsageChurn = append(report.UsageChurn, UsageChurn{
			UsageFrequency: value,
			Churn:          float64(usageChurned[value]) / float64(usageTotals[value]),
		})
	}

	report.FullDataCSV = enrichedCSV(table)
	return report
}

func bump(stat GroupStat, churn int) GroupStat {
	if churn == 1 {
		stat.Churned++
	} else {
		stat.Retained++
	}
	return stat
}

func ageBucket(age float64) (string, bool) {
	if age < ageBucketEdges[0] || age >= ageBucketEdges[len(ageBucketEdges)-1] {
		return "", false
	}
	for i := 1; i < len(ageBucketEdges); i++ {
		if age < ageBucketEdges[i] {
			return ageBucketLabels[i-1], true
		}
	}
	return "", false
}

// satisfactionBucket rounds the score to the nearest integer and clips the
// result to [1,5].
func satisfactionBucket(score float64) string {
	rounded := int(math.Round(score))
	if rounded < 1 {
		rounded = 1
	}
	if rounded > 5 {
		rounded = 5
	}
	return strconv.Itoa(rounded)
}

// ticketBucket keeps integer labels for 0-3 tickets and collapses everything
// at four or above into "4+".
func ticketBucket(tickets float64) string {
	count := int(tickets)
	if count >= 4 {
		return "4+"
	}
	return strconv.Itoa(count)
}

// enrichedCSV re-serializes the uploaded table with the derived columns
// appended. churn_prediction and churn_prediction_label echo the upload's
// own ground-truth churn value under prediction-style names; they are not
// model inferences.
func enrichedCSV(table *Table) string {
	var out strings.Builder
	writer := csv.NewWriter(&out)

	header := append(append([]string{}, table.Header...),
		"churn_prediction", "churn_prediction_label",
		"age_group", "satisfaction_score_int", "tickets_group")
	writer.Write(header)

	for i, row := range table.Rows {
		record := table.Records[i]
		label := "No"
		if record.Churn == 1 {
			label = "Yes"
		}
		group, _ := ageBucket(record.Age)
		enriched := append(append([]string{}, row...),
			strconv.Itoa(record.Churn),
			label,
			group,
			satisfactionBucket(record.SatisfactionScore),
			ticketBucket(record.NumSupportTickets))
		writer.Write(enriched)
	}
	writer.Flush()
	return out.String()
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
