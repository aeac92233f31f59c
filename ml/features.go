package ml

// Values forced into every record before scaling. They are applied at both
// fit time and inference time; callers can never override them.
const (
	DefaultAvgPurchaseValue = 1500.0
	DefaultSentimentScore   = 0.0
)

// NumericFeatureCount is the fixed width of the numeric feature vector.
const NumericFeatureCount = 8

// CustomerFeatures carries the numeric signals for one customer.
// NumericVector fixes the order in which they enter the model.
type CustomerFeatures struct {
	Age               float64
	UsageFrequency    float64
	NumPurchases      float64
	AvgPurchaseValue  float64
	SentimentScore    float64
	SatisfactionScore float64
	NumSupportTickets float64
	TenureDays        float64
}

// NumericFeatureNames returns the canonical column order shared by the
// training pipeline and the inference service. Scaler moments, assembled
// vectors and classifier weights all assume this exact order.
func NumericFeatureNames() []string {
	return []string{
		"age",
		"usage_frequency",
		"num_purchases",
		"avg_purchase_value",
		"sentiment_score",
		"satisfaction_score",
		"num_support_tickets",
		"tenure_days",
	}
}

// NumericVector flattens features into the canonical order.
func NumericVector(f CustomerFeatures) []float64 {
	return []float64{
		f.Age,
		f.UsageFrequency,
		f.NumPurchases,
		f.AvgPurchaseValue,
		f.SentimentScore,
		f.SatisfactionScore,
		f.NumSupportTickets,
		f.TenureDays,
	}
}

// Assemble concatenates a text vector and a scaled numeric vector into the
// single classifier input. The [text | numeric] order must be identical at
// training time and inference time.
func Assemble(text, numeric []float64) []float64 {
	assembled := make([]float64, 0, len(text)+len(numeric))
	assembled = append(assembled, text...)
	assembled = append(assembled, numeric...)
	return assembled
}
