package ml

import "context"

// Vitals holds the six classifier inputs in model feature order:
// Age, SystolicBP, DiastolicBP, BS, BodyTemp, HeartRate.
type Vitals [6]float64

const (
	VitalAge = iota
	VitalSystolicBP
	VitalDiastolicBP
	VitalBS
	VitalBodyTemp
	VitalHeartRate
)

// Prediction is a binary maternal-risk classification with the model's
// confidence in the predicted class.
type Prediction struct {
	HighRisk    bool
	Probability float64
}

// RiskClassifier scores a vitals sample. Implementations are a remote model
// server and a threshold rule table used when the model is unreachable.
type RiskClassifier interface {
	Classify(ctx context.Context, v Vitals) (Prediction, error)
}
