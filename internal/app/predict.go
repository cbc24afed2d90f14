package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"matricare/pkg/domain"
	"matricare/pkg/ml"
)

// PredictRequest carries either caller-supplied vitals or a reference to a
// mother whose stored health data should be used.
type PredictRequest struct {
	Age         float64 `json:"Age"`
	SystolicBP  float64 `json:"SystolicBP"`
	DiastolicBP float64 `json:"DiastolicBP"`
	BS          float64 `json:"BS"`
	BodyTemp    float64 `json:"BodyTemp"`
	HeartRate   float64 `json:"HeartRate"`

	UseMotherData bool   `json:"use_mother_data"`
	MotherID      string `json:"mother_id"`
}

// PredictResult is the risk assessment returned to the client.
type PredictResult struct {
	Prediction     string  `json:"prediction"`
	Probability    float64 `json:"probability"`
	Recommendation string  `json:"recommendation"`
	TestResultID   string  `json:"test_result_id"`
}

func (r PredictRequest) vitals() ml.Vitals {
	return ml.Vitals{r.Age, r.SystolicBP, r.DiastolicBP, r.BS, r.BodyTemp, r.HeartRate}
}

// Predict classifies a vitals sample and attaches a recommendation. With
// use_mother_data set, the caller must be a nurse assigned to a consenting
// mother and the vitals come from her latest stored log. The outcome is
// persisted as a TestResult for the subject of the prediction.
//
// Classifier failures fail the request: there is no safe default risk label.
// Recommendation generation failures degrade to the rule-based fallback.
func (a *App) Predict(ctx context.Context, caller domain.User, req PredictRequest) (PredictResult, error) {
	subject := caller
	vitals := req.vitals()

	if req.UseMotherData {
		if req.MotherID == "" {
			return PredictResult{}, ValidationError("mother_id is required when using stored health data")
		}
		mother, err := a.authorizeMotherDataRead(caller, req.MotherID)
		if err != nil {
			return PredictResult{}, err
		}
		latest, ok, err := a.store.LatestHealthLog(mother.ID)
		if err != nil {
			return PredictResult{}, fmt.Errorf("load latest log: %w", err)
		}
		if !ok {
			return PredictResult{}, NotFoundError("no health data recorded for this mother")
		}
		subject = mother
		vitals = vitalsFromLog(latest)
	} else if err := validateVitals(vitals); err != nil {
		return PredictResult{}, err
	}

	if a.classifier == nil {
		return PredictResult{}, DependencyError("risk assessment is currently unavailable", nil)
	}
	pred, err := a.classifier.Classify(ctx, vitals)
	if err != nil {
		return PredictResult{}, DependencyError("risk assessment is currently unavailable", err)
	}
	label := domain.RiskLow
	if pred.HighRisk {
		label = domain.RiskHighMid
	}

	recommendation := a.recommendationFor(ctx, vitals, label, pred)

	result := domain.TestResult{
		ID:        uuid.NewString(),
		UserID:    subject.ID,
		Score:     pred.Probability * 100,
		RiskLevel: label,
		Details:   vitalsMap(vitals),
		TestDate:  a.now().UTC(),
	}
	if err := a.store.AppendTestResult(result); err != nil {
		return PredictResult{}, fmt.Errorf("append test result: %w", err)
	}

	return PredictResult{
		Prediction:     label,
		Probability:    pred.Probability,
		Recommendation: recommendation,
		TestResultID:   result.ID,
	}, nil
}

func (a *App) recommendationFor(ctx context.Context, vitals ml.Vitals, label string, pred ml.Prediction) string {
	if a.generator == nil {
		return ml.FallbackRecommendation(vitals, pred.HighRisk)
	}
	genCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	prompt := fmt.Sprintf(
		"A pregnant patient has these vitals: age %.0f, blood pressure %.0f/%.0f, blood sugar %.1f mmol/L, body temperature %.1f F, heart rate %.0f bpm. "+
			"The risk assessment result is %q with %.0f%% confidence. "+
			"Give short, practical guidance for the patient in plain language.",
		vitals[ml.VitalAge], vitals[ml.VitalSystolicBP], vitals[ml.VitalDiastolicBP],
		vitals[ml.VitalBS], vitals[ml.VitalBodyTemp], vitals[ml.VitalHeartRate],
		label, pred.Probability*100,
	)
	text, err := a.generator.GenerateText(genCtx, maternalAssistantPrompt, prompt)
	if err != nil {
		return ml.FallbackRecommendation(vitals, pred.HighRisk)
	}
	return text
}

func validateVitals(v ml.Vitals) error {
	if v[ml.VitalAge] <= 0 {
		return ValidationError("Age must be a positive number")
	}
	if v[ml.VitalSystolicBP] <= 0 || v[ml.VitalDiastolicBP] <= 0 {
		return ValidationError("blood pressure values must be positive numbers")
	}
	if v[ml.VitalBS] <= 0 || v[ml.VitalBodyTemp] <= 0 || v[ml.VitalHeartRate] <= 0 {
		return ValidationError("BS, BodyTemp, and HeartRate must be positive numbers")
	}
	return nil
}

func vitalsFromLog(log domain.HealthLog) ml.Vitals {
	return ml.Vitals{
		log.Data["Age"],
		log.Data["SystolicBP"],
		log.Data["DiastolicBP"],
		log.Data["BS"],
		log.Data["BodyTemp"],
		log.Data["HeartRate"],
	}
}

func vitalsMap(v ml.Vitals) map[string]float64 {
	out := make(map[string]float64, len(domain.VitalSignFields))
	for i, field := range domain.VitalSignFields {
		out[field] = v[i]
	}
	return out
}
