package app

import (
	"fmt"

	"github.com/google/uuid"

	"matricare/pkg/domain"
)

// AppendHealthLog records a vitals entry for the calling mother. Writes
// always succeed regardless of her consent flag; consent only gates
// downstream reads by nurses.
func (a *App) AppendHealthLog(caller domain.User, data map[string]float64) (domain.HealthLog, error) {
	if err := requireMother(caller); err != nil {
		return domain.HealthLog{}, err
	}
	if len(data) == 0 {
		return domain.HealthLog{}, ValidationError("health data is required")
	}
	for _, field := range domain.VitalSignFields {
		if _, ok := data[field]; !ok {
			return domain.HealthLog{}, ValidationError("missing vital sign field: " + field)
		}
	}
	log := domain.HealthLog{
		ID:            uuid.NewString(),
		UserID:        caller.ID,
		Timestamp:     a.now().UTC(),
		Data:          data,
		ConsentShared: caller.ShareConsent,
	}
	if err := a.store.AppendHealthLog(log); err != nil {
		return domain.HealthLog{}, fmt.Errorf("append health log: %w", err)
	}
	return log, nil
}

// GetHealthLogs returns the calling mother's own logs, newest first.
func (a *App) GetHealthLogs(caller domain.User, limit int) ([]domain.HealthLog, error) {
	if err := requireMother(caller); err != nil {
		return nil, err
	}
	logs, err := a.store.ListHealthLogs(caller.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list health logs: %w", err)
	}
	return logs, nil
}

// ListTestResults returns the caller's own risk-assessment history.
func (a *App) ListTestResults(caller domain.User) ([]domain.TestResult, error) {
	results, err := a.store.ListTestResults(caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list test results: %w", err)
	}
	return results, nil
}

// SaveTestResult records a client-submitted risk result for the caller, for
// assessments taken outside the prediction flow.
func (a *App) SaveTestResult(caller domain.User, score float64, riskLevel string, details map[string]float64) (domain.TestResult, error) {
	if riskLevel != domain.RiskLow && riskLevel != domain.RiskHighMid {
		return domain.TestResult{}, ValidationError("risk_level must be " + domain.RiskLow + " or " + domain.RiskHighMid)
	}
	if score < 0 || score > 100 {
		return domain.TestResult{}, ValidationError("score must be between 0 and 100")
	}
	result := domain.TestResult{
		ID:        uuid.NewString(),
		UserID:    caller.ID,
		Score:     score,
		RiskLevel: riskLevel,
		Details:   details,
		TestDate:  a.now().UTC(),
	}
	if err := a.store.AppendTestResult(result); err != nil {
		return domain.TestResult{}, fmt.Errorf("append test result: %w", err)
	}
	return result, nil
}

// SaveTestScore records a quiz outcome for the caller.
func (a *App) SaveTestScore(caller domain.User, score, maxScore int, topics map[string]float64) (domain.TestScore, error) {
	if maxScore <= 0 {
		maxScore = 15
	}
	if score < 0 || score > maxScore {
		return domain.TestScore{}, ValidationError("score must be between 0 and the maximum score")
	}
	entry := domain.TestScore{
		ID:       uuid.NewString(),
		UserID:   caller.ID,
		Score:    score,
		MaxScore: maxScore,
		Topics:   topics,
		TestDate: a.now().UTC(),
	}
	if err := a.store.AppendTestScore(entry); err != nil {
		return domain.TestScore{}, fmt.Errorf("append test score: %w", err)
	}
	return entry, nil
}

// ListTestScores returns the caller's own quiz history.
func (a *App) ListTestScores(caller domain.User) ([]domain.TestScore, error) {
	scores, err := a.store.ListTestScores(caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list test scores: %w", err)
	}
	return scores, nil
}
