package app

import (
	"fmt"
	"time"

	"matricare/pkg/domain"
)

// gestation length used to derive the pregnancy start from the due date.
const pregnancyDuration = 280 * 24 * time.Hour

// MotherProfile is the self-service profile view returned to a mother.
type MotherProfile struct {
	User         domain.User       `json:"user"`
	LatestVitals *domain.HealthLog `json:"latest_vitals,omitempty"`
	LatestRisk   *domain.TestResult `json:"latest_risk,omitempty"`
}

// Timeline describes pregnancy progress derived from the due date, with the
// recent vitals trend and latest risk result alongside.
type Timeline struct {
	DueDate        time.Time           `json:"due_date"`
	PregnancyStart time.Time           `json:"pregnancy_start"`
	CurrentWeek    int                 `json:"current_week"`
	DaysRemaining  int                 `json:"days_remaining"`
	Trends         []domain.TrendPoint `json:"trends"`
	LatestRisk     *domain.TestResult  `json:"latest_risk,omitempty"`
}

// UpdateConsent flips the caller's consent-to-share flag. Mother only.
func (a *App) UpdateConsent(caller domain.User, consent bool) error {
	if err := requireMother(caller); err != nil {
		return err
	}
	if err := a.store.UpdateUserConsent(caller.ID, consent); err != nil {
		return fmt.Errorf("update consent: %w", err)
	}
	return nil
}

// UpdateDueDate sets the caller's due date from a YYYY-MM-DD string.
func (a *App) UpdateDueDate(caller domain.User, dueDate string) (time.Time, error) {
	if err := requireMother(caller); err != nil {
		return time.Time{}, err
	}
	parsed, err := time.Parse("2006-01-02", dueDate)
	if err != nil {
		return time.Time{}, ValidationError("due date must be in YYYY-MM-DD format")
	}
	if err := a.store.UpdateUserDueDate(caller.ID, parsed); err != nil {
		return time.Time{}, fmt.Errorf("update due date: %w", err)
	}
	return parsed, nil
}

// GetMotherProfile returns the caller's profile with her latest vitals and
// risk result.
func (a *App) GetMotherProfile(caller domain.User) (MotherProfile, error) {
	if err := requireMother(caller); err != nil {
		return MotherProfile{}, err
	}
	profile := MotherProfile{User: caller}

	latest, ok, err := a.store.LatestHealthLog(caller.ID)
	if err != nil {
		return MotherProfile{}, fmt.Errorf("load latest log: %w", err)
	}
	if ok {
		profile.LatestVitals = &latest
	}

	risk, ok, err := a.store.LatestTestResult(caller.ID)
	if err != nil {
		return MotherProfile{}, fmt.Errorf("load latest result: %w", err)
	}
	if ok {
		profile.LatestRisk = &risk
	}
	return profile, nil
}

// GetTimeline derives pregnancy progress from the caller's due date. The
// current week is clamped to [1, 40].
func (a *App) GetTimeline(caller domain.User) (Timeline, error) {
	if err := requireMother(caller); err != nil {
		return Timeline{}, err
	}
	if caller.DueDate == nil {
		return Timeline{}, NotFoundError("no due date on record, set one first")
	}
	due := *caller.DueDate
	start := due.Add(-pregnancyDuration)
	now := a.now().UTC()

	week := int(now.Sub(start).Hours()/(24*7)) + 1
	if week < 1 {
		week = 1
	}
	if week > 40 {
		week = 40
	}
	days := int(due.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}

	timeline := Timeline{
		DueDate:        due,
		PregnancyStart: start,
		CurrentWeek:    week,
		DaysRemaining:  days,
		Trends:         []domain.TrendPoint{},
	}
	logs, err := a.store.ListHealthLogs(caller.ID, 10)
	if err != nil {
		return Timeline{}, fmt.Errorf("list health logs: %w", err)
	}
	for _, log := range logs {
		timeline.Trends = append(timeline.Trends, domain.TrendPointFromLog(log))
	}
	risk, ok, err := a.store.LatestTestResult(caller.ID)
	if err != nil {
		return Timeline{}, fmt.Errorf("load latest result: %w", err)
	}
	if ok {
		timeline.LatestRisk = &risk
	}
	return timeline, nil
}

// AcknowledgeGamification accepts gamification payloads from older clients.
// Progress tracking moved client-side, so the server only validates the
// caller and acknowledges.
func (a *App) AcknowledgeGamification(caller domain.User) error {
	return requireMother(caller)
}
