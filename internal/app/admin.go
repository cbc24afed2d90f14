package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"matricare/pkg/domain"
)

// QuizTopics are the education topics aggregated in admin stats.
var QuizTopics = []string{"Ball Birthing", "Shiatsu", "Yoga Techniques", "Lamaze Breathing"}

// Stats is the admin dashboard aggregate.
type Stats struct {
	TotalUsers    int                `json:"total_users"`
	TotalMothers  int                `json:"total_mothers"`
	TotalNurses   int                `json:"total_nurses"`
	AverageScore  float64            `json:"average_score"`
	TopicAverages map[string]float64 `json:"topic_averages"`
	RecentScores  []domain.TestScore `json:"recent_scores"`
}

// statsWindow maps a stats period name to its lookback duration. Month is
// the default.
func statsWindow(period string) (time.Duration, error) {
	switch period {
	case "week":
		return 7 * 24 * time.Hour, nil
	case "", "month":
		return 30 * 24 * time.Hour, nil
	case "year":
		return 365 * 24 * time.Hour, nil
	}
	return 0, ValidationError("period must be week, month, or year")
}

// AdminStats aggregates dashboard numbers over the given period. The
// independent reads fan out concurrently; any failure cancels the rest.
func (a *App) AdminStats(ctx context.Context, caller domain.User, period string) (Stats, error) {
	if err := requireAdmin(caller); err != nil {
		return Stats{}, err
	}
	window, err := statsWindow(period)
	if err != nil {
		return Stats{}, err
	}

	var (
		stats        Stats
		recentScores []domain.TestScore
		periodScores []domain.TestScore
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.store.UserCount()
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		stats.TotalUsers = n
		return nil
	})
	g.Go(func() error {
		mothers, err := a.store.ListUsersByRole(domain.RoleMother)
		if err != nil {
			return fmt.Errorf("list mothers: %w", err)
		}
		stats.TotalMothers = len(mothers)
		return nil
	})
	g.Go(func() error {
		nurses, err := a.store.ListUsersByRole(domain.RoleNurse)
		if err != nil {
			return fmt.Errorf("list nurses: %w", err)
		}
		stats.TotalNurses = len(nurses)
		return nil
	})
	g.Go(func() error {
		scores, err := a.store.ListRecentTestScores(10)
		if err != nil {
			return fmt.Errorf("list recent scores: %w", err)
		}
		recentScores = scores
		return nil
	})
	g.Go(func() error {
		scores, err := a.store.ListTestScoresSince(a.now().UTC().Add(-window))
		if err != nil {
			return fmt.Errorf("list period scores: %w", err)
		}
		periodScores = scores
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	stats.RecentScores = recentScores
	stats.AverageScore = averageScore(periodScores)
	stats.TopicAverages = topicAverages(periodScores)
	return stats, nil
}

// averageScore is the mean quiz score over the period, zero when none exist.
func averageScore(scores []domain.TestScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, sc := range scores {
		sum += float64(sc.Score)
	}
	return sum / float64(len(scores))
}

// topicAverages averages per-topic quiz marks across the given scores.
func topicAverages(scores []domain.TestScore) map[string]float64 {
	sums := make(map[string]float64, len(QuizTopics))
	counts := make(map[string]int, len(QuizTopics))
	for _, sc := range scores {
		for topic, mark := range sc.Topics {
			sums[topic] += mark
			counts[topic]++
		}
	}
	out := make(map[string]float64, len(QuizTopics))
	for _, topic := range QuizTopics {
		if counts[topic] == 0 {
			out[topic] = 0
			continue
		}
		out[topic] = sums[topic] / float64(counts[topic])
	}
	return out
}

// MotherSummary pairs a mother with her assigned nurse, when one exists.
type MotherSummary struct {
	User          domain.User  `json:"user"`
	AssignedNurse *domain.User `json:"assigned_nurse,omitempty"`
}

// ListMothers returns every mother account with assignment info. Admin only.
func (a *App) ListMothers(caller domain.User) ([]MotherSummary, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	mothers, err := a.store.ListUsersByRole(domain.RoleMother)
	if err != nil {
		return nil, fmt.Errorf("list mothers: %w", err)
	}
	out := make([]MotherSummary, 0, len(mothers))
	for _, mother := range mothers {
		entry := MotherSummary{User: mother}
		assignment, assigned, err := a.store.GetAssignmentByMother(mother.ID)
		if err != nil {
			return nil, fmt.Errorf("load assignment: %w", err)
		}
		if assigned {
			nurse, ok, err := a.store.GetUserByID(assignment.NurseID)
			if err != nil {
				return nil, fmt.Errorf("load nurse: %w", err)
			}
			if ok {
				entry.AssignedNurse = &nurse
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// ListNurses returns every nurse account with her assignment load. Admin only.
func (a *App) ListNurses(caller domain.User) ([]NurseSummary, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	nurses, err := a.store.ListUsersByRole(domain.RoleNurse)
	if err != nil {
		return nil, fmt.Errorf("list nurses: %w", err)
	}
	out := make([]NurseSummary, 0, len(nurses))
	for _, nurse := range nurses {
		count, err := a.store.CountAssignmentsByNurse(nurse.ID)
		if err != nil {
			return nil, fmt.Errorf("count assignments: %w", err)
		}
		out = append(out, NurseSummary{User: nurse, AssignedMothers: count})
	}
	return out, nil
}

// NurseSummary pairs a nurse with her current assignment count.
type NurseSummary struct {
	User            domain.User `json:"user"`
	AssignedMothers int         `json:"assigned_mothers"`
}

// ListAllUsers returns every account. Admin only.
func (a *App) ListAllUsers(caller domain.User) ([]domain.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return a.store.ListUsers()
}
