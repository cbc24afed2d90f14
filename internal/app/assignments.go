package app

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"matricare/pkg/domain"
	"matricare/pkg/store"
)

// AssignedMother is a nurse's view of one mother in her care, carrying the
// latest vitals and a recent trend series.
type AssignedMother struct {
	Mother     domain.User         `json:"mother"`
	AssignedAt string              `json:"assigned_at"`
	LatestLog  *domain.HealthLog   `json:"latest_log,omitempty"`
	Trends     []domain.TrendPoint `json:"trends"`
}

// AssignMother creates the exclusive nurse-mother care relation. Admin only.
// The checks run in a fixed order: role validation, consent, duplicate pair,
// then any other assignee. The storage uniqueness constraints back the last
// two checks, so concurrent admin requests cannot slip past them.
func (a *App) AssignMother(caller domain.User, nurseID, motherID string) (domain.Assignment, error) {
	if err := requireAdmin(caller); err != nil {
		return domain.Assignment{}, err
	}
	if nurseID == "" || motherID == "" {
		return domain.Assignment{}, ValidationError("nurse_id and mother_id are required")
	}
	nurse, err := a.nurseByID(nurseID)
	if err != nil {
		return domain.Assignment{}, err
	}
	mother, err := a.motherByID(motherID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if !mother.ShareConsent {
		return domain.Assignment{}, AuthorizationError("this mother has not consented to share her health data")
	}
	if _, exists, err := a.store.GetAssignment(nurse.ID, mother.ID); err != nil {
		return domain.Assignment{}, fmt.Errorf("load assignment: %w", err)
	} else if exists {
		return domain.Assignment{}, ConflictError("this mother is already assigned to this nurse")
	}
	if _, exists, err := a.store.GetAssignmentByMother(mother.ID); err != nil {
		return domain.Assignment{}, fmt.Errorf("load assignment: %w", err)
	} else if exists {
		return domain.Assignment{}, ConflictError("this mother is already assigned to another nurse")
	}

	assignment := domain.Assignment{
		ID:         uuid.NewString(),
		NurseID:    nurse.ID,
		MotherID:   mother.ID,
		AssignedAt: a.now().UTC(),
	}
	if err := a.store.CreateAssignment(assignment); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// A concurrent request won the insert.
			return domain.Assignment{}, ConflictError("this mother is already assigned to a nurse")
		}
		return domain.Assignment{}, fmt.Errorf("create assignment: %w", err)
	}
	return assignment, nil
}

// RemoveAssignment deletes the nurse-mother relation. Admin only. Removal is
// unconditional once authorized.
func (a *App) RemoveAssignment(caller domain.User, nurseID, motherID string) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	if nurseID == "" || motherID == "" {
		return ValidationError("nurse_id and mother_id are required")
	}
	existed, err := a.store.DeleteAssignment(nurseID, motherID)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if !existed {
		return NotFoundError("no assignment exists for this nurse and mother")
	}
	return nil
}

// AssignedMothers lists the calling nurse's mothers. Only consenting mothers
// are visible; non-consenting assigned mothers are withheld entirely, logs
// included.
func (a *App) AssignedMothers(caller domain.User) ([]AssignedMother, error) {
	if err := requireNurse(caller); err != nil {
		return nil, err
	}
	assignments, err := a.store.ListAssignmentsByNurse(caller.ID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	out := make([]AssignedMother, 0, len(assignments))
	for _, assignment := range assignments {
		mother, ok, err := a.store.GetUserByID(assignment.MotherID)
		if err != nil {
			return nil, fmt.Errorf("load mother: %w", err)
		}
		if !ok || !mother.ShareConsent {
			continue
		}
		entry := AssignedMother{
			Mother:     mother,
			AssignedAt: assignment.AssignedAt.Format("2006-01-02"),
			Trends:     []domain.TrendPoint{},
		}
		logs, err := a.store.ListHealthLogs(mother.ID, 10)
		if err != nil {
			return nil, fmt.Errorf("list health logs: %w", err)
		}
		if len(logs) > 0 {
			entry.LatestLog = &logs[0]
			for _, log := range logs {
				entry.Trends = append(entry.Trends, domain.TrendPointFromLog(log))
			}
		}
		out = append(out, entry)
	}
	return out, nil
}
