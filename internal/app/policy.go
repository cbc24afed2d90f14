package app

import (
	"fmt"

	"matricare/pkg/domain"
)

// Authorization guards. Each returns a tagged error describing the exact
// rule that failed: role mismatch and consent violations are Authorization,
// absent targets are NotFound. Violations are never reported as empty
// results.

func requireMother(caller domain.User) error {
	if caller.Role != domain.RoleMother {
		return AuthorizationError("this action is only available to mothers")
	}
	return nil
}

func requireNurse(caller domain.User) error {
	if caller.Role != domain.RoleNurse {
		return AuthorizationError("this action is only available to nurses")
	}
	return nil
}

func requireAdmin(caller domain.User) error {
	if !caller.IsAdmin {
		return AuthorizationError("administrator access required")
	}
	return nil
}

// motherByID resolves an id to a user with the mother role.
func (a *App) motherByID(motherID string) (domain.User, error) {
	mother, ok, err := a.store.GetUserByID(motherID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load mother: %w", err)
	}
	if !ok {
		return domain.User{}, NotFoundError("mother not found")
	}
	if mother.Role != domain.RoleMother {
		return domain.User{}, ValidationError("target user is not a mother")
	}
	return mother, nil
}

// nurseByID resolves an id to a user with the nurse role.
func (a *App) nurseByID(nurseID string) (domain.User, error) {
	nurse, ok, err := a.store.GetUserByID(nurseID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load nurse: %w", err)
	}
	if !ok {
		return domain.User{}, NotFoundError("nurse not found")
	}
	if nurse.Role != domain.RoleNurse {
		return domain.User{}, ValidationError("target user is not a nurse")
	}
	return nurse, nil
}

// authorizeMotherDataRead checks the nurse-reads-mother-data rule: the nurse
// must hold an active assignment to the mother and the mother's consent flag
// must be true at the time of the read. Consent revocation therefore takes
// effect on the next read even while the assignment persists.
func (a *App) authorizeMotherDataRead(nurse domain.User, motherID string) (domain.User, error) {
	if err := requireNurse(nurse); err != nil {
		return domain.User{}, err
	}
	mother, err := a.motherByID(motherID)
	if err != nil {
		return domain.User{}, err
	}
	_, assigned, err := a.store.GetAssignment(nurse.ID, mother.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load assignment: %w", err)
	}
	if !assigned {
		return domain.User{}, AuthorizationError("you are not assigned to this mother")
	}
	if !mother.ShareConsent {
		return domain.User{}, AuthorizationError("this mother has not consented to share her health data")
	}
	return mother, nil
}
