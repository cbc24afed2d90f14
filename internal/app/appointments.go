package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"matricare/pkg/domain"
	"matricare/pkg/store"
)

// ScheduleAppointment books a visit between a mother and a nurse. A mother
// can only schedule for herself, a nurse only for herself, and a
// nurse-initiated booking additionally requires an active assignment. The
// mother must have consented to data sharing. Two non-cancelled appointments
// may not share a nurse or a mother at the same exact instant.
func (a *App) ScheduleAppointment(caller domain.User, motherID, nurseID string, when time.Time, notes string) (domain.Appointment, error) {
	if motherID == "" || nurseID == "" {
		return domain.Appointment{}, ValidationError("mother_id and nurse_id are required")
	}
	if when.IsZero() {
		return domain.Appointment{}, ValidationError("appointment date_time is required")
	}

	switch {
	case caller.IsAdmin:
		// Admin may book for any valid pair.
	case caller.Role == domain.RoleMother:
		if caller.ID != motherID {
			return domain.Appointment{}, AuthorizationError("mothers can only schedule appointments for themselves")
		}
	case caller.Role == domain.RoleNurse:
		if caller.ID != nurseID {
			return domain.Appointment{}, AuthorizationError("nurses can only schedule appointments for themselves")
		}
	default:
		return domain.Appointment{}, AuthorizationError("you cannot schedule appointments")
	}

	nurse, err := a.nurseByID(nurseID)
	if err != nil {
		return domain.Appointment{}, err
	}
	mother, err := a.motherByID(motherID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !mother.ShareConsent {
		return domain.Appointment{}, AuthorizationError("this mother has not consented to share her health data")
	}
	if caller.Role == domain.RoleNurse {
		if _, assigned, err := a.store.GetAssignment(nurse.ID, mother.ID); err != nil {
			return domain.Appointment{}, fmt.Errorf("load assignment: %w", err)
		} else if !assigned {
			return domain.Appointment{}, AuthorizationError("you are not assigned to this mother")
		}
	}

	conflict, err := a.store.HasAppointmentConflict(nurse.ID, mother.ID, when)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("check appointment conflict: %w", err)
	}
	if conflict {
		return domain.Appointment{}, ConflictError("this time slot is already taken")
	}

	appointment := domain.Appointment{
		ID:       uuid.NewString(),
		MotherID: mother.ID,
		NurseID:  nurse.ID,
		DateTime: when.UTC(),
		Status:   domain.AppointmentPending,
		Notes:    notes,
	}
	if err := a.store.CreateAppointment(appointment); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// The slot index caught a concurrent booking.
			return domain.Appointment{}, ConflictError("this time slot is already taken")
		}
		return domain.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}
	return appointment, nil
}

// GetAppointments lists appointments visible to the caller: a mother sees
// her own, a nurse hers, an admin all of them. The mother/nurse filters are
// honored for admins only; parties are always hard-scoped to themselves.
func (a *App) GetAppointments(caller domain.User, motherID, nurseID string) ([]domain.Appointment, error) {
	switch {
	case caller.IsAdmin:
		switch {
		case motherID != "":
			return a.store.ListAppointmentsByMother(motherID)
		case nurseID != "":
			return a.store.ListAppointmentsByNurse(nurseID)
		}
		return a.store.ListAppointments()
	case caller.Role == domain.RoleMother:
		return a.store.ListAppointmentsByMother(caller.ID)
	case caller.Role == domain.RoleNurse:
		return a.store.ListAppointmentsByNurse(caller.ID)
	}
	return nil, AuthorizationError("you cannot view appointments")
}

// validTransitions encodes the appointment status machine. Cancelled is
// terminal.
var validTransitions = map[domain.AppointmentStatus][]domain.AppointmentStatus{
	domain.AppointmentPending:   {domain.AppointmentConfirmed, domain.AppointmentCancelled},
	domain.AppointmentConfirmed: {domain.AppointmentCancelled},
}

// UpdateAppointment applies a status transition, restricted to the two
// parties of the appointment or an admin.
func (a *App) UpdateAppointment(caller domain.User, id string, status domain.AppointmentStatus, notes *string) (domain.Appointment, error) {
	if id == "" {
		return domain.Appointment{}, ValidationError("appointment_id is required")
	}
	switch status {
	case domain.AppointmentPending, domain.AppointmentConfirmed, domain.AppointmentCancelled:
	default:
		return domain.Appointment{}, ValidationError("status must be pending, confirmed, or cancelled")
	}

	appointment, ok, err := a.store.GetAppointment(id)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("load appointment: %w", err)
	}
	if !ok {
		return domain.Appointment{}, NotFoundError("appointment not found")
	}
	if !caller.IsAdmin && caller.ID != appointment.MotherID && caller.ID != appointment.NurseID {
		return domain.Appointment{}, AuthorizationError("only the appointment's mother or nurse can update it")
	}

	allowed := false
	for _, next := range validTransitions[appointment.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return domain.Appointment{}, ValidationError(fmt.Sprintf("cannot change a %s appointment to %s", appointment.Status, status))
	}

	if err := a.store.UpdateAppointment(id, status, notes); err != nil {
		return domain.Appointment{}, fmt.Errorf("update appointment: %w", err)
	}
	appointment.Status = status
	if notes != nil {
		appointment.Notes = *notes
	}
	return appointment, nil
}
