package store

import (
	"errors"
	"time"

	"matricare/pkg/domain"
)

// ErrDuplicate is returned when an insert violates a storage uniqueness
// constraint (duplicate email, duplicate assignment, occupied appointment
// slot). It backs the application-level checks under concurrent writers.
var ErrDuplicate = errors.New("store: duplicate record")

// Store defines persistence operations for users, assignments, health logs,
// test records, and appointments.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	UpdateUserPassword(id, password string) error
	UpdateUserConsent(id string, consent bool) error
	UpdateUserDueDate(id string, dueDate time.Time) error
	ListUsers() ([]domain.User, error)
	ListUsersByRole(role domain.UserRole) ([]domain.User, error)
	UserCount() (int, error)

	// assignments
	CreateAssignment(domain.Assignment) error
	GetAssignment(nurseID, motherID string) (domain.Assignment, bool, error)
	GetAssignmentByMother(motherID string) (domain.Assignment, bool, error)
	ListAssignmentsByNurse(nurseID string) ([]domain.Assignment, error)
	CountAssignmentsByNurse(nurseID string) (int, error)
	DeleteAssignment(nurseID, motherID string) (bool, error)

	// health logs
	AppendHealthLog(domain.HealthLog) error
	ListHealthLogs(userID string, limit int) ([]domain.HealthLog, error)
	LatestHealthLog(userID string) (domain.HealthLog, bool, error)

	// test results and quiz scores
	AppendTestResult(domain.TestResult) error
	ListTestResults(userID string) ([]domain.TestResult, error)
	LatestTestResult(userID string) (domain.TestResult, bool, error)
	AppendTestScore(domain.TestScore) error
	ListTestScores(userID string) ([]domain.TestScore, error)
	ListTestScoresSince(since time.Time) ([]domain.TestScore, error)
	ListRecentTestScores(limit int) ([]domain.TestScore, error)

	// appointments
	CreateAppointment(domain.Appointment) error
	GetAppointment(id string) (domain.Appointment, bool, error)
	UpdateAppointment(id string, status domain.AppointmentStatus, notes *string) error
	HasAppointmentConflict(nurseID, motherID string, at time.Time) (bool, error)
	ListAppointmentsByMother(motherID string) ([]domain.Appointment, error)
	ListAppointmentsByNurse(nurseID string) ([]domain.Appointment, error)
	ListAppointments() ([]domain.Appointment, error)
}
