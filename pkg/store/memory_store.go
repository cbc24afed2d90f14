package store

import (
	"sort"
	"sync"
	"time"

	"matricare/pkg/domain"
)

// MemoryStore is an in-memory Store used by tests and local development.
// It enforces the same uniqueness rules as the SQL schema: one account per
// email, one nurse per mother, and one non-cancelled appointment per party
// per instant.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]domain.User // keyed by ID
	usersByEmail map[string]string      // email -> ID
	assignments  map[string]domain.Assignment
	healthLogs   map[string][]domain.HealthLog // keyed by mother ID
	testResults  map[string][]domain.TestResult
	testScores   map[string][]domain.TestScore
	appointments map[string]domain.Appointment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]domain.User),
		usersByEmail: make(map[string]string),
		assignments:  make(map[string]domain.Assignment),
		healthLogs:   make(map[string][]domain.HealthLog),
		testResults:  make(map[string][]domain.TestResult),
		testScores:   make(map[string][]domain.TestScore),
		appointments: make(map[string]domain.Appointment),
	}
}

func (s *MemoryStore) SaveUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usersByEmail[u.Email]; exists {
		return ErrDuplicate
	}
	s.users[u.ID] = u
	s.usersByEmail[u.Email] = u.ID
	return nil
}

func (s *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[email]
	if !ok {
		return domain.User{}, false, nil
	}
	return s.users[id], true, nil
}

func (s *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) UpdateUserPassword(id, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Password = password
		s.users[id] = u
	}
	return nil
}

func (s *MemoryStore) UpdateUserConsent(id string, consent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.ShareConsent = consent
		s.users[id] = u
	}
	return nil
}

func (s *MemoryStore) UpdateUserDueDate(id string, dueDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		d := dueDate
		u.DueDate = &d
		s.users[id] = u
	}
	return nil
}

func (s *MemoryStore) ListUsers() ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		res = append(res, u)
	}
	sortUsers(res)
	return res, nil
}

func (s *MemoryStore) ListUsersByRole(role domain.UserRole) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.User
	for _, u := range s.users {
		if u.Role == role {
			res = append(res, u)
		}
	}
	sortUsers(res)
	return res, nil
}

func sortUsers(users []domain.User) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
}

func (s *MemoryStore) UserCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *MemoryStore) CreateAssignment(a domain.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assignments {
		if existing.MotherID == a.MotherID {
			return ErrDuplicate
		}
	}
	s.assignments[a.ID] = a
	return nil
}

func (s *MemoryStore) GetAssignment(nurseID, motherID string) (domain.Assignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.NurseID == nurseID && a.MotherID == motherID {
			return a, true, nil
		}
	}
	return domain.Assignment{}, false, nil
}

func (s *MemoryStore) GetAssignmentByMother(motherID string) (domain.Assignment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.MotherID == motherID {
			return a, true, nil
		}
	}
	return domain.Assignment{}, false, nil
}

func (s *MemoryStore) ListAssignmentsByNurse(nurseID string) ([]domain.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Assignment
	for _, a := range s.assignments {
		if a.NurseID == nurseID {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].AssignedAt.Before(res[j].AssignedAt) })
	return res, nil
}

func (s *MemoryStore) CountAssignmentsByNurse(nurseID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, a := range s.assignments {
		if a.NurseID == nurseID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) DeleteAssignment(nurseID, motherID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.assignments {
		if a.NurseID == nurseID && a.MotherID == motherID {
			delete(s.assignments, id)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) AppendHealthLog(l domain.HealthLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthLogs[l.UserID] = append(s.healthLogs[l.UserID], l)
	return nil
}

func (s *MemoryStore) ListHealthLogs(userID string, limit int) ([]domain.HealthLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := append([]domain.HealthLog(nil), s.healthLogs[userID]...)
	sort.Slice(logs, func(i, j int) bool { return logs[i].Timestamp.After(logs[j].Timestamp) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *MemoryStore) LatestHealthLog(userID string) (domain.HealthLog, bool, error) {
	logs, err := s.ListHealthLogs(userID, 1)
	if err != nil || len(logs) == 0 {
		return domain.HealthLog{}, false, err
	}
	return logs[0], true, nil
}

func (s *MemoryStore) AppendTestResult(r domain.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testResults[r.UserID] = append(s.testResults[r.UserID], r)
	return nil
}

func (s *MemoryStore) ListTestResults(userID string) ([]domain.TestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := append([]domain.TestResult(nil), s.testResults[userID]...)
	sort.Slice(res, func(i, j int) bool { return res[i].TestDate.After(res[j].TestDate) })
	return res, nil
}

func (s *MemoryStore) LatestTestResult(userID string) (domain.TestResult, bool, error) {
	results, err := s.ListTestResults(userID)
	if err != nil || len(results) == 0 {
		return domain.TestResult{}, false, err
	}
	return results[0], true, nil
}

func (s *MemoryStore) AppendTestScore(sc domain.TestScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testScores[sc.UserID] = append(s.testScores[sc.UserID], sc)
	return nil
}

func (s *MemoryStore) ListTestScores(userID string) ([]domain.TestScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := append([]domain.TestScore(nil), s.testScores[userID]...)
	sort.Slice(res, func(i, j int) bool { return res[i].TestDate.After(res[j].TestDate) })
	return res, nil
}

func (s *MemoryStore) ListTestScoresSince(since time.Time) ([]domain.TestScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.TestScore
	for _, scores := range s.testScores {
		for _, sc := range scores {
			if !sc.TestDate.Before(since) {
				res = append(res, sc)
			}
		}
	}
	return res, nil
}

func (s *MemoryStore) ListRecentTestScores(limit int) ([]domain.TestScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.TestScore
	for _, scores := range s.testScores {
		res = append(res, scores...)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].TestDate.After(res[j].TestDate) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *MemoryStore) CreateAppointment(a domain.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.appointments {
		if existing.Status == domain.AppointmentCancelled {
			continue
		}
		if existing.DateTime.Equal(a.DateTime) &&
			(existing.NurseID == a.NurseID || existing.MotherID == a.MotherID) {
			return ErrDuplicate
		}
	}
	s.appointments[a.ID] = a
	return nil
}

func (s *MemoryStore) GetAppointment(id string) (domain.Appointment, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	return a, ok, nil
}

func (s *MemoryStore) UpdateAppointment(id string, status domain.AppointmentStatus, notes *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.appointments[id]; ok {
		a.Status = status
		if notes != nil {
			a.Notes = *notes
		}
		s.appointments[id] = a
	}
	return nil
}

func (s *MemoryStore) HasAppointmentConflict(nurseID, motherID string, at time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.appointments {
		if a.Status == domain.AppointmentCancelled {
			continue
		}
		if a.DateTime.Equal(at) && (a.NurseID == nurseID || a.MotherID == motherID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListAppointmentsByMother(motherID string) ([]domain.Appointment, error) {
	return s.filterAppointments(func(a domain.Appointment) bool { return a.MotherID == motherID })
}

func (s *MemoryStore) ListAppointmentsByNurse(nurseID string) ([]domain.Appointment, error) {
	return s.filterAppointments(func(a domain.Appointment) bool { return a.NurseID == nurseID })
}

func (s *MemoryStore) ListAppointments() ([]domain.Appointment, error) {
	return s.filterAppointments(func(domain.Appointment) bool { return true })
}

func (s *MemoryStore) filterAppointments(keep func(domain.Appointment) bool) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []domain.Appointment
	for _, a := range s.appointments {
		if keep(a) {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].DateTime.After(res[j].DateTime) })
	return res, nil
}
