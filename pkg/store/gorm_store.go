package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"matricare/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return NewGormStoreWithDB(db)
}

// NewGormStoreWithDB wraps an already-open gorm DB and runs migrations.
// The DB must be opened with TranslateError enabled so uniqueness violations
// surface as gorm.ErrDuplicatedKey.
func NewGormStoreWithDB(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(
		&UserModel{},
		&AssignmentModel{},
		&HealthLogModel{},
		&TestResultModel{},
		&TestScoreModel{},
		&AppointmentModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	// Partial unique indexes back the appointment slot-conflict rule:
	// non-cancelled appointments may not share a nurse or a mother at the
	// same instant. AutoMigrate cannot express the WHERE clause.
	for _, ddl := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_appointment_nurse_slot
			ON appointments (nurse_id, date_time) WHERE status <> 'cancelled'`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_appointment_mother_slot
			ON appointments (mother_id, date_time) WHERE status <> 'cancelled'`,
	} {
		if err := db.Exec(ddl).Error; err != nil {
			return nil, fmt.Errorf("create appointment slot index: %w", err)
		}
	}
	return &GormStore{db: db}, nil
}

func translateDuplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// SaveUser registers a user. A duplicate email yields ErrDuplicate.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return translateDuplicate(s.db.Create(&model).Error)
}

// GetUserByEmail looks up a user by normalized email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UpdateUserPassword rewrites only the credential column. Used by the
// transparent legacy-credential migration on login.
func (s *GormStore) UpdateUserPassword(id, password string) error {
	return s.db.Model(&UserModel{}).Where("id = ?", id).
		Update("password", password).Error
}

// UpdateUserConsent flips the mother's share-consent flag.
func (s *GormStore) UpdateUserConsent(id string, consent bool) error {
	return s.db.Model(&UserModel{}).Where("id = ?", id).
		Update("share_consent", consent).Error
}

// UpdateUserDueDate sets the mother's due date.
func (s *GormStore) UpdateUserDueDate(id string, dueDate time.Time) error {
	return s.db.Model(&UserModel{}).Where("id = ?", id).
		Update("due_date", dueDate).Error
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	return s.listUsers()
}

// ListUsersByRole returns users with the given role ordered by created_at.
func (s *GormStore) ListUsersByRole(role domain.UserRole) ([]domain.User, error) {
	return s.listUsers("role = ?", string(role))
}

func (s *GormStore) listUsers(conds ...any) ([]domain.User, error) {
	var models []UserModel
	tx := s.db.Order("created_at ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateAssignment inserts the nurse-mother relation. The unique indexes on
// (nurse_id, mother_id) and on mother_id reject the losing insert of a
// concurrent race as ErrDuplicate.
func (s *GormStore) CreateAssignment(a domain.Assignment) error {
	model := AssignmentModel{
		ID:         a.ID,
		NurseID:    a.NurseID,
		MotherID:   a.MotherID,
		AssignedAt: a.AssignedAt,
	}
	return translateDuplicate(s.db.Create(&model).Error)
}

// GetAssignment returns the assignment for an exact nurse-mother pair.
func (s *GormStore) GetAssignment(nurseID, motherID string) (domain.Assignment, bool, error) {
	var model AssignmentModel
	err := s.db.Where("nurse_id = ? AND mother_id = ?", nurseID, motherID).First(&model).Error
	return assignmentResult(model, err)
}

// GetAssignmentByMother returns the mother's active assignment, if any.
func (s *GormStore) GetAssignmentByMother(motherID string) (domain.Assignment, bool, error) {
	var model AssignmentModel
	err := s.db.Where("mother_id = ?", motherID).First(&model).Error
	return assignmentResult(model, err)
}

func assignmentResult(model AssignmentModel, err error) (domain.Assignment, bool, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Assignment{}, false, nil
		}
		return domain.Assignment{}, false, err
	}
	return assignmentFromModel(model), true, nil
}

// ListAssignmentsByNurse returns the nurse's assignments oldest-first.
func (s *GormStore) ListAssignmentsByNurse(nurseID string) ([]domain.Assignment, error) {
	var models []AssignmentModel
	if err := s.db.Where("nurse_id = ?", nurseID).Order("assigned_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Assignment, 0, len(models))
	for _, m := range models {
		res = append(res, assignmentFromModel(m))
	}
	return res, nil
}

// CountAssignmentsByNurse returns how many mothers a nurse carries.
func (s *GormStore) CountAssignmentsByNurse(nurseID string) (int, error) {
	var count int64
	if err := s.db.Model(&AssignmentModel{}).Where("nurse_id = ?", nurseID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteAssignment removes the pair and reports whether it existed.
func (s *GormStore) DeleteAssignment(nurseID, motherID string) (bool, error) {
	res := s.db.Where("nurse_id = ? AND mother_id = ?", nurseID, motherID).Delete(&AssignmentModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendHealthLog records a vitals entry.
func (s *GormStore) AppendHealthLog(l domain.HealthLog) error {
	data, err := json.Marshal(l.Data)
	if err != nil {
		return fmt.Errorf("encode health data: %w", err)
	}
	model := HealthLogModel{
		ID:            l.ID,
		UserID:        l.UserID,
		Timestamp:     l.Timestamp,
		Data:          data,
		ConsentShared: l.ConsentShared,
	}
	return s.db.Create(&model).Error
}

// ListHealthLogs returns a mother's logs newest-first. limit <= 0 means all.
func (s *GormStore) ListHealthLogs(userID string, limit int) ([]domain.HealthLog, error) {
	tx := s.db.Where("user_id = ?", userID).Order("timestamp DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var models []HealthLogModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.HealthLog, 0, len(models))
	for _, m := range models {
		res = append(res, healthLogFromModel(m))
	}
	return res, nil
}

// LatestHealthLog returns the mother's most recent vitals entry.
func (s *GormStore) LatestHealthLog(userID string) (domain.HealthLog, bool, error) {
	var model HealthLogModel
	if err := s.db.Where("user_id = ?", userID).Order("timestamp DESC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.HealthLog{}, false, nil
		}
		return domain.HealthLog{}, false, err
	}
	return healthLogFromModel(model), true, nil
}

// AppendTestResult records a risk-assessment outcome.
func (s *GormStore) AppendTestResult(r domain.TestResult) error {
	details, err := json.Marshal(r.Details)
	if err != nil {
		return fmt.Errorf("encode result details: %w", err)
	}
	model := TestResultModel{
		ID:        r.ID,
		UserID:    r.UserID,
		Score:     r.Score,
		RiskLevel: r.RiskLevel,
		Details:   details,
		TestDate:  r.TestDate,
	}
	return s.db.Create(&model).Error
}

// ListTestResults returns a user's results newest-first.
func (s *GormStore) ListTestResults(userID string) ([]domain.TestResult, error) {
	var models []TestResultModel
	if err := s.db.Where("user_id = ?", userID).Order("test_date DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.TestResult, 0, len(models))
	for _, m := range models {
		res = append(res, testResultFromModel(m))
	}
	return res, nil
}

// LatestTestResult returns the user's most recent risk result.
func (s *GormStore) LatestTestResult(userID string) (domain.TestResult, bool, error) {
	var model TestResultModel
	if err := s.db.Where("user_id = ?", userID).Order("test_date DESC").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.TestResult{}, false, nil
		}
		return domain.TestResult{}, false, err
	}
	return testResultFromModel(model), true, nil
}

// AppendTestScore records a quiz outcome.
func (s *GormStore) AppendTestScore(sc domain.TestScore) error {
	topics, err := json.Marshal(sc.Topics)
	if err != nil {
		return fmt.Errorf("encode score topics: %w", err)
	}
	model := TestScoreModel{
		ID:       sc.ID,
		UserID:   sc.UserID,
		Score:    sc.Score,
		MaxScore: sc.MaxScore,
		Topics:   topics,
		TestDate: sc.TestDate,
	}
	return s.db.Create(&model).Error
}

// ListTestScores returns a user's quiz scores newest-first.
func (s *GormStore) ListTestScores(userID string) ([]domain.TestScore, error) {
	var models []TestScoreModel
	if err := s.db.Where("user_id = ?", userID).Order("test_date DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return testScoresFromModels(models), nil
}

// ListTestScoresSince returns all quiz scores at or after the cutoff.
func (s *GormStore) ListTestScoresSince(since time.Time) ([]domain.TestScore, error) {
	var models []TestScoreModel
	if err := s.db.Where("test_date >= ?", since).Find(&models).Error; err != nil {
		return nil, err
	}
	return testScoresFromModels(models), nil
}

// ListRecentTestScores returns the newest quiz scores across all users.
func (s *GormStore) ListRecentTestScores(limit int) ([]domain.TestScore, error) {
	if limit <= 0 {
		return []domain.TestScore{}, nil
	}
	var models []TestScoreModel
	if err := s.db.Order("test_date DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	return testScoresFromModels(models), nil
}

// CreateAppointment inserts a booking. The partial unique slot indexes
// reject a concurrent double-booking as ErrDuplicate.
func (s *GormStore) CreateAppointment(a domain.Appointment) error {
	model := appointmentToModel(a)
	return translateDuplicate(s.db.Create(&model).Error)
}

// GetAppointment retrieves one appointment.
func (s *GormStore) GetAppointment(id string) (domain.Appointment, bool, error) {
	var model AppointmentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Appointment{}, false, nil
		}
		return domain.Appointment{}, false, err
	}
	return appointmentFromModel(model), true, nil
}

// UpdateAppointment applies a status transition and optional notes rewrite.
func (s *GormStore) UpdateAppointment(id string, status domain.AppointmentStatus, notes *string) error {
	updates := map[string]any{"status": string(status)}
	if notes != nil {
		updates["notes"] = *notes
	}
	return s.db.Model(&AppointmentModel{}).Where("id = ?", id).Updates(updates).Error
}

// HasAppointmentConflict reports whether a non-cancelled appointment already
// occupies the exact instant for either party.
func (s *GormStore) HasAppointmentConflict(nurseID, motherID string, at time.Time) (bool, error) {
	var count int64
	err := s.db.Model(&AppointmentModel{}).
		Where("date_time = ? AND status <> ? AND (nurse_id = ? OR mother_id = ?)",
			at, string(domain.AppointmentCancelled), nurseID, motherID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListAppointmentsByMother returns the mother's appointments newest-first.
func (s *GormStore) ListAppointmentsByMother(motherID string) ([]domain.Appointment, error) {
	return s.listAppointments("mother_id = ?", motherID)
}

// ListAppointmentsByNurse returns the nurse's appointments newest-first.
func (s *GormStore) ListAppointmentsByNurse(nurseID string) ([]domain.Appointment, error) {
	return s.listAppointments("nurse_id = ?", nurseID)
}

// ListAppointments returns all appointments newest-first.
func (s *GormStore) ListAppointments() ([]domain.Appointment, error) {
	return s.listAppointments()
}

func (s *GormStore) listAppointments(conds ...any) ([]domain.Appointment, error) {
	tx := s.db.Order("date_time DESC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	var models []AppointmentModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Appointment, 0, len(models))
	for _, m := range models {
		res = append(res, appointmentFromModel(m))
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Password:     u.Password,
		FullName:     u.FullName,
		Role:         string(u.Role),
		DueDate:      u.DueDate,
		IsAdmin:      u.IsAdmin,
		ShareConsent: u.ShareConsent,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Password:     m.Password,
		FullName:     m.FullName,
		Role:         domain.UserRole(m.Role),
		DueDate:      m.DueDate,
		IsAdmin:      m.IsAdmin,
		ShareConsent: m.ShareConsent,
		CreatedAt:    m.CreatedAt,
	}
}

func assignmentFromModel(m AssignmentModel) domain.Assignment {
	return domain.Assignment{
		ID:         m.ID,
		NurseID:    m.NurseID,
		MotherID:   m.MotherID,
		AssignedAt: m.AssignedAt,
	}
}

func healthLogFromModel(m HealthLogModel) domain.HealthLog {
	var data map[string]float64
	if len(m.Data) > 0 {
		_ = json.Unmarshal(m.Data, &data)
	}
	return domain.HealthLog{
		ID:            m.ID,
		UserID:        m.UserID,
		Timestamp:     m.Timestamp,
		Data:          data,
		ConsentShared: m.ConsentShared,
	}
}

func testResultFromModel(m TestResultModel) domain.TestResult {
	var details map[string]float64
	if len(m.Details) > 0 {
		_ = json.Unmarshal(m.Details, &details)
	}
	return domain.TestResult{
		ID:        m.ID,
		UserID:    m.UserID,
		Score:     m.Score,
		RiskLevel: m.RiskLevel,
		Details:   details,
		TestDate:  m.TestDate,
	}
}

func testScoresFromModels(models []TestScoreModel) []domain.TestScore {
	res := make([]domain.TestScore, 0, len(models))
	for _, m := range models {
		var topics map[string]float64
		if len(m.Topics) > 0 {
			_ = json.Unmarshal(m.Topics, &topics)
		}
		res = append(res, domain.TestScore{
			ID:       m.ID,
			UserID:   m.UserID,
			Score:    m.Score,
			MaxScore: m.MaxScore,
			Topics:   topics,
			TestDate: m.TestDate,
		})
	}
	return res
}

func appointmentToModel(a domain.Appointment) AppointmentModel {
	return AppointmentModel{
		ID:       a.ID,
		MotherID: a.MotherID,
		NurseID:  a.NurseID,
		DateTime: a.DateTime,
		Status:   string(a.Status),
		Notes:    a.Notes,
	}
}

func appointmentFromModel(m AppointmentModel) domain.Appointment {
	return domain.Appointment{
		ID:       m.ID,
		MotherID: m.MotherID,
		NurseID:  m.NurseID,
		DateTime: m.DateTime,
		Status:   domain.AppointmentStatus(m.Status),
		Notes:    m.Notes,
	}
}
