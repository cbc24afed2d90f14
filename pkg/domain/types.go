package domain

import "time"

type UserRole string

const (
	RoleMother UserRole = "mother"
	RoleNurse  UserRole = "nurse"
	RoleAdmin  UserRole = "admin"
)

// ValidRole reports whether the role is one of the accepted account roles.
func ValidRole(role UserRole) bool {
	switch role {
	case RoleMother, RoleNurse, RoleAdmin:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Risk labels produced by the external classifier.
const (
	RiskLow     = "Low Risk"
	RiskHighMid = "High/Mid Risk"
)

// VitalSignFields lists the vitals recorded in health logs, in classifier
// input order.
var VitalSignFields = []string{"Age", "SystolicBP", "DiastolicBP", "BS", "BodyTemp", "HeartRate"}

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Password     string     `json:"-"`
	FullName     string     `json:"full_name"`
	Role         UserRole   `json:"role"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	IsAdmin      bool       `json:"is_admin"`
	ShareConsent bool       `json:"share_consent"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Assignment is the exclusive nurse-to-mother care relation.
type Assignment struct {
	ID         string    `json:"id"`
	NurseID    string    `json:"nurse_id"`
	MotherID   string    `json:"mother_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// HealthLog is one append-only vitals entry owned by a mother. Data carries
// the six vital-sign fields as an opaque JSON object.
type HealthLog struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Timestamp     time.Time          `json:"timestamp"`
	Data          map[string]float64 `json:"data"`
	ConsentShared bool               `json:"consent_shared"`
}

type TestResult struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Score     float64            `json:"score"`
	RiskLevel string             `json:"risk_level"`
	Details   map[string]float64 `json:"details,omitempty"`
	TestDate  time.Time          `json:"test_date"`
}

type TestScore struct {
	ID       string             `json:"id"`
	UserID   string             `json:"user_id"`
	Score    int                `json:"score"`
	MaxScore int                `json:"max_score"`
	Topics   map[string]float64 `json:"topics,omitempty"`
	TestDate time.Time          `json:"test_date"`
}

type Appointment struct {
	ID       string            `json:"id"`
	MotherID string            `json:"mother_id"`
	NurseID  string            `json:"nurse_id"`
	DateTime time.Time         `json:"date_time"`
	Status   AppointmentStatus `json:"status"`
	Notes    string            `json:"notes"`
}

// TrendPoint is one dated vitals sample used in trend series.
type TrendPoint struct {
	Date        string  `json:"date"`
	SystolicBP  float64 `json:"systolic_bp"`
	DiastolicBP float64 `json:"diastolic_bp"`
	BloodSugar  float64 `json:"blood_sugar"`
	BodyTemp    float64 `json:"body_temp"`
	HeartRate   float64 `json:"heart_rate"`
}

// TrendPointFromLog projects a health log into a trend sample.
func TrendPointFromLog(log HealthLog) TrendPoint {
	return TrendPoint{
		Date:        log.Timestamp.Format("2006-01-02"),
		SystolicBP:  log.Data["SystolicBP"],
		DiastolicBP: log.Data["DiastolicBP"],
		BloodSugar:  log.Data["BS"],
		BodyTemp:    log.Data["BodyTemp"],
		HeartRate:   log.Data["HeartRate"],
	}
}
