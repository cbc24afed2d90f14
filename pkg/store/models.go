package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Password     string `gorm:"not null"`
	FullName     string `gorm:"not null"`
	Role         string `gorm:"not null"`
	DueDate      *time.Time
	IsAdmin      bool `gorm:"not null;default:false"`
	ShareConsent bool `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type AssignmentModel struct {
	ID         string    `gorm:"primaryKey"`
	NurseID    string    `gorm:"not null;uniqueIndex:uniq_nurse_mother"`
	MotherID   string    `gorm:"not null;uniqueIndex:uniq_nurse_mother;uniqueIndex:uniq_mother"`
	AssignedAt time.Time `gorm:"not null"`
}

func (AssignmentModel) TableName() string { return "nurse_mother_assignments" }

type HealthLogModel struct {
	ID            string         `gorm:"primaryKey"`
	UserID        string         `gorm:"not null;index"`
	Timestamp     time.Time      `gorm:"not null;index"`
	Data          datatypes.JSON `gorm:"not null"`
	ConsentShared bool           `gorm:"not null;default:false"`
}

func (HealthLogModel) TableName() string { return "mother_health_logs" }

type TestResultModel struct {
	ID        string  `gorm:"primaryKey"`
	UserID    string  `gorm:"not null;index"`
	Score     float64 `gorm:"not null"`
	RiskLevel string  `gorm:"not null"`
	Details   datatypes.JSON
	TestDate  time.Time `gorm:"not null;index"`
}

func (TestResultModel) TableName() string { return "test_results" }

type TestScoreModel struct {
	ID       string `gorm:"primaryKey"`
	UserID   string `gorm:"not null;index"`
	Score    int    `gorm:"not null"`
	MaxScore int    `gorm:"not null;default:15"`
	Topics   datatypes.JSON
	TestDate time.Time `gorm:"not null;index"`
}

func (TestScoreModel) TableName() string { return "test_scores" }

type AppointmentModel struct {
	ID       string    `gorm:"primaryKey"`
	MotherID string    `gorm:"not null;index"`
	NurseID  string    `gorm:"not null;index"`
	DateTime time.Time `gorm:"not null"`
	Status   string    `gorm:"not null;default:pending"`
	Notes    string
}

func (AppointmentModel) TableName() string { return "appointments" }
