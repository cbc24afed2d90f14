package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"matricare/pkg/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	s, err := NewGormStoreWithDB(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		require.NoError(t, err)
		sqlDB.Close()
	})
	return s
}

func seedUser(t *testing.T, s *GormStore, id, email string, role domain.UserRole) domain.User {
	t.Helper()
	u := domain.User{
		ID:        id,
		Email:     email,
		Password:  "$2b$12$placeholderplaceholderplaceholderplaceholderplacehold",
		FullName:  "Test " + id,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SaveUser(u))
	return u
}

func TestSaveUserRejectsDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "u1", "amara@example.com", domain.RoleMother)

	err := s.SaveUser(domain.User{
		ID:        "u2",
		Email:     "amara@example.com",
		Password:  "x",
		FullName:  "Second",
		Role:      domain.RoleMother,
		CreatedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, ErrDuplicate)

	count, err := s.UserCount()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestAssignmentMotherExclusivity(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "n1", "nurse1@example.com", domain.RoleNurse)
	seedUser(t, s, "n2", "nurse2@example.com", domain.RoleNurse)
	seedUser(t, s, "m1", "mother1@example.com", domain.RoleMother)

	require.NoError(t, s.CreateAssignment(domain.Assignment{
		ID: "a1", NurseID: "n1", MotherID: "m1", AssignedAt: time.Now().UTC(),
	}))

	// Same pair again and a different nurse both violate the schema.
	err := s.CreateAssignment(domain.Assignment{
		ID: "a2", NurseID: "n1", MotherID: "m1", AssignedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, ErrDuplicate)

	err = s.CreateAssignment(domain.Assignment{
		ID: "a3", NurseID: "n2", MotherID: "m1", AssignedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, ErrDuplicate)

	count, err := s.CountAssignmentsByNurse("n1")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDeleteAssignmentReportsExistence(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateAssignment(domain.Assignment{
		ID: "a1", NurseID: "n1", MotherID: "m1", AssignedAt: time.Now().UTC(),
	}))

	existed, err := s.DeleteAssignment("n1", "m1")
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = s.DeleteAssignment("n1", "m1")
	require.NoError(t, err)
	require.False(t, existed)

	// Mother can be reassigned once the old relation is gone.
	require.NoError(t, s.CreateAssignment(domain.Assignment{
		ID: "a2", NurseID: "n2", MotherID: "m1", AssignedAt: time.Now().UTC(),
	}))
}

func TestAppointmentSlotConflictIndexes(t *testing.T) {
	s := newTestStore(t)
	slot := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateAppointment(domain.Appointment{
		ID: "ap1", MotherID: "m1", NurseID: "n1", DateTime: slot, Status: domain.AppointmentPending,
	}))

	// Same nurse, different mother, same instant.
	err := s.CreateAppointment(domain.Appointment{
		ID: "ap2", MotherID: "m2", NurseID: "n1", DateTime: slot, Status: domain.AppointmentPending,
	})
	require.ErrorIs(t, err, ErrDuplicate)

	// Same mother, different nurse, same instant.
	err = s.CreateAppointment(domain.Appointment{
		ID: "ap3", MotherID: "m1", NurseID: "n2", DateTime: slot, Status: domain.AppointmentPending,
	})
	require.ErrorIs(t, err, ErrDuplicate)

	// A cancelled appointment frees the slot.
	require.NoError(t, s.UpdateAppointment("ap1", domain.AppointmentCancelled, nil))
	require.NoError(t, s.CreateAppointment(domain.Appointment{
		ID: "ap4", MotherID: "m1", NurseID: "n1", DateTime: slot, Status: domain.AppointmentPending,
	}))

	conflict, err := s.HasAppointmentConflict("n1", "m1", slot)
	require.NoError(t, err)
	require.True(t, conflict)

	conflict, err = s.HasAppointmentConflict("n9", "m9", slot)
	require.NoError(t, err)
	require.False(t, conflict)
}

func TestHealthLogRoundTripAndOrdering(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendHealthLog(domain.HealthLog{
			ID:        string(rune('a' + i)),
			UserID:    "m1",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Data: map[string]float64{
				"Age": 28, "SystolicBP": 110 + float64(i), "DiastolicBP": 70,
				"BS": 6.1, "BodyTemp": 98.2, "HeartRate": 76,
			},
			ConsentShared: true,
		}))
	}

	logs, err := s.ListHealthLogs("m1", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, float64(112), logs[0].Data["SystolicBP"])
	require.True(t, logs[0].Timestamp.After(logs[1].Timestamp))

	latest, ok, err := s.LatestHealthLog("m1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, logs[0].ID, latest.ID)

	_, ok, err = s.LatestHealthLog("m2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTestScoreQueries(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	for i, userID := range []string{"m1", "m1", "m2"} {
		require.NoError(t, s.AppendTestScore(domain.TestScore{
			ID:       string(rune('x' + i)),
			UserID:   userID,
			Score:    10 + i,
			MaxScore: 15,
			Topics:   map[string]float64{"Lamaze Breathing": 1},
			TestDate: now.Add(-time.Duration(i) * 48 * time.Hour),
		}))
	}

	scores, err := s.ListTestScores("m1")
	require.NoError(t, err)
	require.Len(t, scores, 2)
	require.Equal(t, 10, scores[0].Score)

	recent, err := s.ListTestScoresSince(now.Add(-72 * time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 2)

	top, err := s.ListRecentTestScores(1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, 10, top[0].Score)
}
