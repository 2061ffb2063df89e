package cmd

import (
	"time"

	"homecare-booking/internal/data/entity"
	"homecare-booking/internal/data/repository/memory"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const demoSessionTTL = 30 * 24 * time.Hour

// SeedDemo fills the memory store with one account per role and logs their
// session tokens so the API can be exercised locally.
func SeedDemo(store *memory.Store, clock clockwork.Clock, logger *zap.Logger) {
	now := clock.Now()
	rate := int64(6000)

	accounts := []struct {
		name string
		role entity.UserRole
		rate *int64
	}{
		{"Demo Patient", entity.RolePatient, nil},
		{"Demo Nurse", entity.RoleNurse, &rate},
		{"Demo Doctor", entity.RoleDoctor, nil},
		{"Demo Admin", entity.RoleAdmin, nil},
	}

	for _, a := range accounts {
		user := &entity.User{
			Base:       entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			Email:      string(a.role) + "@demo.homecare.local",
			FullName:   a.name,
			Role:       a.role,
			HourlyRate: a.rate,
			IsActive:   true,
		}
		store.PutUser(user)

		token := uuid.New()
		store.PutSession(&entity.Session{
			BaseSimple: entity.BaseSimple{ID: uuid.New(), CreatedAt: now},
			UserID:     user.ID,
			Token:      token,
			ExpiresAt:  now.Add(demoSessionTTL),
		})

		logger.Info("Demo account",
			zap.String("role", string(a.role)),
			zap.String("user_id", user.ID.String()),
			zap.String("token", token.String()),
		)
	}
}
