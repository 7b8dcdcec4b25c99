package worker

import (
	"context"
	"testing"
	"time"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/data/repository/repotest"
	"transport-booking/internal/event"
	"transport-booking/internal/usecase"
	"transport-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOfferSweeperExpiresStaleOffers(t *testing.T) {
	mem := repotest.New()
	repo := mem.Repository()
	dispatch := usecase.NewDispatchService(mem, repo, usecase.NewAvailabilityEligibility(repo.Availability), zap.NewNop())

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	seed := func(status entity.AssignmentStatus, offeredAt time.Time) uuid.UUID {
		a := entity.Assignment{
			BookingID: uuid.New(),
			DriverID:  uuid.New(),
			Status:    status,
			OfferedAt: offeredAt,
		}
		a.ID = uuid.New()
		a.TenantID = uuid.New()
		mem.Mutate(func(s *repotest.State) { s.Assignments[a.ID] = a })
		return a.ID
	}
	stale := seed(entity.AssignmentStatusOffered, now.Add(-6*time.Minute))
	fresh := seed(entity.AssignmentStatusOffered, now.Add(-time.Minute))
	accepted := seed(entity.AssignmentStatusAccepted, now.Add(-time.Hour))

	sweeper := NewOfferSweeper(dispatch, utils.SweeperConfig{
		Interval:     30 * time.Second,
		BatchSize:    100,
		OfferTimeout: 5 * time.Minute,
	}, zap.NewNop())
	sweeper.now = func() time.Time { return now }

	n, err := sweeper.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	state := mem.Snapshot()
	assert.Equal(t, entity.AssignmentStatusExpired, state.Assignments[stale].Status)
	assert.Equal(t, entity.AssignmentStatusOffered, state.Assignments[fresh].Status)
	assert.Equal(t, entity.AssignmentStatusAccepted, state.Assignments[accepted].Status)
	require.Len(t, state.Activity, 1)
	assert.Equal(t, entity.RoleSystem, state.Activity[0].ActorRole)
	assert.Equal(t, 1, mem.OutboxByType()[string(event.AssignmentExpired)])

	n, err = sweeper.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, mem.Snapshot().Activity, 1)
}
