package service

import (
	"context"
	"sync"
	"testing"

	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSVP_AliceScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", true, models.RoleUser)
	conf := env.event(t, env.category(t, "Conferences").ID, "Conf2024", "2024-09-01", "Berlin")

	require.NoError(t, env.rsvps.RSVP(ctx, alice, conf.ID))
	assert.Equal(t, int64(1), env.participationCount(t, conf.ID))

	sent := env.notifier.OfKind(models.NotificationRSVPConfirmation)
	require.Len(t, sent, 1)
	assert.Equal(t, alice.ID, sent[0].Recipient.ID)
	assert.Equal(t, "Conf2024", sent[0].Data["event_name"])

	err := env.rsvps.RSVP(ctx, alice, conf.ID)
	assert.ErrorIs(t, err, ErrAlreadyRSVPd)
	assert.Equal(t, int64(1), env.participationCount(t, conf.ID))
	assert.Len(t, env.notifier.OfKind(models.NotificationRSVPConfirmation), 1, "a rejected RSVP must not notify")
}

func TestRSVP_UnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", true, models.RoleUser)

	err := env.rsvps.RSVP(context.Background(), alice, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, env.notifier.Calls())
}

func TestCancelRSVP_NotParticipatingIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", true, models.RoleUser)
	bob := env.user(t, "bob", true, models.RoleUser)
	ev := env.event(t, env.category(t, "Meetups").ID, "Go Night", "2024-07-01", "Paris")
	require.NoError(t, env.rsvps.RSVP(ctx, bob, ev.ID))

	assert.NoError(t, env.rsvps.CancelRSVP(ctx, alice, ev.ID))
	assert.Equal(t, int64(1), env.participationCount(t, ev.ID), "bob's RSVP must be untouched")
}

func TestCancelRSVP_UnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", true, models.RoleUser)

	assert.ErrorIs(t, env.rsvps.CancelRSVP(context.Background(), alice, 42), ErrNotFound)
}

func TestRSVP_CancelThenRSVPAgain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", true, models.RoleUser)
	ev := env.event(t, env.category(t, "Meetups").ID, "Go Night", "2024-07-01", "Paris")

	require.NoError(t, env.rsvps.RSVP(ctx, alice, ev.ID))
	require.NoError(t, env.rsvps.CancelRSVP(ctx, alice, ev.ID))
	assert.Equal(t, int64(0), env.participationCount(t, ev.ID))

	require.NoError(t, env.rsvps.RSVP(ctx, alice, ev.ID))
	assert.Equal(t, int64(1), env.participationCount(t, ev.ID))
	assert.Len(t, env.notifier.OfKind(models.NotificationRSVPConfirmation), 2)
}

func TestRSVP_ConcurrentAttemptsCreateOneEdge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", true, models.RoleUser)
	ev := env.event(t, env.category(t, "Meetups").ID, "Go Night", "2024-07-01", "Paris")

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.rsvps.RSVP(ctx, alice, ev.ID)
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrAlreadyRSVPd):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, dup)
	assert.Equal(t, int64(1), env.participationCount(t, ev.ID))
}

func TestListParticipantsAndParticipations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", true, models.RoleUser)
	bob := env.user(t, "bob", true, models.RoleUser)
	cat := env.category(t, "Meetups")
	past := env.event(t, cat.ID, "Spring Meetup", "2024-03-01", "Lyon")
	future := env.event(t, cat.ID, "Autumn Meetup", "2024-10-01", "Lyon")

	require.NoError(t, env.rsvps.RSVP(ctx, alice, future.ID))
	require.NoError(t, env.rsvps.RSVP(ctx, bob, future.ID))
	require.NoError(t, env.rsvps.RSVP(ctx, alice, past.ID))

	users, err := env.rsvps.ListParticipants(ctx, future.ID)
	require.NoError(t, err)
	var names []string
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, names)

	events, err := env.rsvps.ListParticipationsOf(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Spring Meetup", events[0].Name)
	assert.False(t, events[0].IsUpcoming)
	assert.Equal(t, "Autumn Meetup", events[1].Name)
	assert.True(t, events[1].IsUpcoming)
	assert.Equal(t, int64(2), events[1].ParticipantCount)

	_, err = env.rsvps.ListParticipants(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParticipation_RequiresExistingEventAndUser(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice", true, models.RoleUser)
	ev := env.event(t, env.category(t, "Meetups").ID, "Go Night", "2024-07-01", "Paris")

	assert.Error(t, env.db.Create(&models.Participation{EventID: 4242, UserID: alice.ID}).Error)
	assert.Error(t, env.db.Create(&models.Participation{EventID: ev.ID, UserID: uuid.New()}).Error)

	counts, err := env.dashboard.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.TotalRSVPs)
}

func TestRSVP_RacingDeleteLeavesNoEdge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", true, models.RoleUser)
	cat := env.category(t, "Meetups")

	for i := 0; i < 5; i++ {
		ev := env.event(t, cat.ID, "Go Night", "2024-07-01", "Paris")

		var wg sync.WaitGroup
		var rsvpErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			rsvpErr = env.rsvps.RSVP(ctx, alice, ev.ID)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, env.catalog.DeleteEvent(ctx, uuid.Nil, ev.ID))
		}()
		wg.Wait()

		if rsvpErr != nil {
			assert.ErrorIs(t, rsvpErr, ErrNotFound)
		}
		var edges int64
		require.NoError(t, env.db.Model(&models.Participation{}).Where("event_id = ?", ev.ID).Count(&edges).Error)
		assert.Zero(t, edges)
	}
}

func TestIsParticipating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.user(t, "alice", true, models.RoleUser)
	ev := env.event(t, env.category(t, "Meetups").ID, "Go Night", "2024-07-01", "Paris")

	in, err := env.rsvps.IsParticipating(ctx, alice.ID, ev.ID)
	require.NoError(t, err)
	assert.False(t, in)

	require.NoError(t, env.rsvps.RSVP(ctx, alice, ev.ID))
	in, err = env.rsvps.IsParticipating(ctx, alice.ID, ev.ID)
	require.NoError(t, err)
	assert.True(t, in)

	_, err = env.rsvps.IsParticipating(ctx, alice.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
