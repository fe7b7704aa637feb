package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/session-scheduler/internal/models"
)

func TestIntegration_SubscriptionExclusionConstraint(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	factory := NewTestDataFactory(storage)
	userID := factory.CreateUser(t, "Asha", "asha@example.com")
	factory.CreateSubscription(t, userID, models.PlanSingleDay, "2025-06-06", "2025-06-07")

	tests := []struct {
		name       string
		start, end time.Time
		wantErr    error
	}{
		{
			name:    "overlapping booking rejected by storage",
			start:   time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC),
			end:     time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC),
			wantErr: ErrOverlap,
		},
		{
			name:  "adjacent booking allowed",
			start: time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := storage.CreateSubscription(ctx, models.Subscription{
				UserID: userID, PlanType: models.PlanSingleDay,
				StartDate: dateFromDB(tt.start), EndDate: dateFromDB(tt.end),
				Status: models.StatusActive, PaymentStatus: models.PaymentPaid, Price: 100,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	subs, err := storage.ListSubscriptions(ctx, models.ActiveForUser(userID))
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	ids, err := storage.ActiveSubscriberIDs(ctx, day(2025, 6, 7))
	require.NoError(t, err)
	assert.Equal(t, []string{userID}, ids)
}

func TestIntegration_MeetingUniquePerDateAndAttendees(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	factory := NewTestDataFactory(storage)
	u1 := factory.CreateUser(t, "Asha", "asha@example.com")
	u2 := factory.CreateUser(t, "Ravi", "ravi@example.com")

	start := time.Date(2025, 6, 10, 1, 30, 0, 0, time.UTC)
	m := &models.Meeting{
		MeetingDate: day(2025, 6, 10), Platform: models.PlatformGoogleMeet,
		MeetingLink: "https://meet.google.com/abc", StartTime: start, EndTime: start.Add(time.Hour),
		RemoteEventID: "evt1", CreatedBy: "test",
	}
	id, err := storage.CreateMeeting(ctx, m)
	require.NoError(t, err)

	_, err = storage.CreateMeeting(ctx, m)
	assert.ErrorIs(t, err, ErrDuplicate)

	n, err := storage.AddAttendees(ctx, id, []string{u1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = storage.AddAttendees(ctx, id, []string{u1, u2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := storage.GetMeetingByDate(ctx, day(2025, 6, 10))
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.True(t, got.StartTime.Equal(start))
	assert.Len(t, got.Attendees, 2)

	n, err = storage.AddGuests(ctx, id, []models.Attendee{
		{Email: "guest@elsewhere.org", Name: "Guest"},
		{Email: "GUEST@elsewhere.org"},
		{Email: "RAVI@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err = storage.GetMeetingByDate(ctx, day(2025, 6, 10))
	require.NoError(t, err)
	require.Len(t, got.Attendees, 3, "guest matching a linked user is not listed twice")
	assert.Equal(t, models.Attendee{Email: "guest@elsewhere.org", Name: "Guest"}, got.Attendees[2])

	users, err := storage.GetUsersByEmails(ctx, []string{"ASHA@example.com"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, u1, users[0].UUID)
}
