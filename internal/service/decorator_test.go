package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/styledecor/internal/model"
)

func TestApplyDefaultsAndDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.roster.Apply(ctx, ApplyInput{Email: " Deco@Example.com ", Name: "Deco", City: "Dhaka"})
	require.NoError(t, err)
	assert.Equal(t, "deco@example.com", d.Email)
	assert.Equal(t, model.ApplicationPending, d.ApplicationStatus)
	assert.False(t, d.IsVerified)
	assert.Equal(t, model.AccountActive, d.AccountStatus)
	assert.False(t, d.IsAvailable)

	_, err = f.roster.Apply(ctx, ApplyInput{Email: "deco@example.com"})
	assert.Equal(t, KindAlreadyExists, KindOf(err))
}

func TestApproveLinksUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.users.SignIn(ctx, "deco@example.com", "Deco", "")
	require.NoError(t, err)
	d, err := f.roster.Apply(ctx, ApplyInput{Email: "deco@example.com", City: "Dhaka"})
	require.NoError(t, err)

	got, err := f.roster.Review(ctx, d.ID, ReviewApprove)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationApproved, got.ApplicationStatus)
	assert.True(t, got.IsVerified)
	require.NotNil(t, got.ApprovedAt)

	u, err := f.users.Get(ctx, "deco@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleDecorator, u.Role)
	require.NotNil(t, u.DecoratorID)
	assert.Equal(t, d.ID, *u.DecoratorID)
}

func TestApproveTwiceIsConflictWithoutMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.approvedDecorator(t, "deco@example.com", "Dhaka")
	before, err := f.roster.Get(ctx, d.ID)
	require.NoError(t, err)

	f.roster.Now = func() time.Time { return fixedNow.Add(time.Hour) }
	_, err = f.roster.Review(ctx, d.ID, ReviewApprove)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	after, err := f.roster.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReviewTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d, err := f.roster.Apply(ctx, ApplyInput{Email: "deco@example.com"})
	require.NoError(t, err)

	got, err := f.roster.Review(ctx, d.ID, ReviewReject)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationRejected, got.ApplicationStatus)
	assert.False(t, got.IsVerified)

	_, err = f.roster.Review(ctx, d.ID, ReviewReject)
	assert.Equal(t, KindConflict, KindOf(err), "reject only from pending")

	got, err = f.roster.Review(ctx, d.ID, ReviewApprove)
	require.NoError(t, err, "re-review of a rejected application")
	assert.Equal(t, model.ApplicationApproved, got.ApplicationStatus)

	_, err = f.roster.Review(ctx, d.ID, ReviewReject)
	assert.Equal(t, KindConflict, KindOf(err), "approved has no forward transition")

	got, err = f.roster.Review(ctx, d.ID, ReviewDisable)
	require.NoError(t, err)
	assert.Equal(t, model.AccountDisabled, got.AccountStatus)
	assert.False(t, got.IsAvailable)
	assert.NotNil(t, got.DisabledAt)

	got, err = f.roster.Review(ctx, d.ID, ReviewEnable)
	require.NoError(t, err)
	assert.Equal(t, model.AccountActive, got.AccountStatus)
	assert.True(t, got.IsAvailable)
	assert.Nil(t, got.DisabledAt)

	_, err = f.roster.Review(ctx, d.ID, "promote")
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	_, err = f.roster.Review(ctx, uuid.NewString(), ReviewApprove)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestSetAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.approvedDecorator(t, "deco@example.com", "Dhaka")

	_, err := f.roster.SetAvailability(ctx, d.ID, nil)
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	yes := true
	got, err := f.roster.SetAvailability(ctx, d.ID, &yes)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)
}

func TestListRosterFilterScopesToBookable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	yes := true

	ready := f.approvedDecorator(t, "ready@example.com", "Dhaka")
	_, err := f.roster.SetAvailability(ctx, ready.ID, &yes)
	require.NoError(t, err)

	busy := f.approvedDecorator(t, "busy@example.com", "Dhaka")
	require.False(t, busy.IsAvailable)

	pending, err := f.roster.Apply(ctx, ApplyInput{Email: "pending@example.com", City: "Dhaka"})
	require.NoError(t, err)
	_, err = f.roster.SetAvailability(ctx, pending.ID, &yes)
	require.NoError(t, err)

	elsewhere := f.approvedDecorator(t, "far@example.com", "Sylhet")
	_, err = f.roster.SetAvailability(ctx, elsewhere.ID, &yes)
	require.NoError(t, err)

	all, err := f.roster.ListRoster(ctx, RosterFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	dhaka, err := f.roster.ListRoster(ctx, RosterFilter{City: "Dhaka"})
	require.NoError(t, err)
	require.Len(t, dhaka, 1)
	assert.Equal(t, ready.ID, dhaka[0].ID)

	// a status filter alone still means approved and available
	byStatus, err := f.roster.ListRoster(ctx, RosterFilter{ApplicationStatus: model.ApplicationPending})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)
	for _, d := range byStatus {
		assert.Equal(t, model.ApplicationApproved, d.ApplicationStatus)
		assert.True(t, d.IsAvailable)
	}
}

func TestListApplications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.approvedDecorator(t, "a@example.com", "Dhaka")
	_, err := f.roster.Apply(ctx, ApplyInput{Email: "b@example.com"})
	require.NoError(t, err)

	pending, err := f.roster.ListApplications(ctx, model.ApplicationPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b@example.com", pending[0].Email)

	_, err = f.roster.ListApplications(ctx, "archived")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestMarkEarningPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.paidBooking(t, "400")
	d := f.approvedDecorator(t, "deco@example.com", "Dhaka")
	_, err := f.bookings.AssignDecorator(ctx, b.ID, d.ID)
	require.NoError(t, err)
	_, err = f.bookings.AdvanceStatus(ctx, b.ID, d.ID, model.BookingCompleted)
	require.NoError(t, err)

	require.NoError(t, f.roster.MarkEarningPaid(ctx, b.ID))
	assert.Equal(t, KindConflict, KindOf(f.roster.MarkEarningPaid(ctx, b.ID)))
	assert.Equal(t, KindNotFound, KindOf(f.roster.MarkEarningPaid(ctx, uuid.NewString())))

	sum, err := f.roster.EarningsFor(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, sum.PendingTotal.IsZero())
	assert.Equal(t, "100", sum.PaidOutTotal.String())
}

func TestEnableKeepsBusyDecoratorOffRoster(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.booking(t, f.service(t, "100").ID, "1")
	d := f.approvedDecorator(t, "deco@example.com", "Dhaka")
	_, err := f.bookings.AssignDecorator(ctx, b.ID, d.ID)
	require.NoError(t, err)

	_, err = f.roster.Review(ctx, d.ID, ReviewDisable)
	require.NoError(t, err)
	got, err := f.roster.Review(ctx, d.ID, ReviewEnable)
	require.NoError(t, err)
	assert.Equal(t, model.AccountActive, got.AccountStatus)
	assert.False(t, got.IsAvailable, "still holds an assigned booking")
	assert.Equal(t, []string{b.ID}, got.AssignedBookings)

	roster, err := f.roster.ListRoster(ctx, RosterFilter{City: "Dhaka"})
	require.NoError(t, err)
	assert.Empty(t, roster)

	_, err = f.bookings.RejectAssignment(ctx, b.ID, d.ID)
	require.NoError(t, err)
	roster, err = f.roster.ListRoster(ctx, RosterFilter{City: "Dhaka"})
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, d.ID, roster[0].ID)
}
