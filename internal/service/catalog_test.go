package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/styledecor/internal/model"
)

func TestServiceCostMustBePositive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.CreateService(ctx, ServiceInput{Name: "Free", Cost: decimal.Zero}, "admin@example.com")
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	_, err = f.catalog.CreateService(ctx, ServiceInput{Cost: decimal.NewFromInt(1)}, "admin@example.com")
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestServiceCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.service(t, "100")
	assert.Equal(t, "admin@example.com", s.CreatedBy)

	_, err := f.catalog.CreateService(ctx, ServiceInput{Name: "Birthday", Category: "birthday", Cost: decimal.NewFromInt(50)}, "admin@example.com")
	require.NoError(t, err)

	wedding, err := f.catalog.ListServices(ctx, "wedding")
	require.NoError(t, err)
	assert.Len(t, wedding, 1)

	up, err := f.catalog.UpdateService(ctx, s.ID, ServiceInput{Name: "Grand stage", Category: "wedding", Cost: decimal.NewFromInt(120)})
	require.NoError(t, err)
	assert.Equal(t, "Grand stage", up.Name)
	assert.Equal(t, "admin@example.com", up.CreatedBy)

	require.NoError(t, f.catalog.DeleteService(ctx, s.ID))
	_, err = f.catalog.GetService(ctx, s.ID)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.catalog.UpdateService(ctx, uuid.NewString(), ServiceInput{Name: "x", Cost: decimal.NewFromInt(1)})
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestServiceCenters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.CreateCenter(ctx, &model.ServiceCenter{Name: "Gulshan"})
	assert.Equal(t, KindInvalidArgument, KindOf(err))

	c, err := f.catalog.CreateCenter(ctx, &model.ServiceCenter{Name: "Gulshan", City: "Dhaka"})
	require.NoError(t, err)
	_, err = f.catalog.CreateCenter(ctx, &model.ServiceCenter{Name: "Zindabazar", City: "Sylhet"})
	require.NoError(t, err)

	dhaka, err := f.catalog.ListCenters(ctx, "Dhaka")
	require.NoError(t, err)
	require.Len(t, dhaka, 1)
	assert.Equal(t, c.ID, dhaka[0].ID)

	require.NoError(t, f.catalog.DeleteCenter(ctx, c.ID))
	assert.Equal(t, KindNotFound, KindOf(f.catalog.DeleteCenter(ctx, c.ID)))
}
