package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/audit/domain"
	"github.com/smallbiznis/referral/internal/audit/repository"
	"github.com/smallbiznis/referral/internal/clock"
	obscontext "github.com/smallbiznis/referral/internal/observability/context"
	"github.com/smallbiznis/referral/internal/productcontext"
	"github.com/smallbiznis/referral/internal/testutil"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const productID snowflake.ID = 101

func newTestService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	clk := clock.NewFakeClock(testutil.Epoch)
	return New(Params{
		DB:    testutil.NewDB(t),
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clk,
		Repo:  repository.Provide(),
	}), clk
}

func TestRecordUsesContextActor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := productcontext.WithProductID(context.Background(), productID)
	ctx = obscontext.WithActor(ctx, "api_key", "key_ABC")
	ctx = obscontext.WithRequestID(ctx, "req-1")

	require.NoError(t, svc.Record(ctx, domain.Entry{
		Action:     domain.ActionAPIKeyCreate,
		TargetType: domain.TargetAPIKey,
		TargetID:   "key_NEW",
		Metadata:   map[string]any{"name": "backend", "": "dropped"},
	}))

	logs, _, err := svc.List(ctx, productID, domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	entry := logs[0]
	assert.Equal(t, "api_key", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "key_ABC", *entry.ActorID)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, "key_NEW", *entry.TargetID)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(entry.Metadata, &metadata))
	assert.Equal(t, "backend", metadata["name"])
	assert.Equal(t, "req-1", metadata["request_id"])
	assert.NotContains(t, metadata, "")
}

func TestRecordDefaultsToSystemActor(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.Record(context.Background(), domain.Entry{ProductID: productID, Action: domain.ActionAPIKeyRevoke}))

	logs, _, err := svc.List(context.Background(), productID, domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ActorSystem, logs[0].ActorType)
	assert.Nil(t, logs[0].ActorID)
	assert.Equal(t, "unknown", logs[0].TargetType)
}

func TestRecordValidation(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Record(context.Background(), domain.Entry{ProductID: productID, Action: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	err = svc.Record(context.Background(), domain.Entry{Action: domain.ActionAPIKeyCreate})
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)

	_, _, err = svc.List(context.Background(), 0, domain.ListRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	for _, action := range []string{domain.ActionAPIKeyCreate, domain.ActionAPIKeyRotate, domain.ActionAPIKeyCreate, domain.ActionAPIKeyRevoke} {
		require.NoError(t, svc.Record(ctx, domain.Entry{ProductID: productID, Action: action}))
		clk.Advance(time.Second)
	}
	require.NoError(t, svc.Record(ctx, domain.Entry{ProductID: 202, Action: domain.ActionAPIKeyCreate}))

	created, _, err := svc.List(ctx, productID, domain.ListRequest{Action: domain.ActionAPIKeyCreate})
	require.NoError(t, err)
	assert.Len(t, created, 2)

	first, info, err := svc.List(ctx, productID, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 3}})
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.True(t, info.HasMore)
	assert.Equal(t, domain.ActionAPIKeyRevoke, first[0].Action)

	rest, info, err := svc.List(ctx, productID, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 3, PageToken: info.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.False(t, info.HasMore)
	assert.Equal(t, domain.ActionAPIKeyCreate, rest[0].Action)
}
