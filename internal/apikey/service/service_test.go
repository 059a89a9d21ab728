package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/referral/internal/apikey/domain"
	"github.com/smallbiznis/referral/internal/apikey/repository"
	"github.com/smallbiznis/referral/internal/clock"
	"github.com/smallbiznis/referral/internal/productcontext"
	"github.com/smallbiznis/referral/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const productID snowflake.ID = 101

func newTestService(t *testing.T) (apikeydomain.Service, *clock.FakeClock) {
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

func productCtx() context.Context {
	return productcontext.WithProductID(context.Background(), productID)
}

func TestCreateAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := productCtx()

	secret, err := svc.Create(ctx, apikeydomain.CreateRequest{Name: "backend", Scopes: []string{"participants:read", "EVENTS:WRITE", "participants:read"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(secret.APIKey, "rk_live_"))
	assert.True(t, strings.HasPrefix(secret.KeyID, "key_"))

	key, err := svc.Authenticate(context.Background(), secret.APIKey)
	require.NoError(t, err)
	assert.Equal(t, productID, key.ProductID)
	assert.True(t, key.HasScope(apikeydomain.ScopeEventsWrite))
	assert.True(t, key.HasScope(apikeydomain.ScopeParticipantsRead))
	assert.False(t, key.HasScope(apikeydomain.ScopeAPIKeysWrite))
	assert.Len(t, key.Scopes, 2)

	_, err = svc.Authenticate(context.Background(), secret.APIKey+"x")
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidKey)

	keys, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), apikeydomain.CreateRequest{Name: "x"})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidProduct)

	_, err = svc.Create(productCtx(), apikeydomain.CreateRequest{Name: " "})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidName)

	_, err = svc.Create(productCtx(), apikeydomain.CreateRequest{Name: "x", Scopes: []string{"admin"}})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidScope)
}

func TestDefaultScopeIsEventIngestion(t *testing.T) {
	svc, _ := newTestService(t)

	secret, err := svc.Create(productCtx(), apikeydomain.CreateRequest{Name: "ingest"})
	require.NoError(t, err)
	key, err := svc.Authenticate(context.Background(), secret.APIKey)
	require.NoError(t, err)
	assert.Equal(t, []string{apikeydomain.ScopeEventsWrite}, []string(key.Scopes))
}

func TestRotateKeepsOldKeyDuringGracePeriod(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := productCtx()

	original, err := svc.Create(ctx, apikeydomain.CreateRequest{Name: "backend"})
	require.NoError(t, err)

	rotated, err := svc.Rotate(ctx, original.KeyID)
	require.NoError(t, err)
	assert.NotEqual(t, original.KeyID, rotated.KeyID)

	_, err = svc.Authenticate(context.Background(), original.APIKey)
	require.NoError(t, err, "old key valid during grace period")
	_, err = svc.Authenticate(context.Background(), rotated.APIKey)
	require.NoError(t, err)

	clk.Advance(25 * time.Hour)
	_, err = svc.Authenticate(context.Background(), original.APIKey)
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidKey)
	_, err = svc.Authenticate(context.Background(), rotated.APIKey)
	assert.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := productCtx()

	secret, err := svc.Create(ctx, apikeydomain.CreateRequest{Name: "backend"})
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, secret.KeyID))

	_, err = svc.Authenticate(context.Background(), secret.APIKey)
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidKey)

	assert.ErrorIs(t, svc.Revoke(ctx, "key_MISSING"), apikeydomain.ErrNotFound)
	assert.ErrorIs(t, svc.Revoke(ctx, " "), apikeydomain.ErrInvalidKeyID)

	other := productcontext.WithProductID(context.Background(), 202)
	_, err = svc.Rotate(other, secret.KeyID)
	assert.ErrorIs(t, err, apikeydomain.ErrNotFound)
}

func TestEnsureKeyIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.EnsureKey(ctx, productID, "bootstrap", "rk_live_operator", apikeydomain.AllScopes())
	require.NoError(t, err)
	second, err := svc.EnsureKey(ctx, productID, "bootstrap", "rk_live_operator", apikeydomain.AllScopes())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	key, err := svc.Authenticate(ctx, "rk_live_operator")
	require.NoError(t, err)
	assert.True(t, key.HasScope(apikeydomain.ScopeAPIKeysWrite))

	_, err = svc.EnsureKey(ctx, 0, "bootstrap", "x", nil)
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidProduct)
}
