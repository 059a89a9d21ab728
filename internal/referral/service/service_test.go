package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/clock"
	"github.com/smallbiznis/referral/internal/code"
	"github.com/smallbiznis/referral/internal/config"
	participantdomain "github.com/smallbiznis/referral/internal/participant/domain"
	participantrepo "github.com/smallbiznis/referral/internal/participant/repository"
	"github.com/smallbiznis/referral/internal/referral/domain"
	"github.com/smallbiznis/referral/internal/referral/repository"
	"github.com/smallbiznis/referral/internal/testutil"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type fixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  domain.Service
}

func newFixture(t *testing.T, opts ...func(*Params)) *fixture {
	t.Helper()
	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	p := Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(testutil.Epoch),
		Repo:  repository.Provide(),
		Config: config.NewStaticReferralConfigHolder(config.ReferralConfig{
			CodeAttempts:        3,
			LinkAttempts:        3,
			BackoffInitial:      time.Millisecond,
			BackoffMax:          2 * time.Millisecond,
			ScopeCodesToProduct: true,
		}),
	}
	for _, opt := range opts {
		opt(&p)
	}
	return &fixture{db: conn, node: node, svc: New(p)}
}

func (f *fixture) participant(t *testing.T, productID snowflake.ID, externalID string) *participantdomain.Participant {
	t.Helper()
	p := &participantdomain.Participant{
		ID:         f.node.Generate(),
		ProductID:  productID,
		ExternalID: externalID,
		CreatedAt:  testutil.Epoch,
		UpdatedAt:  testutil.Epoch,
	}
	require.NoError(t, participantrepo.Provide().Upsert(context.Background(), f.db, p))
	return p
}

func (f *fixture) referralCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&domain.Referral{}).Count(&count).Error)
	return count
}

func TestCreateReferralOncePerReferee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrer := f.participant(t, 101, "referrer")

	first, created, err := f.svc.CreateReferral(ctx, nil, domain.CreateReferralRequest{
		ReferrerID:        referrer.ID,
		RefereeExternalID: "referee",
		Email:             "referee@example.com",
	})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.svc.CreateReferral(ctx, nil, domain.CreateReferralRequest{
		ReferrerID:        referrer.ID,
		RefereeExternalID: "referee",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), f.referralCount(t))
}

func TestCreateReferralConcurrentSignups(t *testing.T) {
	f := newFixture(t)
	referrer := f.participant(t, 101, "referrer")

	var (
		wg      sync.WaitGroup
		created atomic.Int32
		ids     sync.Map
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			referral, ok, err := f.svc.CreateReferral(context.Background(), nil, domain.CreateReferralRequest{
				ReferrerID:        referrer.ID,
				RefereeExternalID: "referee",
			})
			if !assert.NoError(t, err) {
				return
			}
			if ok {
				created.Add(1)
			}
			ids.Store(referral.ID, true)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	distinct := 0
	ids.Range(func(_, _ any) bool {
		distinct++
		return true
	})
	assert.Equal(t, 1, distinct)
	assert.Equal(t, int64(1), f.referralCount(t))
}

func TestCreateReferralRejectsSelfReferral(t *testing.T) {
	f := newFixture(t)
	referrer := f.participant(t, 101, "same-user")

	_, _, err := f.svc.CreateReferral(context.Background(), nil, domain.CreateReferralRequest{
		ReferrerID:        referrer.ID,
		RefereeExternalID: "same-user",
	})
	assert.ErrorIs(t, err, domain.ErrSelfReferral)
	assert.Zero(t, f.referralCount(t))
}

func TestCreateReferralValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.CreateReferral(ctx, nil, domain.CreateReferralRequest{RefereeExternalID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidReferrer)

	_, _, err = f.svc.CreateReferral(ctx, nil, domain.CreateReferralRequest{ReferrerID: 1, RefereeExternalID: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidExternalID)

	_, _, err = f.svc.CreateReferral(ctx, nil, domain.CreateReferralRequest{ReferrerID: 999, RefereeExternalID: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidReferrer, "unknown referrer")
}

func TestAttributeByCodeOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrer := f.participant(t, 101, "referrer")
	link, err := f.svc.EnsureLink(ctx, referrer.ID)
	require.NoError(t, err)

	attr, err := f.svc.AttributeByCode(ctx, nil, domain.AttributeRequest{ProductID: 101, Code: "nope999", RefereeExternalID: "referee"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnresolved, attr.Outcome)
	assert.Nil(t, attr.Referral)

	attr, err = f.svc.AttributeByCode(ctx, nil, domain.AttributeRequest{ProductID: 101, Code: link.Slug, RefereeExternalID: "referrer"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSelf, attr.Outcome)

	attr, err = f.svc.AttributeByCode(ctx, nil, domain.AttributeRequest{ProductID: 101, Code: "  " + link.Slug + " ", RefereeExternalID: "referee"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, attr.Outcome)
	require.NotNil(t, attr.Referral)
	assert.Equal(t, referrer.ID, attr.Referral.ReferrerID)

	attr, err = f.svc.AttributeByCode(ctx, nil, domain.AttributeRequest{ProductID: 101, Code: link.Slug, RefereeExternalID: "referee"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeExisting, attr.Outcome)
	assert.Equal(t, int64(1), f.referralCount(t))
}

func TestFindReferrerByCodeScopedToProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrer := f.participant(t, 101, "referrer")
	link, err := f.svc.EnsureLink(ctx, referrer.ID)
	require.NoError(t, err)

	_, err = f.svc.FindReferrerByCode(ctx, nil, 202, link.Slug)
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)

	unscoped := newFixture(t, func(p *Params) {
		p.Config = config.NewStaticReferralConfigHolder(config.ReferralConfig{
			CodeAttempts: 3, LinkAttempts: 1, ScopeCodesToProduct: false,
		})
	})
	other := unscoped.participant(t, 101, "referrer")
	otherLink, err := unscoped.svc.EnsureLink(ctx, other.ID)
	require.NoError(t, err)

	id, err := unscoped.svc.FindReferrerByCode(ctx, nil, 202, otherLink.Slug)
	require.NoError(t, err)
	assert.Equal(t, other.ID, id)
}

func TestCodesAndExternalIDsAreSeparateNamespaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrer := f.participant(t, 101, "referrer")
	link, err := f.svc.EnsureLink(ctx, referrer.ID)
	require.NoError(t, err)

	// A referee whose external id equals a code is still just an external id.
	_, created, err := f.svc.CreateReferral(ctx, nil, domain.CreateReferralRequest{
		ReferrerID:        referrer.ID,
		RefereeExternalID: "referee-1",
	})
	require.NoError(t, err)
	require.True(t, created)

	_, err = f.svc.FindExistingReferral(ctx, nil, 101, link.Slug)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.FindReferrerByCode(ctx, nil, 101, "referee-1")
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)

	existing, err := f.svc.FindExistingReferral(ctx, nil, 101, "referee-1")
	require.NoError(t, err)
	assert.Equal(t, referrer.ID, existing.ReferrerID)
}

func TestFindExistingReferralIsScopedToProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrer := f.participant(t, 101, "referrer")

	_, created, err := f.svc.CreateReferral(ctx, nil, domain.CreateReferralRequest{
		ReferrerID:        referrer.ID,
		RefereeExternalID: "shared-user",
	})
	require.NoError(t, err)
	require.True(t, created)

	_, err = f.svc.FindExistingReferral(ctx, nil, 202, "shared-user")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	existing, err := f.svc.FindExistingReferral(ctx, nil, 101, "shared-user")
	require.NoError(t, err)
	assert.Equal(t, referrer.ID, existing.ReferrerID)
}

func TestEnsureLinkIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrer := f.participant(t, 101, "referrer")

	first, err := f.svc.EnsureLink(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Len(t, first.Slug, code.GlobalCodeLength)

	second, err := f.svc.EnsureLink(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Slug, second.Slug)

	bySlug, err := f.svc.FindLinkBySlug(ctx, first.Slug)
	require.NoError(t, err)
	assert.Equal(t, referrer.ID, bySlug.ParticipantID)

	_, err = f.svc.FindLinkByParticipant(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
}

func TestEnsureLinkExhaustsOnTakenSlugs(t *testing.T) {
	f := newFixture(t, func(p *Params) {
		p.Generator = code.NewGenerator(zeroReader{}, code.NewFilter(nil))
	})
	ctx := context.Background()
	a := f.participant(t, 101, "a")
	b := f.participant(t, 101, "b")

	link, err := f.svc.EnsureLink(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "2222222", link.Slug)

	_, err = f.svc.EnsureLink(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrLinkAllocationExhausted)
}

type collidingRepo struct {
	domain.Repository
	creates atomic.Int32
}

func (r *collidingRepo) SlugExists(context.Context, *gorm.DB, string) (bool, error) {
	return false, nil
}

func (r *collidingRepo) CreateLink(context.Context, *gorm.DB, *domain.ReferralLink) error {
	r.creates.Add(1)
	return gorm.ErrDuplicatedKey
}

func TestEnsureLinkRetriesInsertCollisions(t *testing.T) {
	repo := &collidingRepo{Repository: repository.Provide()}
	f := newFixture(t, func(p *Params) { p.Repo = repo })
	referrer := f.participant(t, 101, "referrer")

	_, err := f.svc.EnsureLink(context.Background(), referrer.ID)
	assert.ErrorIs(t, err, domain.ErrLinkAllocationExhausted)
	assert.Equal(t, int32(3), repo.creates.Load())
}

func TestListByReferrer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrer := f.participant(t, 101, "referrer")

	for _, id := range []string{"r1", "r2", "r3"} {
		_, _, err := f.svc.CreateReferral(ctx, nil, domain.CreateReferralRequest{ReferrerID: referrer.ID, RefereeExternalID: id})
		require.NoError(t, err)
	}

	items, info, err := f.svc.ListByReferrer(ctx, referrer.ID, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.True(t, info.HasMore)
}
