package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	FindReferrerByCode(ctx context.Context, tx *gorm.DB, productID snowflake.ID, code string) (snowflake.ID, error)
	FindExistingReferral(ctx context.Context, tx *gorm.DB, productID snowflake.ID, refereeExternalID string) (*Referral, error)
	CreateReferral(ctx context.Context, tx *gorm.DB, req CreateReferralRequest) (*Referral, bool, error)
	// AttributeByCode resolves the code and creates the referral. Unknown
	// codes and self referrals are outcomes, not errors.
	AttributeByCode(ctx context.Context, tx *gorm.DB, req AttributeRequest) (*Attribution, error)

	FindLinkBySlug(ctx context.Context, code string) (*ReferralLink, error)
	FindLinkByParticipant(ctx context.Context, participantID snowflake.ID) (*ReferralLink, error)
	EnsureLink(ctx context.Context, participantID snowflake.ID) (*ReferralLink, error)

	ListByReferrer(ctx context.Context, referrerID snowflake.ID, page pagination.Pagination) ([]*Referral, pagination.PageInfo, error)
}

type CreateReferralRequest struct {
	ReferrerID        snowflake.ID
	RefereeExternalID string
	Email             string
	Name              string
}

type AttributeRequest struct {
	ProductID         snowflake.ID
	Code              string
	RefereeExternalID string
	Email             string
	Name              string
}

type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeExisting   Outcome = "existing"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeSelf       Outcome = "self_referral"
)

type Attribution struct {
	Outcome  Outcome
	Referral *Referral
}

var (
	ErrNotFound                = errors.New("referral_not_found")
	ErrCodeNotFound            = errors.New("referral_code_not_found")
	ErrLinkNotFound            = errors.New("link_not_found")
	ErrInvalidReferrer         = errors.New("invalid_referrer")
	ErrInvalidExternalID       = errors.New("invalid_external_id")
	ErrSelfReferral            = errors.New("self_referral")
	ErrSlugTaken               = errors.New("slug_taken")
	ErrLinkAllocationExhausted = errors.New("link_allocation_exhausted")
)
