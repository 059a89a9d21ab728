package redirect

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"

	"github.com/smallbiznis/referral/internal/code"
	participantdomain "github.com/smallbiznis/referral/internal/participant/domain"
	productdomain "github.com/smallbiznis/referral/internal/product/domain"
	referraldomain "github.com/smallbiznis/referral/internal/referral/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redirect",
	fx.Provide(New),
)

var ErrLinkNotFound = errors.New("link_not_found")

// Query parameter names appended to the product landing URL.
const (
	ParamName          = "name"
	ParamEmail         = "email"
	ParamParticipantID = "participantId"
	ParamCode          = "rfc"
)

type Params struct {
	fx.In

	Log            *zap.Logger
	ReferralSvc    referraldomain.Service
	ParticipantSvc participantdomain.Service
	ProductSvc     productdomain.Service
}

// Resolver turns a shared code into the product landing URL.
type Resolver struct {
	log            *zap.Logger
	referralSvc    referraldomain.Service
	participantSvc participantdomain.Service
	productSvc     productdomain.Service
}

func New(p Params) *Resolver {
	return &Resolver{
		log:            p.Log.Named("redirect.resolver"),
		referralSvc:    p.ReferralSvc,
		participantSvc: p.ParticipantSvc,
		productSvc:     p.ProductSvc,
	}
}

// Resolve returns the Location for GET /r/{code}. A missing link and a
// missing owner both surface as ErrLinkNotFound.
func (r *Resolver) Resolve(ctx context.Context, rawCode string) (string, error) {
	slug := code.NormalizeCode(rawCode)
	if slug == "" {
		return "", ErrLinkNotFound
	}

	link, err := r.referralSvc.FindLinkBySlug(ctx, slug)
	if errors.Is(err, referraldomain.ErrLinkNotFound) {
		return "", ErrLinkNotFound
	}
	if err != nil {
		return "", err
	}

	participant, err := r.participantSvc.Get(ctx, 0, link.ParticipantID)
	if errors.Is(err, participantdomain.ErrNotFound) {
		return "", ErrLinkNotFound
	}
	if err != nil {
		return "", err
	}

	target, err := r.productSvc.RedirectURL(ctx, participant.ProductID)
	if err != nil {
		return "", err
	}

	return BuildLocation(target, slug, participant.NameValue(), participant.EmailValue(), participant.ID.String())
}

// BuildLocation appends base64 encoded identity parameters and rfc to the
// product URL, keeping any query it already carries. Empty values are omitted.
func BuildLocation(target, slug, name, email, participantID string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", productdomain.ErrRedirectNotConfigured, err)
	}

	query := u.Query()
	setEncoded(query, ParamName, name)
	setEncoded(query, ParamEmail, email)
	setEncoded(query, ParamParticipantID, participantID)
	query.Set(ParamCode, slug)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func setEncoded(query url.Values, key, value string) {
	if value == "" {
		return
	}
	query.Set(key, base64.StdEncoding.EncodeToString([]byte(value)))
}
