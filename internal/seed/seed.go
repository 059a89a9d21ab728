package seed

import (
	"context"
	"errors"
	"strings"

	apikeydomain "github.com/smallbiznis/referral/internal/apikey/domain"
	"github.com/smallbiznis/referral/internal/config"
	productdomain "github.com/smallbiznis/referral/internal/product/domain"
	programdomain "github.com/smallbiznis/referral/internal/program/domain"
	"github.com/smallbiznis/referral/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("seed",
	fx.Invoke(func(lc fx.Lifecycle, b *Bootstrapper) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return b.Run(ctx)
			},
		})
	}),
	fx.Provide(NewBootstrapper),
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	ProductRepo productdomain.Repository
	ProductSvc  productdomain.Service
	ProgramSvc  programdomain.Service
	APIKeySvc   apikeydomain.Service
	Limiter     *ratelimit.EventIngestLimiter `optional:"true"`
}

// Bootstrapper seeds one product, an active program and an API key so a fresh
// install can ingest events without manual SQL.
type Bootstrapper struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         config.BootstrapConfig
	productRepo productdomain.Repository
	productSvc  productdomain.Service
	programSvc  programdomain.Service
	apiKeySvc   apikeydomain.Service
	limiter     *ratelimit.EventIngestLimiter
}

func NewBootstrapper(p Params) *Bootstrapper {
	return &Bootstrapper{
		db:          p.DB,
		log:         p.Log.Named("seed"),
		cfg:         p.Cfg.Bootstrap,
		productRepo: p.ProductRepo,
		productSvc:  p.ProductSvc,
		programSvc:  p.ProgramSvc,
		apiKeySvc:   p.APIKeySvc,
		limiter:     p.Limiter,
	}
}

func (b *Bootstrapper) Run(ctx context.Context) error {
	if strings.TrimSpace(b.cfg.ProductName) == "" {
		return nil
	}
	if strings.TrimSpace(b.cfg.WidgetSecret) == "" {
		return errors.New("bootstrap widget secret is required")
	}

	token, ok, err := b.limiter.TryLockBootstrap(ctx)
	if err != nil {
		return err
	}
	if !ok {
		b.log.Info("bootstrap running on another instance, skipping")
		return nil
	}
	defer func() {
		if err := b.limiter.ReleaseBootstrap(ctx, token); err != nil {
			b.log.Warn("bootstrap unlock failed", zap.Error(err))
		}
	}()

	product, err := b.productRepo.FindByName(ctx, b.db, b.cfg.ProductName)
	if err != nil {
		return err
	}
	if product == nil {
		var redirect *string
		if b.cfg.RedirectURL != "" {
			redirect = &b.cfg.RedirectURL
		}
		product, err = b.productSvc.Create(ctx, productdomain.CreateRequest{
			Name:         b.cfg.ProductName,
			RedirectURL:  redirect,
			WidgetSecret: b.cfg.WidgetSecret,
		})
		if err != nil {
			return err
		}
	}

	if _, err := b.programSvc.Active(ctx, product.ID); errors.Is(err, programdomain.ErrNoActiveProgram) {
		if _, err := b.programSvc.Create(ctx, programdomain.CreateRequest{
			ProductID: product.ID,
			Name:      b.cfg.ProgramName,
			Status:    programdomain.StatusActive,
			WidgetConfig: map[string]any{
				"title":       "Invite friends",
				"description": "Share your link and earn rewards.",
			},
		}); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if strings.TrimSpace(b.cfg.APIKey) != "" {
		key, err := b.apiKeySvc.EnsureKey(ctx, product.ID, "bootstrap", b.cfg.APIKey, apikeydomain.AllScopes())
		if err != nil {
			return err
		}
		b.log.Info("bootstrap api key ready", zap.String("key_id", key.KeyID))
	}

	b.log.Info("bootstrap complete", zap.String("product_id", product.ID.String()))
	return nil
}
