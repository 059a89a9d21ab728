package seed

import (
	"context"
	"testing"

	apikeydomain "github.com/smallbiznis/referral/internal/apikey/domain"
	apikeyrepo "github.com/smallbiznis/referral/internal/apikey/repository"
	apikeyservice "github.com/smallbiznis/referral/internal/apikey/service"
	"github.com/smallbiznis/referral/internal/clock"
	"github.com/smallbiznis/referral/internal/config"
	productdomain "github.com/smallbiznis/referral/internal/product/domain"
	productrepo "github.com/smallbiznis/referral/internal/product/repository"
	productservice "github.com/smallbiznis/referral/internal/product/service"
	programdomain "github.com/smallbiznis/referral/internal/program/domain"
	programrepo "github.com/smallbiznis/referral/internal/program/repository"
	programservice "github.com/smallbiznis/referral/internal/program/service"
	"github.com/smallbiznis/referral/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	programs programdomain.Service
	apiKeys  apikeydomain.Service
	newBoot  func(config.BootstrapConfig) *Bootstrapper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(testutil.Epoch)
	log := zap.NewNop()

	products := productservice.New(productservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Repo: productrepo.Provide()})
	programs := programservice.New(programservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Repo: programrepo.Provide()})
	apiKeys := apikeyservice.New(apikeyservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Repo: apikeyrepo.Provide()})

	return &fixture{
		db:       conn,
		programs: programs,
		apiKeys:  apiKeys,
		newBoot: func(cfg config.BootstrapConfig) *Bootstrapper {
			return NewBootstrapper(Params{
				DB:          conn,
				Log:         log,
				Cfg:         config.Config{Bootstrap: cfg},
				ProductRepo: productrepo.Provide(),
				ProductSvc:  products,
				ProgramSvc:  programs,
				APIKeySvc:   apiKeys,
			})
		},
	}
}

func TestRunSeedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := config.BootstrapConfig{
		ProductName:  "Acme",
		RedirectURL:  "https://acme.example.com",
		WidgetSecret: "secret",
		APIKey:       "rk_live_bootstrap",
		ProgramName:  "Default program",
	}

	require.NoError(t, f.newBoot(cfg).Run(ctx))
	require.NoError(t, f.newBoot(cfg).Run(ctx))

	var products []productdomain.Product
	require.NoError(t, f.db.Find(&products).Error)
	require.Len(t, products, 1)

	var programCount int64
	require.NoError(t, f.db.Model(&programdomain.Program{}).Count(&programCount).Error)
	assert.Equal(t, int64(1), programCount)

	program, err := f.programs.Active(ctx, products[0].ID)
	require.NoError(t, err)
	widget, err := f.programs.WidgetConfig(program)
	require.NoError(t, err)
	assert.NotEmpty(t, widget["title"])

	key, err := f.apiKeys.Authenticate(ctx, "rk_live_bootstrap")
	require.NoError(t, err)
	assert.Equal(t, products[0].ID, key.ProductID)
}

func TestRunSkipsWithoutProductName(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.newBoot(config.BootstrapConfig{}).Run(context.Background()))

	var count int64
	require.NoError(t, f.db.Model(&productdomain.Product{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunRequiresWidgetSecret(t *testing.T) {
	f := newFixture(t)

	err := f.newBoot(config.BootstrapConfig{ProductName: "Acme"}).Run(context.Background())
	assert.Error(t, err)
}
