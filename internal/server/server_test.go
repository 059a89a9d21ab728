package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	redis "github.com/redis/go-redis/v9"
	apikeydomain "github.com/smallbiznis/referral/internal/apikey/domain"
	apikeyrepo "github.com/smallbiznis/referral/internal/apikey/repository"
	apikeyservice "github.com/smallbiznis/referral/internal/apikey/service"
	auditdomain "github.com/smallbiznis/referral/internal/audit/domain"
	auditrepo "github.com/smallbiznis/referral/internal/audit/repository"
	auditservice "github.com/smallbiznis/referral/internal/audit/service"
	"github.com/smallbiznis/referral/internal/clock"
	"github.com/smallbiznis/referral/internal/config"
	eventrepo "github.com/smallbiznis/referral/internal/event/repository"
	eventservice "github.com/smallbiznis/referral/internal/event/service"
	participantdomain "github.com/smallbiznis/referral/internal/participant/domain"
	participantrepo "github.com/smallbiznis/referral/internal/participant/repository"
	participantservice "github.com/smallbiznis/referral/internal/participant/service"
	productdomain "github.com/smallbiznis/referral/internal/product/domain"
	productrepo "github.com/smallbiznis/referral/internal/product/repository"
	productservice "github.com/smallbiznis/referral/internal/product/service"
	programdomain "github.com/smallbiznis/referral/internal/program/domain"
	programrepo "github.com/smallbiznis/referral/internal/program/repository"
	programservice "github.com/smallbiznis/referral/internal/program/service"
	"github.com/smallbiznis/referral/internal/ratelimit"
	"github.com/smallbiznis/referral/internal/redirect"
	referraldomain "github.com/smallbiznis/referral/internal/referral/domain"
	referralrepo "github.com/smallbiznis/referral/internal/referral/repository"
	referralservice "github.com/smallbiznis/referral/internal/referral/service"
	rewardrepo "github.com/smallbiznis/referral/internal/reward/repository"
	rewardservice "github.com/smallbiznis/referral/internal/reward/service"
	"github.com/smallbiznis/referral/internal/testutil"
	widgetdomain "github.com/smallbiznis/referral/internal/widget/domain"
	widgetservice "github.com/smallbiznis/referral/internal/widget/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testAPIKey       = "rk_live_test_key"
	testWidgetSecret = "widget-secret"
)

type harness struct {
	db           *gorm.DB
	engine       *gin.Engine
	clock        *clock.FakeClock
	product      *productdomain.Product
	program      *programdomain.Program
	participants participantdomain.Service
	referrals    referraldomain.Service
}

func newHarness(t *testing.T, limiter *ratelimit.EventIngestLimiter) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(testutil.Epoch)
	log := zap.NewNop()
	cfg := config.Config{LinkBaseURL: "https://ref.example.com"}
	referralCfg := config.NewStaticReferralConfigHolder(config.DefaultReferralConfig())

	products := productservice.New(productservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Repo: productrepo.Provide()})
	programs := programservice.New(programservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Repo: programrepo.Provide()})
	participants := participantservice.New(participantservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Repo: participantrepo.Provide()})
	referrals := referralservice.New(referralservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: referralrepo.Provide(), Config: referralCfg,
	})
	events := eventservice.New(eventservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, Repo: eventrepo.Provide(),
		ParticipantSvc: participants, ReferralSvc: referrals, ProgramSvc: programs,
	})
	apiKeys := apikeyservice.New(apikeyservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Repo: apikeyrepo.Provide()})
	widgets := widgetservice.New(widgetservice.Params{
		DB: conn, Log: log, Cfg: cfg, Clock: clk,
		ProductSvc: products, ProgramSvc: programs, ParticipantSvc: participants, ReferralSvc: referrals,
	})

	ctx := context.Background()
	target := "https://shop.example.com/join"
	product, err := products.Create(ctx, productdomain.CreateRequest{Name: "Acme", RedirectURL: &target, WidgetSecret: testWidgetSecret})
	require.NoError(t, err)
	program, err := programs.Create(ctx, programdomain.CreateRequest{
		ProductID:    product.ID,
		Name:         "Launch",
		WidgetConfig: map[string]any{"title": "Invite friends"},
	})
	require.NoError(t, err)
	_, err = apiKeys.EnsureKey(ctx, product.ID, "test", testAPIKey, apikeydomain.AllScopes())
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	NewServer(ServerParams{
		Gin:            engine,
		Cfg:            cfg,
		ReferralCfg:    referralCfg,
		APIKeySvc:      apiKeys,
		AuditSvc:       auditservice.New(auditservice.Params{DB: conn, Log: log, GenID: node, Clock: clk, Repo: auditrepo.Provide()}),
		EventSvc:       events,
		ParticipantSvc: participants,
		ProgramSvc:     programs,
		ReferralSvc:    referrals,
		RewardSvc:      rewardservice.New(rewardservice.Params{DB: conn, Log: log, Repo: rewardrepo.Provide()}),
		WidgetSvc:      widgets,
		Redirects: redirect.New(redirect.Params{
			Log: log, ReferralSvc: referrals, ParticipantSvc: participants, ProductSvc: products,
		}),
		EventLimiter: limiter,
	})

	return &harness{
		db:           conn,
		engine:       engine,
		clock:        clk,
		product:      product,
		program:      program,
		participants: participants,
		referrals:    referrals,
	}
}

func (h *harness) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func (h *harness) referrerSlug(t *testing.T, externalID string) (*participantdomain.Participant, string) {
	t.Helper()
	ctx := context.Background()
	p, _, err := h.participants.Upsert(ctx, nil, participantdomain.UpsertRequest{ProductID: h.product.ID, ExternalID: externalID, Name: "Ref"})
	require.NoError(t, err)
	link, err := h.referrals.EnsureLink(ctx, p.ID)
	require.NoError(t, err)
	return p, link.Slug
}

func (h *harness) widgetToken(t *testing.T, productID, subject string) string {
	t.Helper()
	claims := widgetdomain.Claims{
		ProductID: productID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(h.clock.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testWidgetSecret))
	require.NoError(t, err)
	return signed
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func signupJSON(productID, userID, code string) string {
	return fmt.Sprintf(`{"eventType":"signup","timestamp":"2026-03-01T12:00:00Z","productId":"%s","payload":{"userId":%q,"referralCode":%q}}`,
		productID, userID, code)
}

func TestIngestEventRequiresAPIKey(t *testing.T) {
	h := newHarness(t, nil)
	body := signupJSON(h.product.ID.String(), "u1", "")

	rec := h.do(t, http.MethodPost, "/v1/events", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Error)

	rec = h.do(t, http.MethodPost, "/v1/events", "rk_live_wrong", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIngestEventValidation(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/v1/events", testAPIKey, `{"eventType":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "validation_error", body.Error)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "malformed_json", body.Details[0].Code)

	rec = h.do(t, http.MethodPost, "/v1/events", testAPIKey, `{"eventType":"refund","payload":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decodeError(t, rec)
	fields := map[string]string{}
	for _, d := range body.Details {
		fields[d.Field] = d.Code
	}
	assert.Equal(t, "invalid_event_type", fields["eventType"])
	assert.Equal(t, "required", fields["timestamp"])
	assert.Equal(t, "required", fields["productId"])
}

func TestIngestEventProductMismatch(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/v1/events", testAPIKey, signupJSON("12345", "u1", ""))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIngestEventAttributesSignup(t *testing.T) {
	h := newHarness(t, nil)
	referrer, slug := h.referrerSlug(t, "referrer")

	rec := h.do(t, http.MethodPost, "/v1/events", testAPIKey, signupJSON(h.product.ID.String(), "referee", slug))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Success bool   `json:"success"`
		EventID string `json:"eventId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.EventID)

	existing, err := h.referrals.FindExistingReferral(context.Background(), nil, h.product.ID, "referee")
	require.NoError(t, err)
	assert.Equal(t, referrer.ID, existing.ReferrerID)

	rec = h.do(t, http.MethodGet, "/v1/events/"+result.EventID, testAPIKey, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, fmt.Sprintf("/v1/participants/%s/referrals", referrer.ID), testAPIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "referee", list.Data[0]["external_id"])
}

func TestIngestEventRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := ratelimit.NewEventIngestLimiter(config.Config{RateLimit: config.RateLimitConfig{
		Enabled:                 true,
		EventIngestProductRate:  0.001,
		EventIngestProductBurst: 1,
	}}, client)
	require.NoError(t, err)

	h := newHarness(t, limiter)
	body := signupJSON(h.product.ID.String(), "u1", "")

	rec := h.do(t, http.MethodPost, "/v1/events", testAPIKey, body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/events", testAPIKey, body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "product-rate", rec.Header().Get("X-Rate-Limited-Reason"))
	assert.Equal(t, "rate_limited", decodeError(t, rec).Error)
}

func TestRedirect(t *testing.T) {
	h := newHarness(t, nil)
	referrer, slug := h.referrerSlug(t, "referrer")

	rec := h.do(t, http.MethodGet, "/r/"+strings.ToUpper(slug), "", "")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "https://shop.example.com/join?"))
	assert.Contains(t, location, "rfc="+slug)
	assert.Contains(t, location, "participantId=")
	assert.Contains(t, location, "name=")
	assert.NotContains(t, location, "email=", "participant has no email")
	assert.Contains(t, location, "participantId="+url.QueryEscape(base64.StdEncoding.EncodeToString([]byte(referrer.ID.String()))))

	rec = h.do(t, http.MethodGet, "/r/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "link_not_found", decodeError(t, rec).Error)
}

func TestRedirectOrphanLinkIsNotFound(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.db.Create(&referraldomain.ReferralLink{
		ID:            1,
		ParticipantID: 999999,
		Slug:          "orphan1",
		CreatedAt:     testutil.Epoch,
	}).Error)

	rec := h.do(t, http.MethodGet, "/r/orphan1", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Equal(t, "link_not_found", decodeError(t, rec).Error)
}

func TestWidgetInit(t *testing.T) {
	h := newHarness(t, nil)
	pid := h.product.ID.String()

	rec := h.do(t, http.MethodPost, "/v1/widget/init", h.widgetToken(t, pid, "user-1"), fmt.Sprintf(`{"productId":%q}`, pid))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cfg map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "Invite friends", cfg["title"])
	assert.True(t, strings.HasPrefix(cfg["referralLink"].(string), "https://ref.example.com/r/"))

	rec = h.do(t, http.MethodPost, "/v1/widget/init", "", fmt.Sprintf(`{"productId":%q}`, pid))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/widget/init", h.widgetToken(t, "999", "user-1"), fmt.Sprintf(`{"productId":%q}`, pid))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParticipantEndpoints(t *testing.T) {
	h := newHarness(t, nil)
	referrer, slug := h.referrerSlug(t, "referrer")

	rec := h.do(t, http.MethodGet, "/v1/participants/"+referrer.ID.String()+"/link", testAPIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var link struct {
		Data struct {
			Slug string `json:"slug"`
			URL  string `json:"url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
	assert.Equal(t, slug, link.Data.Slug)
	assert.Equal(t, "https://ref.example.com/r/"+slug, link.Data.URL)

	rec = h.do(t, http.MethodGet, "/v1/participants?page_size=10", testAPIKey, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/participants/999", testAPIKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/participants/"+referrer.ID.String()+"/rewards", testAPIKey, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListParticipantEvents(t *testing.T) {
	h := newHarness(t, nil)
	_, slug := h.referrerSlug(t, "referrer")

	rec := h.do(t, http.MethodPost, "/v1/events", testAPIKey, signupJSON(h.product.ID.String(), "referee", slug))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	referee, err := h.participants.FindByExternalID(context.Background(), nil, h.product.ID, "referee")
	require.NoError(t, err)

	rec = h.do(t, http.MethodGet, "/v1/participants/"+referee.ID.String()+"/events", testAPIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data     []map[string]any `json:"data"`
		PageInfo struct {
			HasMore bool `json:"has_more"`
		} `json:"page_info"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "signup", list.Data[0]["event_type"])
	assert.False(t, list.PageInfo.HasMore)

	rec = h.do(t, http.MethodGet, "/v1/participants/999/events", testAPIKey, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetProgramStatus(t *testing.T) {
	h := newHarness(t, nil)
	pid := h.product.ID.String()
	path := "/v1/programs/" + h.program.ID.String() + "/status"

	rec := h.do(t, http.MethodPost, path, testAPIKey, `{"status":"paused"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated struct {
		Data programdomain.Program `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, programdomain.StatusPaused, updated.Data.Status)

	// A paused program is invisible to widget init.
	rec = h.do(t, http.MethodPost, "/v1/widget/init", h.widgetToken(t, pid, "user-1"), fmt.Sprintf(`{"productId":%q}`, pid))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_active_program", decodeError(t, rec).Error)

	rec = h.do(t, http.MethodPost, path, testAPIKey, `{"status":"ACTIVE"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = h.do(t, http.MethodPost, "/v1/widget/init", h.widgetToken(t, pid, "user-1"), fmt.Sprintf(`{"productId":%q}`, pid))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, path, testAPIKey, `{"status":"deleted"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "status", body.Details[0].Field)

	rec = h.do(t, http.MethodPost, "/v1/programs/999/status", testAPIKey, `{"status":"paused"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/audit-logs?action="+auditdomain.ActionProgramStatus, testAPIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Data []auditdomain.AuditLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs.Data, 2)
	assert.Equal(t, auditdomain.TargetProgram, logs.Data[0].TargetType)
}

func TestScopeEnforcement(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/v1/api-keys", testAPIKey, `{"name":"ingest-only","scopes":["events:write"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		Data apikeydomain.SecretResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.APIKey)

	rec = h.do(t, http.MethodGet, "/v1/participants", created.Data.APIKey, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeError(t, rec).Error)

	rec = h.do(t, http.MethodPost, "/v1/programs/"+h.program.ID.String()+"/status", created.Data.APIKey, `{"status":"paused"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPIKeyLifecycleIsAudited(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/v1/api-keys", testAPIKey, `{"name":"backend"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		Data apikeydomain.SecretResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = h.do(t, http.MethodPost, "/v1/api-keys/"+created.Data.KeyID+"/rotate", testAPIKey, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = h.do(t, http.MethodPost, "/v1/api-keys/"+created.Data.KeyID+"/revoke", testAPIKey, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/audit-logs", testAPIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Data []auditdomain.AuditLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs.Data, 3)

	actions := make([]string, 0, len(logs.Data))
	for _, entry := range logs.Data {
		actions = append(actions, entry.Action)
		assert.Equal(t, "api_key", entry.ActorType)
		assert.NotContains(t, string(entry.Metadata), created.Data.APIKey)
	}
	assert.ElementsMatch(t, []string{
		auditdomain.ActionAPIKeyCreate,
		auditdomain.ActionAPIKeyRotate,
		auditdomain.ActionAPIKeyRevoke,
	}, actions)

	rec = h.do(t, http.MethodGet, "/v1/audit-logs?action=api_key.create", testAPIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	require.Len(t, logs.Data, 1)
	require.NotNil(t, logs.Data[0].TargetID)
	assert.Equal(t, created.Data.KeyID, *logs.Data[0].TargetID)
	assert.Contains(t, string(logs.Data[0].Metadata), "_****")
}

func TestCodeEndpoints(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/v1/codes/validate?code=ab", testAPIKey, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var validation codeValidationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &validation))
	assert.False(t, validation.Valid)
	assert.NotEmpty(t, validation.Reason)

	rec = h.do(t, http.MethodGet, "/v1/codes/suggest?name=Jane%20Doe", testAPIKey, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error)
}
