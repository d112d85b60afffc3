package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountrepo "github.com/smallbiznis/referrals/internal/account/repository"
	accountservice "github.com/smallbiznis/referrals/internal/account/service"
	"github.com/smallbiznis/referrals/internal/clock"
	commissionrepo "github.com/smallbiznis/referrals/internal/commission/repository"
	commissionservice "github.com/smallbiznis/referrals/internal/commission/service"
	"github.com/smallbiznis/referrals/internal/config"
	dashboardservice "github.com/smallbiznis/referrals/internal/dashboard/service"
	invitationrepo "github.com/smallbiznis/referrals/internal/invitation/repository"
	invitationservice "github.com/smallbiznis/referrals/internal/invitation/service"
	"github.com/smallbiznis/referrals/internal/providers/pdf"
	"github.com/smallbiznis/referrals/internal/ratelimit"
	referralservice "github.com/smallbiznis/referrals/internal/referral/service"
	subscriptionrepo "github.com/smallbiznis/referrals/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/referrals/internal/subscription/service"
	webhookdomain "github.com/smallbiznis/referrals/internal/webhook/domain"
	webhookrepo "github.com/smallbiznis/referrals/internal/webhook/repository"
	webhookservice "github.com/smallbiznis/referrals/internal/webhook/service"
	"github.com/smallbiznis/referrals/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "whsec_server"

var testNow = time.Date(2026, 7, 9, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	db       *gorm.DB
	router   *gin.Engine
	verifier *webhookdomain.Verifier
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Webhook: config.WebhookConfig{Secret: testSecret, CallTimeout: 2 * time.Second},
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	db := dbtest.Open(t)
	node, err := snowflake.NewNode(10)
	require.NoError(t, err)
	clk := clock.NewFakeClock(testNow)
	log := zap.NewNop()

	accounts := accountservice.New(accountservice.Params{DB: db, Log: log, GenID: node, Repo: accountrepo.Provide(), Clock: clk})
	subscriptions := subscriptionservice.New(subscriptionservice.Params{DB: db, Log: log, GenID: node, Repo: subscriptionrepo.Provide(), Clock: clk})
	referrals := referralservice.New(referralservice.Params{Log: log, Accounts: accounts})
	commissions := commissionservice.New(commissionservice.Params{
		DB: db, Log: log, GenID: node, Repo: commissionrepo.Provide(), Accounts: accounts, Cfg: cfg, Clock: clk,
	})
	invitations := invitationservice.New(invitationservice.Params{
		DB: db, Log: log, GenID: node, Repo: invitationrepo.Provide(), Accounts: accounts, Cfg: cfg, Clock: clk,
	})
	verifier, err := webhookdomain.NewVerifier(testSecret)
	require.NoError(t, err)
	webhooks := webhookservice.New(webhookservice.Params{
		DB: db, Log: log, Cfg: cfg, Verifier: verifier, Repo: webhookrepo.Provide(),
		Accounts: accounts, Subscriptions: subscriptions, Referrals: referrals,
		Commissions: commissions, Invitations: invitations, Clock: clk,
	})
	limiter, err := ratelimit.NewWebhookLimiter(cfg, nil)
	require.NoError(t, err)

	engine := NewEngine(log, nil)
	NewServer(ServerParams{
		Gin:            engine,
		Cfg:            cfg,
		Log:            log,
		WebhookSvc:     webhooks,
		AccountSvc:     accounts,
		ReferralSvc:    referrals,
		CommissionSvc:  commissions,
		InvitationSvc:  invitations,
		DashboardSvc:   dashboardservice.NewService(dashboardservice.Params{DB: db, Log: log, Clock: clk}),
		PDFProvider:    pdf.New(pdf.Params{}),
		WebhookLimiter: limiter,
	})

	return testEnv{db: db, router: engine, verifier: verifier}
}

func (e testEnv) seedPartner(t *testing.T, id int64, email string, referredBy any) {
	t.Helper()
	require.NoError(t, e.db.Exec(
		`INSERT INTO accounts (id, email, full_name, role, is_partner, active, referred_by, metadata, created_at, updated_at)
		 VALUES (?, ?, 'Partner', 'partner', TRUE, TRUE, ?, '{}', ?, ?)`,
		id, email, referredBy, testNow, testNow,
	).Error)
}

func (e testEnv) post(path, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(webhookdomain.SignatureHeader, signature)
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func (e testEnv) postSigned(path, body string) *httptest.ResponseRecorder {
	return e.post(path, body, e.verifier.Sign([]byte(body)))
}

func (e testEnv) get(path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body), resp.Body.String())
	return body.Error
}

type outcomeBody struct {
	Message        string       `json:"message"`
	UserID         snowflake.ID `json:"userId"`
	SubscriptionID snowflake.ID `json:"subscriptionId"`
}

func signupBody(email, referrer string) string {
	return fmt.Sprintf(`{"event":"user_signup","email":%q,"full_name":"Jane Roe","referrer_email":%q,"setup_amount":1000,"monthly_amount":200}`, email, referrer)
}

func TestUserSignupCreatedThenAlreadyExists(t *testing.T) {
	env := newTestEnv(t)
	env.seedPartner(t, 1, "partner@example.com", nil)

	resp := env.postSigned("/api/webhook/user-signup", signupBody("jane@example.com", "partner@example.com"))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var first outcomeBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &first))
	assert.Equal(t, "created", first.Message)
	assert.NotZero(t, first.UserID)
	assert.NotZero(t, first.SubscriptionID)

	resp = env.postSigned("/api/webhook/user-signup", signupBody("JANE@example.com", "partner@example.com"))
	require.Equal(t, http.StatusOK, resp.Code)

	var second outcomeBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &second))
	assert.Equal(t, "already exists", second.Message)
	assert.Equal(t, first.UserID, second.UserID)
	assert.NotContains(t, resp.Body.String(), "subscriptionId")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post("/api/webhook/user-events", signupBody("jane@example.com", ""), "sha256=00")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "invalid_signature", decodeError(t, resp).Type)

	resp = env.post("/api/webhook/user-events", signupBody("jane@example.com", ""), "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	dbtest.AssertCount(t, env.db, `SELECT COUNT(*) FROM accounts`, 0)
	dbtest.AssertCount(t, env.db, `SELECT COUNT(*) FROM webhook_events`, 0)
}

func TestWebhookValidationFailures(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name  string
		path  string
		body  string
		field string
		code  string
	}{
		{"malformed json", "/api/webhook/user-events", `{"event":`, "payload", "malformed_payload"},
		{"unknown event", "/api/webhook/user-events", `{"event":"refund"}`, "event", "unexpected_event_type"},
		{"wrong endpoint", "/api/webhook/partner-signup", signupBody("jane@example.com", ""), "event", "unexpected_event_type"},
		{"bad email", "/api/webhook/user-signup", `{"event":"user_signup","email":"nope","full_name":"J","setup_amount":1,"monthly_amount":1}`, "email", "email"},
		{"negative amount", "/api/webhook/user-signup", `{"event":"user_signup","email":"a@example.com","full_name":"J","setup_amount":-1,"monthly_amount":1}`, "setup_amount", "min"},
		{"amount above column max", "/api/webhook/user-signup", `{"event":"user_signup","email":"a@example.com","full_name":"J","setup_amount":1,"monthly_amount":1e15}`, "monthly_amount", "max"},
		{"quoted amount", "/api/webhook/user-signup", `{"event":"user_signup","email":"a@example.com","full_name":"J","setup_amount":"1","monthly_amount":1}`, "setup_amount", "type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.postSigned(tc.path, tc.body)
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

			payload := decodeError(t, resp)
			assert.Equal(t, "validation_error", payload.Type)
			require.Len(t, payload.Errors, 1)
			assert.Equal(t, tc.field, payload.Errors[0].Field)
			assert.Equal(t, tc.code, payload.Errors[0].Code)
		})
	}
}

func TestPartnerSignupOutcomes(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Exec(
		`INSERT INTO accounts (id, email, role, is_partner, active, metadata, created_at, updated_at)
		 VALUES (5, 'cust@example.com', 'customer', FALSE, TRUE, '{}', ?, ?),
		        (6, 'root@example.com', 'admin', FALSE, TRUE, '{}', ?, ?)`,
		testNow, testNow, testNow, testNow,
	).Error)

	resp := env.postSigned("/api/webhook/partner-signup", `{"event":"partner_signup","email":"cust@example.com"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.JSONEq(t, `{"message":"upgraded","userId":"5"}`, resp.Body.String())

	resp = env.postSigned("/api/webhook/partner-signup", `{"event":"partner_signup","email":"cust@example.com"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"message":"already partner","userId":"5"}`, resp.Body.String())

	resp = env.postSigned("/api/webhook/partner-signup", `{"event":"partner_signup","email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.postSigned("/api/webhook/partner-signup", `{"event":"partner_signup","email":"root@example.com"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "admin_account", decodeError(t, resp).Errors[0].Code)
}

func TestIdentityEndpoint(t *testing.T) {
	env := newTestEnv(t)

	ignored := `{"type":"session.created","data":{}}`
	resp := env.postSigned("/api/webhook/identity", ignored)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.JSONEq(t, `{"received":"session.created"}`, resp.Body.String())

	created := `{"type":"user.created","data":{"id":"idp_1","first_name":"Ada","last_name":"Lovelace","email_addresses":[{"email_address":"Ada@Example.com"}]}}`
	resp = env.postSigned("/api/webhook/identity", created)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), `"message":"user.created handled"`)
	dbtest.AssertCount(t, env.db, `SELECT COUNT(*) FROM accounts WHERE email = 'ada@example.com' AND identity_id = 'idp_1'`, 1)
}

func TestWebhookRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, WebhookRate: 0.001, WebhookBurst: 1}
	})

	resp := env.postSigned("/api/webhook/user-events", `{"event":"refund"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.postSigned("/api/webhook/user-events", `{"event":"refund"}`)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, resp).Type)
}

func TestCommissionSummaryAndStatement(t *testing.T) {
	env := newTestEnv(t)
	env.seedPartner(t, 2, "upline@example.com", nil)
	env.seedPartner(t, 1, "partner@example.com", 2)

	resp := env.postSigned("/api/webhook/user-signup", signupBody("jane@example.com", "partner@example.com"))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.get("/api/partners/1/commissions/summary")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var summary commissionSummaryResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &summary))
	assert.Equal(t, "120.00", summary.DirectTotal)
	assert.Equal(t, "0.00", summary.IndirectTotal)
	require.Len(t, summary.Direct, 1)
	assert.Equal(t, "jane@example.com", summary.Direct[0].Email)

	resp = env.get("/api/partners/2/commissions/summary")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &summary))
	assert.Equal(t, "60.00", summary.IndirectTotal)
	assert.Equal(t, "60.00", summary.Total)

	resp = env.get("/api/partners/1/commissions?page_size=1")
	require.Equal(t, http.StatusOK, resp.Code)
	var list listCommissionsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.Len(t, list.Entries, 1)
	assert.True(t, list.HasMore)

	resp = env.get("/api/partners/1/commissions/statement.pdf")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")))

	resp = env.get("/api/partners/99/commissions/summary")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.get("/api/partners/abc/commissions/summary")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestReferralInvites(t *testing.T) {
	env := newTestEnv(t)
	env.seedPartner(t, 1, "partner@example.com", nil)

	body := `{"full_name":"Sam O'Neil","email":"Sam@Example.com","phone":"+1 555 0100"}`
	req := httptest.NewRequest(http.MethodPost, "/api/partners/1/invites", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/partners/1/invites", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "already_invited", decodeError(t, resp).Errors[0].Code)

	resp = env.get("/api/partners/1/invites")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "sam@example.com")
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.AdminAPIKey = "ops-key" })
	env.seedPartner(t, 1, "partner@example.com", nil)
	env.seedPartner(t, 2, "child@example.com", 1)

	resp := env.get("/api/admin/overview")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.get("/api/admin/overview", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.get("/api/admin/overview", "Authorization", "Bearer ops-key")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var overview overviewResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &overview))
	assert.EqualValues(t, 2, overview.Partners)
	assert.Equal(t, "0.00", overview.CommissionMTD)

	resp = env.get("/api/admin/partners/1/referral-tree?max_level=9", "Authorization", "Bearer ops-key")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var tree referralTreeResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tree))
	require.Len(t, tree.Nodes, 1)
	assert.Equal(t, snowflake.ID(1), tree.Nodes[0].ParentID)
	assert.Equal(t, 1, tree.Nodes[0].Level)

	resp = env.get("/api/admin/webhook-deliveries?limit=5", "Authorization", "Bearer ops-key")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = env.get("/api/accounts?email=CHILD@example.com", "Authorization", "Bearer ops-key")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"email":"child@example.com"`)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get("/nope")
	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", decodeError(t, resp).Type)
}
