package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/nexcard/nexcard/internal/auth"
	"github.com/nexcard/nexcard/internal/database/testutil"
	"github.com/nexcard/nexcard/internal/middleware"
	"github.com/nexcard/nexcard/internal/services"
	"github.com/nexcard/nexcard/pkg/mail"
)

type stubMailer struct{}

func (stubMailer) Send(ctx context.Context, msg mail.Message) error { return nil }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "router-test-secret", Issuer: "nexcard"})
	require.NoError(t, err)

	codes, err := services.NewCodeService(db, services.WithCodeBaseURL("https://nexcard.test"))
	require.NoError(t, err)

	resolver, err := services.NewResolverService(db, codes)
	require.NoError(t, err)

	scans, err := services.NewScanRecorder(db)
	require.NoError(t, err)
	t.Cleanup(scans.Close)

	invitations, err := services.NewInvitationService(db, stubMailer{}, resolver)
	require.NoError(t, err)

	connections, err := services.NewConnectionService(db, resolver)
	require.NoError(t, err)

	profiles, err := services.NewProfileService(db)
	require.NoError(t, err)

	accounts, err := services.NewAccountService(db, invitations)
	require.NoError(t, err)

	router, err := NewRouter(Dependencies{
		Codes:       codes,
		Resolver:    resolver,
		Scans:       scans,
		Invitations: invitations,
		Connections: connections,
		Profiles:    profiles,
		Accounts:    accounts,
		JWT:         jwtSvc,
		RateStore:   middleware.NewMemoryRateStore(),
	})
	require.NoError(t, err)

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, router *gin.Engine, username, email string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    email,
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var auth struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	require.NotEmpty(t, auth.Token)
	return auth.Token
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticatedRoutesRejectMissingToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/codes", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterLoginAndMe(t *testing.T) {
	router := newTestRouter(t)

	token := registerUser(t, router, "ada", "ada@example.com")

	rec := doJSON(t, router, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "ada@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "ada@example.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCodeLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := registerUser(t, router, "grace", "grace@example.com")

	// New accounts stay private until visibility is switched on.
	rec := doJSON(t, router, http.MethodPut, "/api/profile/visibility", token, gin.H{
		"public_enabled": true,
		"allow_bio":      true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/codes", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var issued struct {
		Code      string `json:"code"`
		PublicURL string `json:"public_profile_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &issued))
	require.NotEmpty(t, issued.Code)
	require.Contains(t, issued.PublicURL, issued.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/public/profile/"+issued.Code, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/public/profile/nosuchcode", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/codes/qr?size=128", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = doJSON(t, router, http.MethodDelete, "/api/codes", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/public/profile/"+issued.Code, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConnectionRequestOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	ownerToken := registerUser(t, router, "owner", "owner@example.com")
	visitorToken := registerUser(t, router, "visitor", "visitor@example.com")

	rec := doJSON(t, router, http.MethodPut, "/api/profile/visibility", ownerToken, gin.H{
		"public_enabled": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/codes", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	var issued struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &issued))

	rec = doJSON(t, router, http.MethodPost, "/api/requests", visitorToken, gin.H{
		"code":    issued.Code,
		"message": "met at the conference",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var reqEnv envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reqEnv))
	var submitted struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(reqEnv.Data, &submitted))
	require.NotEmpty(t, submitted.ID)

	rec = doJSON(t, router, http.MethodPost, "/api/requests/"+submitted.ID+"/respond", ownerToken, gin.H{
		"accept": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/connections", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var listEnv envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listEnv))
	var contacts []json.RawMessage
	require.NoError(t, json.Unmarshal(listEnv.Data, &contacts))
	require.Len(t, contacts, 1)
}
