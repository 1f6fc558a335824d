package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arthurmvo/Coffee-Shop/app"
	"github.com/arthurmvo/Coffee-Shop/authz"
	"github.com/arthurmvo/Coffee-Shop/authz/authztest"
	"github.com/arthurmvo/Coffee-Shop/config"
	"github.com/arthurmvo/Coffee-Shop/repositories/sqldb"
)

const latteRecipe = `[{"name":"milk","color":"white","parts":3},{"name":"espresso","color":"brown","parts":1}]`

type testServer struct {
	handler http.Handler
	mock    sqlmock.Sqlmock
	signer  *authztest.Signer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	db := sqldb.NewDBFromConn(sqlDB, config.DriverPostgres, logger)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS drinks").WillReturnResult(sqlmock.NewResult(0, 0))

	signer := authztest.NewSigner(t, "kid1")
	deps, err := app.NewDependencies(context.Background(), testConfig(), logger,
		app.WithDB(db), app.WithKeySource(authz.NewStaticKeySource(authztest.KeySet(signer))))
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.ExpectClose()
		_ = deps.Close(context.Background())
	})

	return &testServer{handler: SetupRoutes(deps), mock: mock, signer: signer}
}

func (s *testServer) do(t *testing.T, method, path, body string, permissions ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if permissions != nil {
		req.Header.Set("Authorization", "Bearer "+s.signer.Sign(t, authztest.Claims(permissions...)))
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func drinkRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "title", "recipe", "created_at", "updated_at"}).
		AddRow(1, "latte", latteRecipe, now, now)
}

func TestPublicDrinkList(t *testing.T) {
	s := newTestServer(t)
	s.mock.ExpectQuery("FROM drinks").WillReturnRows(drinkRows())

	rec := s.do(t, http.MethodGet, "/drinks", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"drinks":[{"id":1,"title":"latte","recipe":[{"color":"white","parts":3},{"color":"brown","parts":1}]}]}`,
		rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestDrinksDetail(t *testing.T) {
	s := newTestServer(t)
	s.mock.ExpectQuery("FROM drinks").WillReturnRows(drinkRows())

	rec := s.do(t, http.MethodGet, "/drinks-detail", "", PermGetDrinksDetail)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"drinks":[{"id":1,"title":"latte","recipe":`+latteRecipe+`}]}`, rec.Body.String())
}

func TestGuardedRoutes_RejectWithoutPermission(t *testing.T) {
	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/drinks-detail", ""},
		{http.MethodPost, "/drinks", `{"title":"latte","recipe":[{"name":"milk","color":"white","parts":1}]}`},
		{http.MethodPatch, "/drinks/1", `{"title":"flat white"}`},
		{http.MethodDelete, "/drinks/1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, float64(http.StatusUnauthorized), body["error"])
			assert.Equal(t, "authorization header is expected", body["message"])

			// A valid token carrying other permissions is forbidden
			rec = s.do(t, tt.method, tt.path, tt.body, "get:drinks")
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, float64(http.StatusForbidden), decode(t, rec)["error"])

			// Nothing reached the database
			assert.NoError(t, s.mock.ExpectationsWereMet())
		})
	}
}

func TestCreateDrink(t *testing.T) {
	s := newTestServer(t)
	s.mock.ExpectQuery("INSERT INTO drinks").
		WithArgs("latte", latteRecipe, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	rec := s.do(t, http.MethodPost, "/drinks", `{"title":"latte","recipe":`+latteRecipe+`}`, PermPostDrinks)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"drinks":[{"id":2,"title":"latte","recipe":`+latteRecipe+`}]}`, rec.Body.String())
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestCreateDrink_InvalidBody(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/drinks", `{"title":""}`, PermPostDrinks)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/drinks", `not json`, PermPostDrinks)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateDrink_UnknownID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPatch, "/drinks/latte", `{"title":"flat white"}`, PermPatchDrinks)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "resource not found", decode(t, rec)["message"])
}

func TestDeleteDrink(t *testing.T) {
	s := newTestServer(t)
	s.mock.ExpectExec("DELETE FROM drinks").WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))

	rec := s.do(t, http.MethodDelete, "/drinks/3", "", PermDeleteDrinks)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"delete":3}`, rec.Body.String())
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestDeleteDrink_Missing(t *testing.T) {
	s := newTestServer(t)
	s.mock.ExpectExec("DELETE FROM drinks").WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))

	rec := s.do(t, http.MethodDelete, "/drinks/9", "", PermDeleteDrinks)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFallbackHandlers(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/coffee", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":404,"message":"resource not found"}`, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/drinks", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, float64(http.StatusMethodNotAllowed), decode(t, rec)["error"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])

	s.mock.ExpectQuery("FROM drinks").WillReturnRows(drinkRows())
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/drinks-detail", "", PermGetDrinksDetail).Code)

	rec = s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "authz_decisions")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/drinks", nil)
	req.Header.Set("Origin", "https://menu.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
		},
		Database: config.DatabaseConfig{Driver: config.DriverPostgres},
		Auth: config.AuthConfig{
			Issuer:            authztest.Issuer,
			Audience:          authztest.Audience,
			Algorithms:        []string{"RS256"},
			PermissionsClaim:  authz.DefaultPermissionsClaim,
			KeyRefreshTimeout: time.Second,
		},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
			MaxAge:         300,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:       "debug",
			LogFormat:      "json",
			MetricsEnabled: true,
			MetricsPath:    "/metrics",
		},
	}
}
