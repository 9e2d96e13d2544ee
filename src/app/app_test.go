package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tradeexecutor/src/connectors"
	"tradeexecutor/src/database"
	"tradeexecutor/src/gateway"
	"tradeexecutor/src/security"
	"tradeexecutor/src/server"
)

type stubBroker struct {
	gateway.Gateway
	closed int
}

func (s *stubBroker) Close() error {
	s.closed++
	return nil
}

func (s *stubBroker) TodayOrders(ctx context.Context, symbol string) ([]gateway.Order, error) {
	return nil, nil
}

func TestLongportCredentials(t *testing.T) {
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", base64.StdEncoding.EncodeToString([]byte(strings.Repeat("c", 32))))

	sealed, err := security.EncryptString("enc-secret")
	require.NoError(t, err)

	key, secret, token, err := LongportCredentials(connectors.Config{
		LongportAppKey:       "plain-key",
		LongportAppSecret:    "plain-secret",
		LongportAppSecretEnc: sealed,
		LongportAccessToken:  "plain-token",
	})
	require.NoError(t, err)
	assert.Equal(t, "plain-key", key)
	assert.Equal(t, "enc-secret", secret, "encrypted value wins")
	assert.Equal(t, "plain-token", token)

	_, _, _, err = LongportCredentials(connectors.Config{LongportAccessTokenEnc: "garbage"})
	assert.ErrorIs(t, err, security.ErrInvalidCiphertext)
}

func TestNewWiresStack(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.Models()...))

	broker := &stubBroker{}
	old := newBrokerClient
	t.Cleanup(func() { newBrokerClient = old })
	newBrokerClient = func(appKey, appSecret, accessToken string) (BrokerClient, error) {
		assert.Equal(t, "k", appKey)
		return broker, nil
	}

	t.Setenv("LONGPORT_APP_KEY", "k")
	t.Setenv("LONGPORT_APP_SECRET", "s")
	t.Setenv("LONGPORT_ACCESS_TOKEN", "t")

	a, err := New(db, nil)
	require.NoError(t, err)

	require.NotNil(t, a.Executor)
	require.NotNil(t, a.Loop)
	require.NoError(t, a.Push.Subscribe(context.Background()), "no push capability leaves polling only")

	_, err = a.Loop.RunOnce(context.Background())
	require.NoError(t, err)

	router := server.NewRouter(a.Routes(&server.Config{SnapshotStaleAfter: time.Minute}))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/execution-orders", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/execution-orders/701/logs", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/strategies/7/instances", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"OK"`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"symbol":"AAPL.US","side":"Buy"}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, "missing order type and quantity")

	a.Close()
	assert.Equal(t, 1, broker.closed)
}

func TestNewWithoutDatabase(t *testing.T) {
	old := database.MainDB
	t.Cleanup(func() { database.MainDB = old })
	database.MainDB = nil

	_, err := New(nil, nil)
	assert.Error(t, err)
}
