package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/bookshelf/internal/adapter/auth"
	"github.com/rl1809/bookshelf/internal/adapter/storage"
	"github.com/rl1809/bookshelf/internal/config"
	"github.com/rl1809/bookshelf/internal/core/domain"
	"github.com/rl1809/bookshelf/internal/core/rbac"
	"github.com/rl1809/bookshelf/internal/core/service"
	"github.com/rl1809/bookshelf/internal/port"
)

var testSecret = []byte("handler-test-secret-0123456789ab")

type testEnv struct {
	store     *storage.SQLStore
	roles     *rbac.Registry
	tokens    *auth.JWTIssuer
	users     *service.UserService
	books     *service.BookService
	inventory *service.InventoryService
	authSvc   *service.AuthService
	logger    *slog.Logger
	handler   http.Handler

	admin *domain.User
	user  *domain.User
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv wires the real services over an in-memory SQLite database and
// seeds one admin and one regular user.
func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithCache(t, storage.NewLocalCache(time.Minute))
}

func newTestEnvWithCache(t *testing.T, cache port.CacheRepository) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := discardLogger()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", uuid.NewString())
	db, err := storage.Open(ctx, storage.DialectSQLite, dsn, storage.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := storage.NewSQLStore(db, storage.DialectSQLite, logger)
	require.NoError(t, store.Migrate(ctx))

	return buildEnv(t, store, cache, logger)
}

func buildEnv(t *testing.T, store *storage.SQLStore, cache port.CacheRepository, logger *slog.Logger) *testEnv {
	t.Helper()
	ctx := context.Background()

	roles, err := rbac.NewRegistry(config.DefaultRoles())
	require.NoError(t, err)

	tokens, err := auth.NewJWTIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	inventory := service.NewInventoryService(store, cache, logger)
	books := service.NewBookService(store, inventory, logger)
	users := service.NewUserService(store, roles, hasher, logger)
	authSvc, err := service.NewAuthService(store, hasher, tokens, inventory, logger)
	require.NoError(t, err)

	env := &testEnv{
		store:     store,
		roles:     roles,
		tokens:    tokens,
		users:     users,
		books:     books,
		inventory: inventory,
		authSvc:   authSvc,
		logger:    logger,
	}
	env.handler = NewHTTPHandler(books, users, authSvc, inventory, roles, logger).Routes([]string{"*"})

	env.admin, err = users.Create(ctx, "admin-"+uuid.NewString()[:8], "admin-pass", domain.RoleAdmin)
	require.NoError(t, err)
	env.user, err = users.Register(ctx, "reader-"+uuid.NewString()[:8], "reader-pass")
	require.NoError(t, err)

	return env
}

func (e *testEnv) tokenFor(t *testing.T, u *domain.User) string {
	t.Helper()
	token, err := e.tokens.Issue(domain.Identity{ID: u.ID, Role: u.Role})
	require.NoError(t, err)
	return token
}

func (e *testEnv) seedBook(t *testing.T, quantity int) domain.Book {
	t.Helper()
	book, err := e.books.Add(context.Background(), domain.Book{
		ISBN:     "isbn-" + uuid.NewString()[:8],
		Name:     "The Go Programming Language",
		Category: "programming",
		Price:    39.99,
		Quantity: quantity,
	})
	require.NoError(t, err)
	return *book
}

func (e *testEnv) quantity(t *testing.T, isbn string) int {
	t.Helper()
	book, err := e.books.Get(context.Background(), isbn)
	require.NoError(t, err)
	return book.Quantity
}

type requestOption func(*http.Request)

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[errorResponse](t, rec).Error
}

var noBookUpdate = domain.BookUpdate{}
