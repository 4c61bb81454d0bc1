package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/bookshelf/internal/core/domain"
	"github.com/rl1809/bookshelf/internal/port"
)

type loanKey struct {
	userID string
	isbn   string
}

// Mock store implementing the book, user and inventory repositories
type mockStore struct {
	mu    sync.Mutex
	users map[string]domain.User
	books map[string]domain.Book
	loans map[loanKey]domain.Loan

	failAddLoan bool
}

func newMockStore() *mockStore {
	return &mockStore{
		users: make(map[string]domain.User),
		books: make(map[string]domain.Book),
		loans: make(map[loanKey]domain.Loan),
	}
}

func (m *mockStore) addUser(id, role string) {
	m.users[id] = domain.User{ID: id, Username: id, PasswordHash: "hashed:secret", Role: role}
}

func (m *mockStore) addBook(isbn string, quantity int) {
	m.books[isbn] = domain.Book{ISBN: isbn, Name: "book " + isbn, Quantity: quantity}
}

func (m *mockStore) quantity(isbn string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.books[isbn].Quantity
}

func (m *mockStore) hasLoan(userID, isbn string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loans[loanKey{userID, isbn}]
	return ok
}

func (m *mockStore) WithinTx(ctx context.Context, fn func(tx port.InventoryTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	books := make(map[string]domain.Book, len(m.books))
	for k, v := range m.books {
		books[k] = v
	}
	loans := make(map[loanKey]domain.Loan, len(m.loans))
	for k, v := range m.loans {
		loans[k] = v
	}

	if err := fn(&mockTx{m: m}); err != nil {
		m.books = books
		m.loans = loans
		return err
	}
	return nil
}

func (m *mockStore) BorrowedBooks(ctx context.Context, userID string) ([]domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	var out []domain.Book
	for k := range m.loans {
		if k.userID == userID {
			out = append(out, m.books[k.isbn])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ISBN < out[j].ISBN })
	return out, nil
}

type mockTx struct {
	m *mockStore
}

func (t *mockTx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, ok := t.m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (t *mockTx) GetBook(ctx context.Context, isbn string) (*domain.Book, error) {
	b, ok := t.m.books[isbn]
	if !ok {
		return nil, domain.ErrBookNotFound
	}
	return &b, nil
}

func (t *mockTx) DecrementStock(ctx context.Context, isbn string) (bool, error) {
	b := t.m.books[isbn]
	if b.Quantity <= 0 {
		return false, nil
	}
	b.Quantity--
	t.m.books[isbn] = b
	return true, nil
}

func (t *mockTx) IncrementStock(ctx context.Context, isbn string) error {
	b := t.m.books[isbn]
	b.Quantity++
	t.m.books[isbn] = b
	return nil
}

func (t *mockTx) SetStock(ctx context.Context, isbn string, quantity int) error {
	b := t.m.books[isbn]
	b.Quantity = quantity
	t.m.books[isbn] = b
	return nil
}

func (t *mockTx) HasLoan(ctx context.Context, userID, isbn string) (bool, error) {
	_, ok := t.m.loans[loanKey{userID, isbn}]
	return ok, nil
}

func (t *mockTx) AddLoan(ctx context.Context, loan domain.Loan) error {
	if t.m.failAddLoan {
		return errors.New("disk full")
	}
	t.m.loans[loanKey{loan.UserID, loan.ISBN}] = loan
	return nil
}

func (t *mockTx) RemoveLoan(ctx context.Context, userID, isbn string) (bool, error) {
	k := loanKey{userID, isbn}
	if _, ok := t.m.loans[k]; !ok {
		return false, nil
	}
	delete(t.m.loans, k)
	return true, nil
}

func (m *mockStore) CreateBook(ctx context.Context, book domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[book.ISBN]; ok {
		return domain.ErrBookExists
	}
	m.books[book.ISBN] = book
	return nil
}

func (m *mockStore) GetBook(ctx context.Context, isbn string) (*domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[isbn]
	if !ok {
		return nil, domain.ErrBookNotFound
	}
	return &b, nil
}

func (m *mockStore) ListBooks(ctx context.Context) ([]domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, b)
	}
	return out, nil
}

func (m *mockStore) UpdateBook(ctx context.Context, isbn string, update domain.BookUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[isbn]
	if !ok {
		return domain.ErrBookNotFound
	}
	update.Apply(&b)
	m.books[isbn] = b
	return nil
}

func (m *mockStore) DeleteBook(ctx context.Context, isbn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[isbn]; !ok {
		return domain.ErrBookNotFound
	}
	for k := range m.loans {
		if k.isbn == isbn {
			return domain.ErrBookOnLoan
		}
	}
	delete(m.books, isbn)
	return nil
}

func (m *mockStore) CreateUser(ctx context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return domain.ErrUsernameTaken
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *mockStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *mockStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	for k := range m.loans {
		if k.userID == id {
			return domain.ErrUserHasLoans
		}
	}
	delete(m.users, id)
	return nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	locks          map[string]*sync.Mutex
	idempotencySet map[string]bool
	lockErr        error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		locks:          make(map[string]*sync.Mutex),
		idempotencySet: make(map[string]bool),
	}
}

func (c *mockCacheRepo) Lock(ctx context.Context, key string) (func(), error) {
	if c.lockErr != nil {
		return nil, c.lockErr
	}
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	c.mu.Unlock()
	l.Lock()
	return l.Unlock, nil
}

func (c *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.idempotencySet[key] {
		return false, nil
	}
	c.idempotencySet[key] = true
	return true, nil
}

func (c *mockCacheRepo) ClearIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.idempotencySet, key)
	return nil
}

type mockHasher struct{}

func (mockHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (mockHasher) Compare(hash, password string) bool {
	return hash == "hashed:"+password
}

type mockTokens struct{}

func (mockTokens) Issue(id domain.Identity) (string, error) {
	return id.ID + "|" + id.Role, nil
}

func (mockTokens) Verify(token string) (domain.Identity, error) {
	id, role, ok := strings.Cut(token, "|")
	if !ok {
		return domain.Identity{}, errors.New("malformed token")
	}
	return domain.Identity{ID: id, Role: role}, nil
}

func (mockTokens) TTL() time.Duration {
	return time.Hour
}
