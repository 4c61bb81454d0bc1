package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/bookshelf/internal/core/domain"
)

func newBookFixture() (*BookService, *mockStore) {
	store := newMockStore()
	inventory := NewInventoryService(store, newMockCacheRepo(), nil)
	return NewBookService(store, inventory, nil), store
}

func TestAddBook(t *testing.T) {
	svc, _ := newBookFixture()

	book, err := svc.Add(context.Background(), domain.Book{ISBN: " 111 ", Name: "Dune", Price: 9.5, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, "111", book.ISBN)
	assert.False(t, book.CreatedAt.IsZero())

	_, err = svc.Add(context.Background(), domain.Book{ISBN: "111", Name: "Dune"})
	assert.ErrorIs(t, err, domain.ErrBookExists)

	_, err = svc.Add(context.Background(), domain.Book{ISBN: "222", Name: "Neg", Quantity: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Add(context.Background(), domain.Book{Name: "No isbn"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateBook(t *testing.T) {
	svc, store := newBookFixture()
	store.addBook("111", 1)

	name := "New name"
	qty := 4
	require.NoError(t, svc.Update(context.Background(), "111", domain.BookUpdate{Name: &name}, &qty))
	assert.Equal(t, "New name", store.books["111"].Name)
	assert.Equal(t, 4, store.books["111"].Quantity)

	assert.ErrorIs(t, svc.Update(context.Background(), "111", domain.BookUpdate{}, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.Update(context.Background(), "999", domain.BookUpdate{Name: &name}, nil), domain.ErrBookNotFound)

	price := -1.0
	assert.ErrorIs(t, svc.Update(context.Background(), "111", domain.BookUpdate{Price: &price}, nil), domain.ErrInvalidInput)
}

func TestUpdateBook_RejectedQuantityKeepsFields(t *testing.T) {
	svc, store := newBookFixture()
	store.addBook("111", 3)

	name := "Clobbered"
	negative := -1
	err := svc.Update(context.Background(), "111", domain.BookUpdate{Name: &name}, &negative)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, "book 111", store.books["111"].Name)
	assert.Equal(t, 3, store.quantity("111"))
}

func TestDeleteBook(t *testing.T) {
	svc, store := newBookFixture()
	store.addBook("111", 1)
	store.loans[loanKey{"user-1", "111"}] = domain.Loan{UserID: "user-1", ISBN: "111"}

	assert.ErrorIs(t, svc.Delete(context.Background(), "111"), domain.ErrBookOnLoan)
	delete(store.loans, loanKey{"user-1", "111"})
	require.NoError(t, svc.Delete(context.Background(), "111"))
	assert.ErrorIs(t, svc.Delete(context.Background(), "111"), domain.ErrBookNotFound)
}
