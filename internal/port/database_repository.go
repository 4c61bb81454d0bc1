package port

import (
	"context"

	"github.com/rl1809/bookshelf/internal/core/domain"
)

type BookRepository interface {
	// CreateBook fails with domain.ErrBookExists on a duplicate ISBN
	CreateBook(ctx context.Context, book domain.Book) error

	// GetBook returns domain.ErrBookNotFound when absent
	GetBook(ctx context.Context, isbn string) (*domain.Book, error)

	ListBooks(ctx context.Context) ([]domain.Book, error)

	// UpdateBook changes catalogue fields only, never quantity
	UpdateBook(ctx context.Context, isbn string, update domain.BookUpdate) error

	// DeleteBook refuses with domain.ErrBookOnLoan while loans are open
	DeleteBook(ctx context.Context, isbn string) error
}

type UserRepository interface {
	// CreateUser fails with domain.ErrUsernameTaken on a duplicate username
	CreateUser(ctx context.Context, user domain.User) error

	// GetUser returns domain.ErrUserNotFound when absent
	GetUser(ctx context.Context, id string) (*domain.User, error)

	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	ListUsers(ctx context.Context) ([]domain.User, error)

	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// DeleteUser refuses with domain.ErrUserHasLoans while loans are open
	DeleteUser(ctx context.Context, id string) error
}

// InventoryRepository runs borrow/return bookkeeping inside one transaction.
// If fn returns an error nothing it did is persisted.
type InventoryRepository interface {
	WithinTx(ctx context.Context, fn func(tx InventoryTx) error) error

	// BorrowedBooks lists the books userID currently holds
	BorrowedBooks(ctx context.Context, userID string) ([]domain.Book, error)
}

type InventoryTx interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// GetBook reads the book and, where the engine supports it, locks its row
	GetBook(ctx context.Context, isbn string) (*domain.Book, error)

	// DecrementStock atomically decreases quantity by one, returns false if it is already zero
	DecrementStock(ctx context.Context, isbn string) (bool, error)

	IncrementStock(ctx context.Context, isbn string) error

	SetStock(ctx context.Context, isbn string, quantity int) error

	HasLoan(ctx context.Context, userID, isbn string) (bool, error)

	AddLoan(ctx context.Context, loan domain.Loan) error

	// RemoveLoan deletes the edge, returns false if there was none
	RemoveLoan(ctx context.Context, userID, isbn string) (bool, error)
}
