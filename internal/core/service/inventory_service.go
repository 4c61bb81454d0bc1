package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rl1809/bookshelf/internal/core/domain"
	"github.com/rl1809/bookshelf/internal/port"
)

// InventoryService is the only writer of book quantities and loans.
//
// Every mutation of a book's stock runs under that book's lock and inside a
// single repository transaction. The repository's conditional decrement is
// what finally guarantees quantity never drops below zero; the lock keeps
// concurrent borrowers of the same book from contending on the row.
type InventoryService struct {
	repo   port.InventoryRepository
	cache  port.CacheRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewInventoryService(repo port.InventoryRepository, cache port.CacheRepository, logger *slog.Logger) *InventoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InventoryService{
		repo:   repo,
		cache:  cache,
		logger: logger.With("component", "inventory"),
		now:    time.Now,
	}
}

func bookLockKey(isbn string) string {
	return "lock:book:" + isbn
}

// Borrow hands one copy of isbn to userID. A non-empty requestID makes the
// call idempotent: replays fail with domain.ErrDuplicateRequest.
func (s *InventoryService) Borrow(ctx context.Context, userID, isbn, requestID string) (err error) {
	if userID == "" || isbn == "" {
		return fmt.Errorf("%w: user id and isbn are required", domain.ErrInvalidInput)
	}

	if requestID != "" {
		idempotencyKey := fmt.Sprintf("borrow:%s:%s:%s", userID, isbn, requestID)
		ok, setErr := s.cache.SetIdempotency(ctx, idempotencyKey)
		if setErr != nil {
			return fmt.Errorf("idempotency check failed: %w", setErr)
		}
		if !ok {
			return domain.ErrDuplicateRequest
		}
		defer func() {
			if err == nil {
				return
			}
			if clearErr := s.cache.ClearIdempotency(context.WithoutCancel(ctx), idempotencyKey); clearErr != nil {
				s.logger.Warn("failed to clear idempotency key", "key", idempotencyKey, "error", clearErr)
			}
		}()
	}

	unlock, err := s.cache.Lock(ctx, bookLockKey(isbn))
	if err != nil {
		return fmt.Errorf("lock book %s: %w", isbn, err)
	}
	defer unlock()

	var remaining int
	err = s.repo.WithinTx(ctx, func(tx port.InventoryTx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		book, err := tx.GetBook(ctx, isbn)
		if err != nil {
			return err
		}

		held, err := tx.HasLoan(ctx, userID, isbn)
		if err != nil {
			return err
		}
		if held {
			return domain.ErrAlreadyBorrowed
		}
		if book.Quantity <= 0 {
			return domain.ErrOutOfStock
		}

		ok, err := tx.DecrementStock(ctx, isbn)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrOutOfStock
		}

		remaining = book.Quantity - 1
		return tx.AddLoan(ctx, domain.Loan{
			UserID:     userID,
			ISBN:       isbn,
			BorrowedAt: s.now(),
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("book borrowed", "user_id", userID, "isbn", isbn, "remaining", remaining)
	return nil
}

// Return gives back the copy of isbn held by userID. Without an open loan it
// fails with domain.ErrNoActiveBorrow and changes nothing.
func (s *InventoryService) Return(ctx context.Context, userID, isbn string) error {
	if userID == "" || isbn == "" {
		return fmt.Errorf("%w: user id and isbn are required", domain.ErrInvalidInput)
	}

	unlock, err := s.cache.Lock(ctx, bookLockKey(isbn))
	if err != nil {
		return fmt.Errorf("lock book %s: %w", isbn, err)
	}
	defer unlock()

	var remaining int
	err = s.repo.WithinTx(ctx, func(tx port.InventoryTx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		book, err := tx.GetBook(ctx, isbn)
		if err != nil {
			return err
		}

		removed, err := tx.RemoveLoan(ctx, userID, isbn)
		if err != nil {
			return err
		}
		if !removed {
			return domain.ErrNoActiveBorrow
		}

		remaining = book.Quantity + 1
		return tx.IncrementStock(ctx, isbn)
	})
	if err != nil {
		return err
	}

	s.logger.Info("book returned", "user_id", userID, "isbn", isbn, "remaining", remaining)
	return nil
}

// SetStock overwrites the number of copies available for lending.
func (s *InventoryService) SetStock(ctx context.Context, isbn string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", domain.ErrInvalidInput)
	}

	unlock, err := s.cache.Lock(ctx, bookLockKey(isbn))
	if err != nil {
		return fmt.Errorf("lock book %s: %w", isbn, err)
	}
	defer unlock()

	err = s.repo.WithinTx(ctx, func(tx port.InventoryTx) error {
		if _, err := tx.GetBook(ctx, isbn); err != nil {
			return err
		}
		return tx.SetStock(ctx, isbn, quantity)
	})
	if err != nil {
		return err
	}

	s.logger.Info("stock set", "isbn", isbn, "quantity", quantity)
	return nil
}

func (s *InventoryService) BorrowedBooks(ctx context.Context, userID string) ([]domain.Book, error) {
	books, err := s.repo.BorrowedBooks(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("list borrowed books: %w", err)
	}
	return books, nil
}
