package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rl1809/bookshelf/internal/core/domain"
	"github.com/rl1809/bookshelf/internal/port"
)

type BookService struct {
	books     port.BookRepository
	inventory *InventoryService
	logger    *slog.Logger
	now       func() time.Time
}

func NewBookService(books port.BookRepository, inventory *InventoryService, logger *slog.Logger) *BookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookService{
		books:     books,
		inventory: inventory,
		logger:    logger.With("component", "books"),
		now:       time.Now,
	}
}

func (s *BookService) List(ctx context.Context) ([]domain.Book, error) {
	return s.books.ListBooks(ctx)
}

func (s *BookService) Get(ctx context.Context, isbn string) (*domain.Book, error) {
	return s.books.GetBook(ctx, isbn)
}

func (s *BookService) Add(ctx context.Context, book domain.Book) (*domain.Book, error) {
	book.ISBN = strings.TrimSpace(book.ISBN)
	book.Name = strings.TrimSpace(book.Name)
	if book.ISBN == "" || book.Name == "" {
		return nil, fmt.Errorf("%w: isbn and name are required", domain.ErrInvalidInput)
	}
	if book.Price < 0 || book.Quantity < 0 {
		return nil, fmt.Errorf("%w: price and quantity must not be negative", domain.ErrInvalidInput)
	}

	now := s.now()
	book.CreatedAt = now
	book.UpdatedAt = now
	if err := s.books.CreateBook(ctx, book); err != nil {
		return nil, err
	}

	s.logger.Info("book added", "isbn", book.ISBN, "quantity", book.Quantity)
	return &book, nil
}

// Update edits catalogue fields and, when quantity is set, the stock level.
// Stock changes are delegated to the inventory service. All input is checked
// before the first write so a rejected update changes nothing.
func (s *BookService) Update(ctx context.Context, isbn string, update domain.BookUpdate, quantity *int) error {
	if update.Empty() && quantity == nil {
		return fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}
	if update.Price != nil && *update.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", domain.ErrInvalidInput)
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", domain.ErrInvalidInput)
	}
	if quantity != nil && *quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", domain.ErrInvalidInput)
	}

	if !update.Empty() {
		if err := s.books.UpdateBook(ctx, isbn, update); err != nil {
			return err
		}
	}
	if quantity != nil {
		if err := s.inventory.SetStock(ctx, isbn, *quantity); err != nil {
			return err
		}
	}

	s.logger.Info("book updated", "isbn", isbn)
	return nil
}

func (s *BookService) Delete(ctx context.Context, isbn string) error {
	if err := s.books.DeleteBook(ctx, isbn); err != nil {
		return err
	}
	s.logger.Info("book deleted", "isbn", isbn)
	return nil
}
