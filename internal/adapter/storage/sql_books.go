package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rl1809/bookshelf/internal/core/domain"
)

func (s *SQLStore) CreateBook(ctx context.Context, book domain.Book) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO books (`+bookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		book.ISBN, book.Name, book.Category, book.Price, book.Quantity,
		toMillis(book.CreatedAt), toMillis(book.UpdatedAt),
	)
	if isDuplicateKey(err) {
		return domain.ErrBookExists
	}
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (s *SQLStore) GetBook(ctx context.Context, isbn string) (*domain.Book, error) {
	return getBook(ctx, s.db, isbn, "")
}

func (s *SQLStore) ListBooks(ctx context.Context) ([]domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY isbn`)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	books := []domain.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

func (s *SQLStore) UpdateBook(ctx context.Context, isbn string, update domain.BookUpdate) error {
	var sets []string
	var args []any
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *update.Category)
	}
	if update.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *update.Price)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, toMillis(s.now()), isbn)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getBook(ctx, tx, isbn, s.dialect.forUpdate()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE books SET `+strings.Join(sets, ", ")+` WHERE isbn = ?`, args...)
		if err != nil {
			return fmt.Errorf("update book: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) DeleteBook(ctx context.Context, isbn string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getBook(ctx, tx, isbn, s.dialect.forUpdate()); err != nil {
			return err
		}
		n, err := countLoans(ctx, tx, "isbn", isbn)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrBookOnLoan
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE isbn = ?`, isbn); err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		return nil
	})
}
