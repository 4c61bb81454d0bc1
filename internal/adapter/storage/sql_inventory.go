package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rl1809/bookshelf/internal/core/domain"
	"github.com/rl1809/bookshelf/internal/port"
)

func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx port.InventoryTx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqlInventoryTx{tx: tx, dialect: s.dialect, now: func() int64 { return toMillis(s.now()) }})
	})
}

func (s *SQLStore) BorrowedBooks(ctx context.Context, userID string) ([]domain.Book, error) {
	if _, err := getUser(ctx, s.db, userID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.isbn, b.name, b.category, b.price, b.quantity, b.created_at, b.updated_at
		FROM loans l JOIN books b ON b.isbn = l.isbn
		WHERE l.user_id = ?
		ORDER BY b.isbn`, userID)
	if err != nil {
		return nil, fmt.Errorf("query borrowed books: %w", err)
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

type sqlInventoryTx struct {
	tx      *sql.Tx
	dialect Dialect
	now     func() int64
}

func (t *sqlInventoryTx) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return getUser(ctx, t.tx, id)
}

func (t *sqlInventoryTx) GetBook(ctx context.Context, isbn string) (*domain.Book, error) {
	return getBook(ctx, t.tx, isbn, t.dialect.forUpdate())
}

func (t *sqlInventoryTx) DecrementStock(ctx context.Context, isbn string) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE books
		SET quantity = quantity - 1, updated_at = ?
		WHERE isbn = ? AND quantity > 0`,
		t.now(), isbn,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return rows == 1, nil
}

func (t *sqlInventoryTx) IncrementStock(ctx context.Context, isbn string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE books SET quantity = quantity + 1, updated_at = ? WHERE isbn = ?`,
		t.now(), isbn,
	)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	return nil
}

func (t *sqlInventoryTx) SetStock(ctx context.Context, isbn string, quantity int) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE books SET quantity = ?, updated_at = ? WHERE isbn = ?`,
		quantity, t.now(), isbn,
	)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return nil
}

func (t *sqlInventoryTx) HasLoan(ctx context.Context, userID, isbn string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM loans WHERE user_id = ? AND isbn = ?`, userID, isbn,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query loan: %w", err)
	}
	return n > 0, nil
}

func (t *sqlInventoryTx) AddLoan(ctx context.Context, loan domain.Loan) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO loans (user_id, isbn, borrowed_at) VALUES (?, ?, ?)`,
		loan.UserID, loan.ISBN, toMillis(loan.BorrowedAt),
	)
	if isDuplicateKey(err) {
		return domain.ErrAlreadyBorrowed
	}
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (t *sqlInventoryTx) RemoveLoan(ctx context.Context, userID, isbn string) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		DELETE FROM loans WHERE user_id = ? AND isbn = ?`, userID, isbn,
	)
	if err != nil {
		return false, fmt.Errorf("delete loan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete loan: %w", err)
	}
	return rows == 1, nil
}
