package domain

import "errors"

var (
	ErrUnauthenticated   = errors.New("authentication required")
	ErrInvalidCredential = errors.New("invalid token")
	ErrInvalidLogin      = errors.New("invalid username or password")
	ErrForbidden         = errors.New("access denied")
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrBookNotFound     = errors.New("book not found")
	ErrBookExists       = errors.New("book with this ISBN already exists")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrUnknownRole      = errors.New("unknown role")
	ErrInvalidInput     = errors.New("invalid input")
	ErrBookOnLoan       = errors.New("book has open loans")
	ErrUserHasLoans     = errors.New("user has open loans")
	ErrDuplicateRequest = errors.New("duplicate request")
)

var (
	ErrOutOfStock              = errors.New("book out of stock")
	ErrAlreadyBorrowed         = errors.New("book already borrowed by user")
	ErrNoActiveBorrow          = errors.New("no active borrow for this book")
	ErrCurrentPasswordMismatch = errors.New("current password is incorrect")
)
