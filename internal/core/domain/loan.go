package domain

import "time"

// Loan is an open borrow edge: UserID currently holds one copy of ISBN.
type Loan struct {
	UserID     string
	ISBN       string
	BorrowedAt time.Time
}
