package domain

import "time"

type Book struct {
	ISBN      string    `json:"isbn"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BookUpdate carries the editable catalogue fields. Nil fields are left as they are.
// Quantity is not part of it; stock only moves through the inventory service.
type BookUpdate struct {
	Name     *string
	Category *string
	Price    *float64
}

func (u BookUpdate) Empty() bool {
	return u.Name == nil && u.Category == nil && u.Price == nil
}

func (u BookUpdate) Apply(b *Book) {
	if u.Name != nil {
		b.Name = *u.Name
	}
	if u.Category != nil {
		b.Category = *u.Category
	}
	if u.Price != nil {
		b.Price = *u.Price
	}
}
