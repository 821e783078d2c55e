package ledger

import (
	"time"

	"api_pos/internal/money"

	"github.com/google/uuid"
)

// PaymentMethod is how the customer settled a sale.
type PaymentMethod string

const (
	Cash       PaymentMethod = "cash"
	CreditCard PaymentMethod = "credit_card"
	DebitCard  PaymentMethod = "debit_card"
)

// PaymentMethods lists every accepted payment method.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{Cash, CreditCard, DebitCard}
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case Cash, CreditCard, DebitCard:
		return true
	}
	return false
}

// Sale represents a completed point-of-sale transaction. Sales are immutable once created.
type Sale struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Total         money.Cents   `json:"total"`
	Tax           money.Cents   `json:"tax"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	Items         []SaleItem    `json:"items"`
}

// SaleItem is one line of a sale. UnitPrice is the product price at the moment of sale.
type SaleItem struct {
	ID          string      `json:"id"`
	SaleID      string      `json:"sale_id"`
	ProductID   string      `json:"product_id"`
	ProductName string      `json:"product_name"`
	Quantity    int         `json:"quantity"`
	UnitPrice   money.Cents `json:"unit_price"`
	TotalPrice  money.Cents `json:"total_price"`
}

// NewItem builds a line item, computing its total from the price snapshot.
func NewItem(productID, productName string, quantity int, unitPrice money.Cents) SaleItem {
	return SaleItem{
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TotalPrice:  unitPrice.Times(quantity),
	}
}

// Subtotal is the sum of the line totals, excluding tax.
func (s Sale) Subtotal() money.Cents {
	var subtotal money.Cents
	for _, item := range s.Items {
		subtotal += item.TotalPrice
	}
	return subtotal
}

// stamp assigns identifiers and the creation time to a new sale and its items.
func stamp(sale *Sale, items []SaleItem, now time.Time) *Sale {
	created := *sale
	created.ID = uuid.NewString()
	created.CreatedAt = now
	created.Items = make([]SaleItem, len(items))
	for i, item := range items {
		item.ID = uuid.NewString()
		item.SaleID = created.ID
		created.Items[i] = item
	}
	return &created
}

// Prepare validates a new sale and returns the aggregate as it will be stored.
func Prepare(sale *Sale, items []SaleItem, now time.Time) (*Sale, error) {
	if len(items) == 0 {
		return nil, ErrEmptySale
	}
	if !sale.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	return stamp(sale, items, now.UTC()), nil
}
