package ledger

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is one slice of the sales history.
type Page struct {
	Sales    []Sale `json:"data"`
	Page     int    `json:"current_page"`
	PageSize int    `json:"per_page"`
	Total    int    `json:"total"`
	LastPage int    `json:"last_page"`
}

// NormalizePage clamps the requested page to sane bounds.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Offset is the number of sales preceding the page.
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}

func NewPage(sales []Sale, page, pageSize, total int) Page {
	lastPage := (total + pageSize - 1) / pageSize
	if lastPage < 1 {
		lastPage = 1
	}
	if sales == nil {
		sales = []Sale{}
	}
	return Page{
		Sales:    sales,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		LastPage: lastPage,
	}
}
