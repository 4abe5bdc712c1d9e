package persistence

import (
	"errors"
	"strings"

	"github.com/debtsettle/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sortColumns whitelists the columns a listing may be ordered by.
// User input never reaches the ORDER BY clause unless it is a key here.
type sortColumns map[string]struct{}

func columns(names ...string) sortColumns {
	set := make(sortColumns, len(names)+2)
	for _, n := range append([]string{"created_at", "updated_at"}, names...) {
		set[n] = struct{}{}
	}
	return set
}

var (
	debtSortColumns       = columns("due_date", "original_amount", "current_amount", "days_overdue", "status", "kind")
	instrumentSortColumns = columns("due_date", "total_amount", "installment_count", "status")
	paymentSortColumns    = columns("amount", "status", "method", "processed_at")
)

// orderBy renders the filter's ordering. Unknown columns fall back to
// created_at and anything but "asc" sorts descending; id breaks ties so
// page boundaries are stable.
func (s sortColumns) orderBy(filter shared.Filter) string {
	column := strings.TrimSpace(filter.OrderBy)
	if _, ok := s[column]; !ok {
		column = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(strings.TrimSpace(filter.OrderDir), "asc") {
		dir = "ASC"
	}
	return column + " " + dir + ", id ASC"
}

// paginate applies the filter's page window; a zero page or size lists everything.
func paginate(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}

// firstOrNil loads the first row matching conds and converts it. A missing
// row is (nil, nil); repositories report absence, services decide if it is an error.
func firstOrNil[M any, D any](query *gorm.DB, toDomain func(*M) (*D, error), conds ...any) (*D, error) {
	var model M
	err := query.First(&model, conds...).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomain(&model)
}

// deleteOne removes the row with the given id, reporting shared.ErrNotFound
// when nothing matched.
func deleteOne(db *gorm.DB, model any, id uuid.UUID) error {
	result := db.Delete(model, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
