package search

import "errors"

// Composition errors. A request that trips one of these never produces
// query text.
var (
	// ErrInvalidOrderBy is returned when the sort column is not an alert field
	ErrInvalidOrderBy = errors.New("invalid orderBy")

	// ErrInvalidOrder is returned when the sort direction is not asc or desc
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidPagination is returned for negative offsets or page sizes
	ErrInvalidPagination = errors.New("invalid pagination")

	// ErrInvalidGrouping is returned for an unknown time or dimension axis
	ErrInvalidGrouping = errors.New("invalid grouping")

	// ErrUnsupportedDialect is returned when no expressions exist for a dialect
	ErrUnsupportedDialect = errors.New("unsupported SQL dialect")
)

// IsCompositionError reports whether err was raised while composing a
// query rather than while executing it.
func IsCompositionError(err error) bool {
	return errors.Is(err, ErrInvalidOrderBy) ||
		errors.Is(err, ErrInvalidOrder) ||
		errors.Is(err, ErrInvalidPagination) ||
		errors.Is(err, ErrInvalidGrouping) ||
		errors.Is(err, ErrUnsupportedDialect)
}
