package usecase

import (
	"errors"

	"CoinPull/internal/domain/models"
)

// errorKind maps an error to the low-cardinality label used in metrics.
func errorKind(err error) string {
	var authErr *models.AuthError
	var fetchErr *models.FetchError
	switch {
	case err == nil:
		return ""
	case models.IsCancelled(err):
		return "cancelled"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.Is(err, models.ErrNotInitialized):
		return "store"
	default:
		return "other"
	}
}
