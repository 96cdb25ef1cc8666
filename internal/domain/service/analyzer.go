package service

import (
	"time"

	"CoinPull/internal/domain/models"
)

// MoverAnalyzer ranks assets by price change over a trailing window of a snapshot.
type MoverAnalyzer interface {
	TopMovers(snapshot models.Snapshot, window time.Duration, limit int) []models.MoverRow
}
