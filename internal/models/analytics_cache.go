package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnalyticsCache memoizes one computed analytics result. Rows are always
// overwritten wholesale on recomputation, never patched in place. The
// IncludePlatformUsers flag distinguishes the two variants of every result.
type AnalyticsCache struct {
	ID                   uint           `json:"id" gorm:"primaryKey"`
	CacheKey             string         `json:"cacheKey" gorm:"not null;uniqueIndex:idx_analytics_key_variant"`
	IncludePlatformUsers bool           `json:"includePlatformUsers" gorm:"not null;uniqueIndex:idx_analytics_key_variant"`
	Result               datatypes.JSON `json:"result"`
	Timestamp            time.Time      `json:"timestamp"`
}

func (AnalyticsCache) TableName() string {
	return "analytics_caches"
}
