package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/notefolio/backend/src/logger"
)

const (
	// Long-lived caches for full calculation results
	ckTransactions = "res_transactions_user_%d"
	ckOpenLots     = "res_open_lots_user_%d"
	ckCapitalGains = "res_capital_gains_user_%d_fy_%d"

	// Short-lived, aggregate cache
	ckAvailableYears = "agg_available_years_user_%d"

	ckQuote = "quote_%s|%s|%s"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// NewReportCache builds the cache shared by the upload and gains services.
func NewReportCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		ttl = DefaultCacheExpiration
	}
	return cache.New(ttl, CacheCleanupInterval)
}

// scope maps the optional user to the key used in caches and logs. 0 is the
// shared, user-less history.
func scope(userID *int64) int64 {
	if userID == nil {
		return 0
	}
	return *userID
}

// invalidateUserCache clears all cached data for a user, forcing a complete
// rebuild on the next request. The user-less view spans every user, so it is
// cleared too.
func invalidateUserCache(c *cache.Cache, userID *int64) {
	ids := []int64{scope(userID)}
	if ids[0] != 0 {
		ids = append(ids, 0)
	}
	for _, id := range ids {
		keysToDelete := []string{
			fmt.Sprintf(ckTransactions, id),
			fmt.Sprintf(ckOpenLots, id),
			fmt.Sprintf(ckAvailableYears, id),
		}
		for _, key := range keysToDelete {
			c.Delete(key)
		}
		gainsPrefix := fmt.Sprintf("res_capital_gains_user_%d_fy_", id)
		for key := range c.Items() {
			if strings.HasPrefix(key, gainsPrefix) {
				c.Delete(key)
			}
		}
	}
	logger.L.Info("Invalidated all caches for user", "userID", scope(userID))
}
