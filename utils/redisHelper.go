package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/config"
	"github.com/shopspring/decimal"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

func balanceCacheKey(itemCode string, locationCode string) string {
	return fmt.Sprintf("StockBalance:%s:%s", itemCode, locationCode)
}

// GetCachedBalance returns the cached current balance for (item, location).
// A cache miss is not an error; callers fall back to the ledger sum.
func GetCachedBalance(itemCode string, locationCode string) (decimal.Decimal, bool, error) {
	val, found, err := config.GetRedisValue(balanceCacheKey(itemCode, locationCode))
	if err != nil || !found {
		return decimal.Zero, false, err
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		// Corrupt cache entry: drop it and treat as a miss.
		_ = config.RemoveRedisKey(balanceCacheKey(itemCode, locationCode))
		return decimal.Zero, false, nil
	}
	return d, true, nil
}

func SetCachedBalance(itemCode string, locationCode string, balance decimal.Decimal) error {
	return config.SetRedisValue(balanceCacheKey(itemCode, locationCode), balance.String(), GetCacheLifespan())
}

// InvalidateBalanceCache removes cached balances for every touched
// (item, location) pair. Called after a posting/reversal commit; the next
// read repopulates from the ledger.
func InvalidateBalanceCache(pairs [][2]string) error {
	if len(pairs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, balanceCacheKey(p[0], p[1]))
	}
	return config.RemoveRedisKey(keys...)
}
