package workflow

import (
	"fmt"
	"sort"

	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"gorm.io/gorm"
)

func stockLockName(itemCode string, locationCode models.LocationCode) string {
	return fmt.Sprintf("stock:%s:%s", itemCode, locationCode)
}

// AcquireStockLocks serializes posting per (item, location) across instances
// using MySQL advisory locks. Keys are acquired in sorted order so two
// postings touching overlapping pairs cannot deadlock.
// NOTE: GET_LOCK is connection-scoped and ignores transaction boundaries.
// Callers must pin a connection (gorm Connection), acquire before opening the
// posting transaction on it, and release only after the transaction returns,
// so the lock covers the COMMIT and the gate never reads a stale balance.
func AcquireStockLocks(conn *gorm.DB, pairs []models.StockKey) error {
	names := make([]string, 0, len(pairs))
	for _, p := range pairs {
		names = append(names, stockLockName(p.ItemCode, p.LocationCode))
	}
	sort.Strings(names)

	for _, lockName := range names {
		var ok int
		if err := conn.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
			return err
		}
		if ok != 1 {
			return fmt.Errorf("could not acquire stock lock %s", lockName)
		}
	}
	return nil
}

func ReleaseStockLocks(conn *gorm.DB, pairs []models.StockKey) {
	for _, p := range pairs {
		var _ok int
		_ = conn.Raw("SELECT RELEASE_LOCK(?)", stockLockName(p.ItemCode, p.LocationCode)).Scan(&_ok).Error
	}
}
