package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/config"
	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
)

// ledger-rebuild recomputes the Redis balance cache from the ledger. Run it
// after manual data fixes or a cache flush; the ledger itself is never
// touched.
func main() {
	itemCode := flag.String("item-code", "", "Optional: rebuild only one item code. If empty, rebuilds every item in the ledger.")
	flush := flag.Bool("flush", false, "Drop the whole Redis cache before rebuilding.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	if *flush {
		if err := config.ClearRedis(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush redis: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("redis cache flushed")
	}

	var keys []models.StockKey
	query := db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Distinct("item_code", "location_code")
	if strings.TrimSpace(*itemCode) != "" {
		query = query.Where("item_code = ?", strings.TrimSpace(*itemCode))
	}
	if err := query.Find(&keys).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list ledger keys: %v\n", err)
		os.Exit(1)
	}
	if len(keys) == 0 {
		fmt.Fprintln(os.Stderr, "no ledger entries found to rebuild")
		return
	}

	start := time.Now()
	var rebuilt int
	for _, key := range keys {
		balance, err := models.BalanceAsOf(ctx, key.ItemCode, key.LocationCode, time.Now().UTC())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to compute balance for %s at %s: %v\n", key.ItemCode, key.LocationCode, err)
			os.Exit(1)
		}
		if err := utils.SetCachedBalance(key.ItemCode, string(key.LocationCode), balance); err != nil {
			fmt.Fprintf(os.Stderr, "failed to cache balance for %s at %s: %v\n", key.ItemCode, key.LocationCode, err)
			os.Exit(1)
		}
		rebuilt++
	}

	fmt.Printf("rebuilt %d balances in %s\n", rebuilt, time.Since(start).Round(time.Millisecond))
}
