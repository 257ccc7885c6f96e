package config

import (
	"os"
	"strings"
)

// AllowNegativeStockFor lets named posting types bypass the insufficient-stock
// gate, on top of the always-exempt adjustment path.
//
// Set via env:
// - ALLOW_NEGATIVE_STOCK_TYPES="DISPATCH,FG_TRANSFER"
//
// Type keys are case-insensitive.
func AllowNegativeStockFor(postingType string) bool {
	postingType = strings.ToUpper(strings.TrimSpace(postingType))
	if postingType == "" {
		return false
	}
	raw := os.Getenv("ALLOW_NEGATIVE_STOCK_TYPES")
	if strings.TrimSpace(raw) == "" {
		return false
	}
	for _, part := range strings.Split(raw, ",") {
		if strings.ToUpper(strings.TrimSpace(part)) == postingType {
			return true
		}
	}
	return false
}

// DisableBalanceCache turns off the Redis stock balance cache (reads always
// hit the ledger).
//
// Set via env:
// - DISABLE_BALANCE_CACHE=true
func DisableBalanceCache() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DISABLE_BALANCE_CACHE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
