package workflow

import (
	"sort"

	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"github.com/shopspring/decimal"
)

// NetChangeByKey aggregates a posting's legs into one net movement per
// (item, location).
func NetChangeByKey(legs []models.LedgerEntry) map[models.StockKey]decimal.Decimal {
	net := make(map[models.StockKey]decimal.Decimal, len(legs))
	for i := range legs {
		key := models.StockKey{ItemCode: legs[i].ItemCode, LocationCode: legs[i].LocationCode}
		net[key] = net[key].Add(legs[i].Qty)
	}
	return net
}

// TouchedKeys returns the distinct (item, location) pairs of a posting in a
// stable order.
func TouchedKeys(legs []models.LedgerEntry) []models.StockKey {
	net := NetChangeByKey(legs)
	keys := make([]models.StockKey, 0, len(net))
	for key := range net {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ItemCode != keys[j].ItemCode {
			return keys[i].ItemCode < keys[j].ItemCode
		}
		return keys[i].LocationCode < keys[j].LocationCode
	})
	return keys
}

// CheckBalanceGate rejects the posting when any net-negative key would end
// below zero given the balances read under lock. Callers skip it entirely for
// transaction types that permit negative stock.
func CheckBalanceGate(balances map[models.StockKey]decimal.Decimal, legs []models.LedgerEntry) error {
	net := NetChangeByKey(legs)
	for _, key := range TouchedKeys(legs) {
		change := net[key]
		if !change.IsNegative() {
			continue
		}
		available := balances[key]
		if available.Add(change).IsNegative() {
			return &models.InsufficientStockError{
				ItemCode:     key.ItemCode,
				LocationCode: key.LocationCode,
				Requested:    change.Neg(),
				Available:    available,
			}
		}
	}
	return nil
}
