package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/config"
	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Balances are never stored authoritatively; they are the running sum of the
// ledger. Reversal pairs cancel themselves out, so the sum needs no
// voided-entry filter.

// StockKey identifies one (item, location) balance.
type StockKey struct {
	ItemCode     string       `json:"item_code"`
	LocationCode LocationCode `json:"location_code"`
}

const balanceAsOfSql = `
SELECT COALESCE(SUM(le.qty), 0)
FROM ledger_entries le
WHERE le.item_code = @itemCode
  AND le.location_code = @locationCode
  AND le.entry_date <= @asOf
`

// BalanceAsOf computes the point-in-time balance of (item, location) from
// the ledger.
func BalanceAsOf(ctx context.Context, itemCode string, locationCode LocationCode, asOf time.Time) (decimal.Decimal, error) {
	db := config.GetDB()
	return balanceAsOfTx(db.WithContext(ctx), itemCode, locationCode, asOf)
}

func balanceAsOfTx(tx *gorm.DB, itemCode string, locationCode LocationCode, asOf time.Time) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.Raw(balanceAsOfSql, map[string]interface{}{
		"itemCode":     itemCode,
		"locationCode": locationCode,
		"asOf":         asOf,
	}).Scan(&balance).Error
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// CurrentBalance is the read-through cached variant of BalanceAsOf(now).
// A cache failure degrades to a ledger read, never to an error.
func CurrentBalance(ctx context.Context, itemCode string, locationCode LocationCode) (decimal.Decimal, error) {
	if !config.DisableBalanceCache() {
		if cached, found, err := utils.GetCachedBalance(itemCode, string(locationCode)); err == nil && found {
			return cached, nil
		}
	}

	balance, err := BalanceAsOf(ctx, itemCode, locationCode, time.Now().UTC())
	if err != nil {
		return decimal.Zero, err
	}
	if !config.DisableBalanceCache() {
		if err := utils.SetCachedBalance(itemCode, string(locationCode), balance); err != nil {
			config.LogError(config.GetLogger(), "models", "CurrentBalance", "cache write", itemCode, err)
		}
	}
	return balance, nil
}

// BalanceInTx reads the full ledger sum inside the caller's transaction,
// after the posting advisory locks are held. The cache is never consulted
// here.
func BalanceInTx(tx *gorm.DB, itemCode string, locationCode LocationCode) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.Raw(
		`SELECT COALESCE(SUM(qty), 0) FROM ledger_entries WHERE item_code = ? AND location_code = ?`,
		itemCode, locationCode,
	).Scan(&balance).Error
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// LedgerFilter narrows a ledger range query. Zero values mean "no filter".
type LedgerFilter struct {
	ItemCode     string       `json:"item_code"`
	LocationCode LocationCode `json:"location_code"`
	PostingType  PostingType  `json:"posting_type"`
	ActorId      string       `json:"actor_id"`
	From         *time.Time   `json:"from"`
	To           *time.Time   `json:"to"`
}

// LedgerRow is one ledger entry joined with its posting header for display.
type LedgerRow struct {
	EntryId       int             `json:"entry_id"`
	PostingId     string          `json:"posting_id"`
	Seq           int             `json:"seq"`
	PostingType   PostingType     `json:"posting_type"`
	ReferenceId   string          `json:"reference_id"`
	PostingStatus PostingStatus   `json:"posting_status"`
	IsReversal    bool            `json:"is_reversal"`
	ItemCode      string          `json:"item_code"`
	LocationCode  LocationCode    `json:"location_code"`
	Qty           decimal.Decimal `json:"qty"`
	Uom           string          `json:"uom"`
	EntryDate     time.Time       `json:"entry_date"`
	CreatedBy     string          `json:"created_by"`
}

const ledgerRangeSql = `
SELECT le.id AS entry_id, le.posting_id, le.seq,
       p.posting_type, p.reference_id, p.status AS posting_status, p.is_reversal,
       le.item_code, le.location_code, le.qty, le.uom, le.entry_date,
       p.created_by
FROM ledger_entries le
JOIN postings p ON p.id = le.posting_id
WHERE (@itemCode = '' OR le.item_code = @itemCode)
  AND (@locationCode = '' OR le.location_code = @locationCode)
  AND (@postingType = '' OR p.posting_type = @postingType)
  AND (@actorId = '' OR p.created_by = @actorId)
  AND (@fromSet = 0 OR le.entry_date >= @fromDate)
  AND (@toSet = 0 OR le.entry_date <= @toDate)
`

func ledgerFilterParams(filter LedgerFilter) map[string]interface{} {
	params := map[string]interface{}{
		"itemCode":     filter.ItemCode,
		"locationCode": string(filter.LocationCode),
		"postingType":  string(filter.PostingType),
		"actorId":      filter.ActorId,
		"fromSet":      0,
		"fromDate":     time.Time{},
		"toSet":        0,
		"toDate":       time.Time{},
	}
	if filter.From != nil {
		params["fromSet"] = 1
		params["fromDate"] = *filter.From
	}
	if filter.To != nil {
		params["toSet"] = 1
		params["toDate"] = *filter.To
	}
	return params
}

// LedgerRange returns the filtered ledger ordered by
// (entry_date, posting_id, seq) with keyset-friendly offset paging. Pure
// read; never mutates state.
func LedgerRange(ctx context.Context, filter LedgerFilter, limit int, offset int) ([]LedgerRow, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	sql := ledgerRangeSql + `
ORDER BY le.entry_date, le.posting_id, le.seq
LIMIT @limit OFFSET @offset`

	params := ledgerFilterParams(filter)
	params["limit"] = limit
	params["offset"] = offset

	var rows []LedgerRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, params).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// RecentActivity is the most-recent-first bounded view over the same filter.
func RecentActivity(ctx context.Context, filter LedgerFilter, limit int) ([]LedgerRow, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sql := ledgerRangeSql + `
ORDER BY le.entry_date DESC, le.posting_id DESC, le.seq DESC
LIMIT @limit`

	params := ledgerFilterParams(filter)
	params["limit"] = limit

	var rows []LedgerRow
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, params).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
