package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEntry is one signed stock movement (leg) of a posting. The ledger is
// append-only: rows are never updated or deleted, only offset by the legs of
// a reversal posting.
type LedgerEntry struct {
	ID           int             `gorm:"primary_key" json:"id"`
	PostingId    string          `gorm:"size:36;not null;index" json:"posting_id"`
	Seq          int             `gorm:"not null" json:"seq"`
	ItemCode     string          `gorm:"size:100;not null;index:idx_ledger_item_loc_date,priority:1" json:"item_code"`
	LocationCode LocationCode    `gorm:"type:enum('STORE','PRODUCTION','FG_STORE');not null;index:idx_ledger_item_loc_date,priority:2" json:"location_code"`
	Qty          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Uom          string          `gorm:"size:20;not null" json:"uom"`
	EntryDate    time.Time       `gorm:"not null;index;index:idx_ledger_item_loc_date,priority:3" json:"entry_date"`
	BomVersionId *string         `gorm:"size:36" json:"bom_version_id"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeSave enforces internal invariants for the ledger.
//
// We ensure:
// - No zero-quantity legs reach the table (they carry no information and
//   break the sign-based activity views).
// - Quantities are stored at the ledger precision.
func (le *LedgerEntry) BeforeSave(tx *gorm.DB) error {
	_ = tx // signature required by gorm; tx may be nil in tests
	if le == nil {
		return nil
	}
	le.Qty = le.Qty.Round(4)
	if le.Qty.IsZero() {
		return NewValidationError("qty", "leg %d for %s has zero quantity", le.Seq, le.ItemCode)
	}
	return nil
}
