package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/config"
	"gorm.io/gorm"
)

// Posting is the transaction header. Legs belong to exactly one posting and
// commit with it as a single unit. ActiveRef mirrors ReferenceId while the
// posting is live and is cleared to NULL on reversal, so the unique index on
// (posting_type, active_ref) rejects a second live posting of the same source
// document at the database but allows re-posting after a reversal.
type Posting struct {
	ID           string        `gorm:"primary_key;size:36" json:"id"`
	PostingType  PostingType   `gorm:"type:enum('GRN','DISPATCH','CUSTOMER_RETURN','FG_TRANSFER','JOB_WORK_CHALLAN','JOB_WORK_GRN','ADJUSTMENT','MISC');not null;index;index:uniq_posting_active_ref,unique,priority:1" json:"posting_type"`
	ReferenceId  string        `gorm:"size:100;not null;index" json:"reference_id"`
	ActiveRef    *string       `gorm:"size:100;index:uniq_posting_active_ref,unique,priority:2" json:"-"`
	LocationCode LocationCode  `gorm:"type:enum('STORE','PRODUCTION','FG_STORE');not null" json:"location_code"`
	PostingDate  time.Time     `gorm:"not null;index" json:"posting_date"`
	Status       PostingStatus `gorm:"type:enum('posted','reversed');not null;default:'posted';index" json:"status"`
	Remarks      string        `gorm:"type:text" json:"remarks"`
	CreatedBy    string        `gorm:"size:100;not null;index" json:"created_by"`
	// Reversal bookkeeping. A reversal posting points at its original via
	// ReversesPostingId; the original points back via ReversedByPostingId.
	IsReversal          bool         `gorm:"not null;default:false;index" json:"is_reversal"`
	ReversesPostingId   *string      `gorm:"size:36;index" json:"reverses_posting_id"`
	ReversedByPostingId *string      `gorm:"size:36;index" json:"reversed_by_posting_id"`
	ReversedAt          *time.Time   `json:"reversed_at"`
	ReversalReason      *string      `gorm:"type:text" json:"reversal_reason"`
	BomVersionId        *string      `gorm:"size:36;index" json:"bom_version_id"`
	CreatedAt           time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	Legs []LedgerEntry `gorm:"foreignKey:PostingId" json:"legs"`
}

func GetPosting(ctx context.Context, id string) (*Posting, error) {
	var posting Posting
	db := config.GetDB()
	err := db.WithContext(ctx).
		Preload("Legs", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq") }).
		Where("id = ?", id).First(&posting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &posting, nil
}

// InsertPosting writes the header plus all legs inside the caller's
// transaction. A duplicate live (type, reference) surfaces as
// ErrAlreadyPosted.
func InsertPosting(tx *gorm.DB, posting *Posting) error {
	if err := tx.Create(posting).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return ErrAlreadyPosted
		}
		return err
	}
	return nil
}
