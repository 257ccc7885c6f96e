package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/config"
	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NegateLegs builds the compensating legs for a reversal: the exact negation
// of every original leg, stamped with the reversal time. BOM explosion is
// never re-run, so the reversal stays correct even if the BOM has changed
// since the original posting.
func NegateLegs(original []models.LedgerEntry, reversalTime time.Time) []models.LedgerEntry {
	legs := make([]models.LedgerEntry, 0, len(original))
	for i := range original {
		leg := original[i]
		legs = append(legs, models.LedgerEntry{
			Seq:          leg.Seq,
			ItemCode:     leg.ItemCode,
			LocationCode: leg.LocationCode,
			Qty:          leg.Qty.Neg(),
			Uom:          leg.Uom,
			EntryDate:    reversalTime,
			BomVersionId: leg.BomVersionId,
		})
	}
	return legs
}

// ReversePosting appends a compensating posting for the target and marks the
// original reversed, all in one transaction. A posting is reversed at most
// once; the second attempt fails. History is never deleted.
func ReversePosting(ctx context.Context, postingId string, reason string) (*models.Posting, error) {
	ctx, span := tracer.Start(ctx, "ReversePosting")
	defer span.End()
	logger := config.GetLogger()

	actorId, ok := utils.GetActorIdFromContext(ctx)
	if !ok || actorId == "" {
		return nil, models.NewValidationError("actor", "actor id is required")
	}
	if reason == "" {
		return nil, models.NewValidationError("reason", "reversal reason is required")
	}

	now := time.Now().UTC()
	reversal := &models.Posting{
		ID:          uuid.NewString(),
		PostingDate: now,
		Status:      models.PostingStatusPosted,
		CreatedBy:   actorId,
		IsReversal:  true,
	}
	var keys []models.StockKey

	db := config.GetDB()
	err := db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		// Legs are append-only, so the touched keys can be read before the
		// advisory locks are taken. The locks must outlive the transaction
		// (GET_LOCK is connection-scoped, not transactional).
		var originalLegs []models.LedgerEntry
		if err := conn.Where("posting_id = ?", postingId).Order("seq").Find(&originalLegs).Error; err != nil {
			return err
		}
		keys = TouchedKeys(originalLegs)
		if err := AcquireStockLocks(conn, keys); err != nil {
			return err
		}
		defer ReleaseStockLocks(conn, keys)

		return conn.Transaction(func(tx *gorm.DB) error {
			var original models.Posting
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", postingId).First(&original).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			if err != nil {
				return err
			}
			if original.IsReversal {
				return models.NewValidationError("posting_id", "posting %s is itself a reversal", postingId)
			}
			if original.Status != models.PostingStatusPosted {
				return models.ErrAlreadyReversed
			}

			reversal.PostingType = original.PostingType
			reversal.ReferenceId = original.ReferenceId
			reversal.LocationCode = original.LocationCode
			reversal.Remarks = reason
			reversal.ReversesPostingId = &original.ID
			reversal.ReversalReason = &reason
			reversal.BomVersionId = original.BomVersionId
			reversal.Legs = NegateLegs(originalLegs, now)

			if err := models.InsertPosting(tx, reversal); err != nil {
				return err
			}

			if err := tx.Model(&original).Updates(map[string]interface{}{
				"status":                 models.PostingStatusReversed,
				"reversed_by_posting_id": reversal.ID,
				"reversed_at":            now,
				"reversal_reason":        reason,
				"active_ref":             nil,
			}).Error; err != nil {
				return err
			}

			return models.EmitAudit(tx, ctx, models.AuditActionReverse, "posting", original.ID, models.AuditOutcomeSuccess, reversal)
		})
	})
	if err != nil {
		config.LogError(logger, "workflow", "ReversePosting", "reverse", postingId, err)
		return nil, err
	}

	invalidateBalances(keys)
	logger.WithField("posting_id", postingId).
		WithField("reversal_id", reversal.ID).
		Info("posting reversed")
	return reversal, nil
}
