package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/config"
	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BomVersion is an immutable snapshot of a lineage's component list.
// Corrections never mutate a version in place; they create the next one.
type BomVersion struct {
	ID            string           `gorm:"primary_key;size:36" json:"id"`
	BomLineageId  string           `gorm:"size:36;not null;index;index:idx_bom_version_active,priority:1" json:"bom_lineage_id"`
	VersionNumber int              `gorm:"not null" json:"version_number"`
	Status        BomVersionStatus `gorm:"type:enum('draft','released','archived');not null;default:'draft'" json:"status"`
	IsActive      *bool            `gorm:"not null;default:false;index:idx_bom_version_active,priority:2" json:"is_active"`
	Notes         string           `gorm:"type:text" json:"notes"`
	ChangeReason  string           `gorm:"type:text" json:"change_reason"`
	TotalCost     decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	CreatedBy     string           `gorm:"size:100;not null" json:"created_by"`
	ActivatedBy   *string          `gorm:"size:100" json:"activated_by"`
	ActivatedAt   *time.Time       `json:"activated_at"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`

	Components []BomComponent `gorm:"foreignKey:BomVersionId" json:"components"`
}

type NewBomVersion struct {
	BomLineageId string            `json:"bom_lineage_id" validate:"required"`
	Components   []NewBomComponent `json:"components" validate:"required,min=1,dive"`
	Notes        string            `json:"notes"`
	ChangeReason string            `json:"change_reason"`
}

// CreateBomVersion appends the next draft version to a lineage. Version
// numbers are assigned under a row lock on the lineage so two concurrent
// creates cannot claim the same number.
func CreateBomVersion(ctx context.Context, input *NewBomVersion) (*BomVersion, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, NewValidationError("", "%s", err.Error())
	}
	for i := range input.Components {
		if err := input.Components[i].validate(); err != nil {
			return nil, err
		}
	}

	actorId, ok := utils.GetActorIdFromContext(ctx)
	if !ok || actorId == "" {
		return nil, NewValidationError("actor", "actor id is required")
	}

	version := BomVersion{
		ID:           uuid.NewString(),
		BomLineageId: input.BomLineageId,
		Status:       BomVersionStatusDraft,
		IsActive:     utils.NewFalse(),
		Notes:        input.Notes,
		ChangeReason: input.ChangeReason,
		CreatedBy:    actorId,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lineage BomLineage
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", input.BomLineageId).First(&lineage).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var maxVersion int
		if err := tx.Model(&BomVersion{}).
			Where("bom_lineage_id = ?", input.BomLineageId).
			Select("COALESCE(MAX(version_number), 0)").Scan(&maxVersion).Error; err != nil {
			return err
		}
		version.VersionNumber = maxVersion + 1

		totalCost := decimal.Zero
		for i := range input.Components {
			component := input.Components[i].toComponent(version.ID)
			version.Components = append(version.Components, component)
			totalCost = totalCost.Add(component.TotalCost)
		}
		version.TotalCost = totalCost.Round(4)

		if err := tx.Create(&version).Error; err != nil {
			return err
		}
		return EmitAudit(tx, ctx, AuditActionCreate, "bom_version", version.ID, AuditOutcomeSuccess, version)
	})
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// ActivateBomVersion releases the version and archives the previously active
// one in the same transaction, so the lineage never shows two active versions.
// A serialization conflict is retried once with fresh state; a conflict that
// survives the retry surfaces as ErrConflict.
func ActivateBomVersion(ctx context.Context, versionId string) (*BomVersion, error) {
	actorId, ok := utils.GetActorIdFromContext(ctx)
	if !ok || actorId == "" {
		return nil, NewValidationError("actor", "actor id is required")
	}

	version, err := activateBomVersionOnce(ctx, versionId, actorId)
	if isSerializationErr(err) {
		version, err = activateBomVersionOnce(ctx, versionId, actorId)
	}
	if isSerializationErr(err) {
		return nil, fmt.Errorf("%w: %s", ErrConflict, err.Error())
	}
	return version, err
}

func activateBomVersionOnce(ctx context.Context, versionId string, actorId string) (*BomVersion, error) {
	var version BomVersion
	now := time.Now().UTC()

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", versionId).First(&version).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		// Lineage row lock serializes concurrent activations on the lineage.
		var lineage BomLineage
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", version.BomLineageId).First(&lineage).Error; err != nil {
			return err
		}

		if err := tx.Model(&BomVersion{}).
			Where("bom_lineage_id = ? AND is_active = ? AND id != ?", version.BomLineageId, true, version.ID).
			Updates(map[string]interface{}{
				"is_active": false,
				"status":    BomVersionStatusArchived,
			}).Error; err != nil {
			return err
		}

		if err := tx.Model(&version).Updates(map[string]interface{}{
			"is_active":    true,
			"status":       BomVersionStatusReleased,
			"activated_by": actorId,
			"activated_at": now,
		}).Error; err != nil {
			return err
		}
		version.IsActive = utils.NewTrue()
		version.Status = BomVersionStatusReleased
		version.ActivatedBy = &actorId
		version.ActivatedAt = &now

		return EmitAudit(tx, ctx, AuditActionActivate, "bom_version", version.ID, AuditOutcomeSuccess, version)
	})
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func GetBomVersionsByLineage(ctx context.Context, lineageId string) ([]BomVersion, error) {
	var versions []BomVersion
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("Components").
		Where("bom_lineage_id = ?", lineageId).
		Order("version_number DESC").
		Find(&versions).Error
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// GetActiveBomVersion returns ErrNotFound when the lineage has no released
// active version.
func GetActiveBomVersion(ctx context.Context, lineageId string) (*BomVersion, error) {
	var version BomVersion
	db := config.GetDB()
	err := db.WithContext(ctx).Preload("Components").
		Where("bom_lineage_id = ? AND is_active = ?", lineageId, true).
		First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}
