package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/config"
	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BomLineage is the permanent identity of a product's bill of materials.
// Versions hang off it; the lineage itself is never deleted, only archived.
type BomLineage struct {
	ID          string      `gorm:"primary_key;size:36" json:"id"`
	ProductCode string      `gorm:"size:100;not null;uniqueIndex" json:"product_code"`
	ProductName string      `gorm:"size:255;not null" json:"product_name"`
	Category    BomCategory `gorm:"type:enum('SFG','FG','LOCAL');not null;index" json:"category"`
	Description string      `gorm:"type:text" json:"description"`
	IsArchived  *bool       `gorm:"not null;default:false" json:"is_archived"`
	CreatedBy   string      `gorm:"size:100;not null" json:"created_by"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBomLineage struct {
	ProductCode string      `json:"product_code" validate:"required,max=100"`
	ProductName string      `json:"product_name" validate:"required,max=255"`
	Category    BomCategory `json:"category" validate:"required,oneof=SFG FG LOCAL"`
	Description string      `json:"description"`
}

func CreateBomLineage(ctx context.Context, input *NewBomLineage) (*BomLineage, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, NewValidationError("", "%s", err.Error())
	}

	actorId, ok := utils.GetActorIdFromContext(ctx)
	if !ok || actorId == "" {
		return nil, NewValidationError("actor", "actor id is required")
	}

	lineage := BomLineage{
		ID:          uuid.NewString(),
		ProductCode: strings.TrimSpace(input.ProductCode),
		ProductName: strings.TrimSpace(input.ProductName),
		Category:    input.Category,
		Description: input.Description,
		IsArchived:  utils.NewFalse(),
		CreatedBy:   actorId,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&lineage).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return ErrDuplicateCode
			}
			return err
		}
		return EmitAudit(tx, ctx, AuditActionCreate, "bom_lineage", lineage.ID, AuditOutcomeSuccess, lineage)
	})
	if err != nil {
		return nil, err
	}
	return &lineage, nil
}

func GetBomLineage(ctx context.Context, id string) (*BomLineage, error) {
	var lineage BomLineage
	db := config.GetDB()
	err := db.WithContext(ctx).Where("id = ?", id).First(&lineage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lineage, nil
}

func GetBomLineageByCode(ctx context.Context, productCode string) (*BomLineage, error) {
	var lineage BomLineage
	db := config.GetDB()
	err := db.WithContext(ctx).Where("product_code = ?", productCode).First(&lineage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lineage, nil
}

func ListBomLineages(ctx context.Context, category *BomCategory, includeArchived bool) ([]BomLineage, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Model(&BomLineage{})
	if category != nil {
		query = query.Where("category = ?", *category)
	}
	if !includeArchived {
		query = query.Where("is_archived = ?", false)
	}
	var lineages []BomLineage
	if err := query.Order("product_code").Find(&lineages).Error; err != nil {
		return nil, err
	}
	return lineages, nil
}

// ArchiveBomLineage hides the lineage from listings and resolution. Versions
// and their components stay frozen in place.
func ArchiveBomLineage(ctx context.Context, id string) (*BomLineage, error) {
	lineage, err := GetBomLineage(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(lineage).Update("is_archived", true).Error; err != nil {
			return err
		}
		return EmitAudit(tx, ctx, AuditActionArchive, "bom_lineage", lineage.ID, AuditOutcomeSuccess, lineage)
	})
	if err != nil {
		return nil, err
	}
	return lineage, nil
}
