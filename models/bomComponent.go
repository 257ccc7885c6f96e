package models

import (
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
	"github.com/shopspring/decimal"
)

// BomComponent belongs to exactly one BomVersion. Rows are frozen once the
// version exists; archiving a version never touches its components.
type BomComponent struct {
	ID            int                  `gorm:"primary_key" json:"id"`
	BomVersionId  string               `gorm:"size:36;not null;index" json:"bom_version_id"`
	ComponentCode string               `gorm:"size:100;not null;index" json:"component_code"`
	Quantity      decimal.Decimal      `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Uom           string               `gorm:"size:20;not null" json:"uom"`
	UnitCost      decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	TotalCost     decimal.Decimal      `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	Criticality   ComponentCriticality `gorm:"type:enum('standard','critical');default:'standard'" json:"criticality"`
	// ConsumeFrom is the location explosion draws this component from.
	// Semi-finished parts sit at FG_STORE, packing material at STORE.
	ConsumeFrom LocationCode `gorm:"type:enum('STORE','PRODUCTION','FG_STORE');not null;default:'STORE'" json:"consume_from"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBomComponent struct {
	ComponentCode string               `json:"component_code" validate:"required,max=100"`
	Quantity      decimal.Decimal      `json:"quantity" validate:"required"`
	Uom           string               `json:"uom" validate:"required,max=20"`
	UnitCost      decimal.Decimal      `json:"unit_cost"`
	Criticality   ComponentCriticality `json:"criticality" validate:"omitempty,oneof=standard critical"`
	ConsumeFrom   LocationCode         `json:"consume_from" validate:"omitempty,oneof=STORE PRODUCTION FG_STORE"`
}

func (input *NewBomComponent) validate() error {
	if !input.Quantity.IsPositive() {
		return NewValidationError("quantity", "component %s quantity must be positive, got %s",
			input.ComponentCode, input.Quantity.String())
	}
	if input.UnitCost.IsNegative() {
		return NewValidationError("unit_cost", "component %s unit cost must not be negative, got %s",
			input.ComponentCode, input.UnitCost.String())
	}
	return nil
}

func (input *NewBomComponent) toComponent(versionId string) BomComponent {
	criticality := input.Criticality
	if criticality == "" {
		criticality = ComponentCriticalityStandard
	}
	consumeFrom := input.ConsumeFrom
	if consumeFrom == "" {
		consumeFrom = LocationStore
	}
	qty := utils.RoundQuantity(input.Quantity)
	return BomComponent{
		BomVersionId:  versionId,
		ComponentCode: input.ComponentCode,
		Quantity:      qty,
		Uom:           input.Uom,
		UnitCost:      input.UnitCost,
		TotalCost:     qty.Mul(input.UnitCost).Round(4),
		Criticality:   criticality,
		ConsumeFrom:   consumeFrom,
	}
}
