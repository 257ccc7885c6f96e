package workflow

import (
	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
	"github.com/shopspring/decimal"
)

// BomLookup resolves an item code to its active BOM. The engine injects the
// store-backed resolver in production; tests inject a map.
type BomLookup func(itemCode string) (*models.ResolvedBom, error)

// ExplodeComponents turns a requested finished-good quantity into the
// component movements the active BOM prescribes. Each component leg is
// requested x component quantity, rounded to the ledger precision, negative
// (a consumption) at the component's consume-from location.
func ExplodeComponents(requestedQty decimal.Decimal, version *models.BomVersion) []models.LedgerEntry {
	legs := make([]models.LedgerEntry, 0, len(version.Components))
	for i := range version.Components {
		component := &version.Components[i]
		qty := utils.RoundQuantity(requestedQty.Mul(component.Quantity))
		if qty.IsZero() {
			continue
		}
		versionId := version.ID
		legs = append(legs, models.LedgerEntry{
			ItemCode:     component.ComponentCode,
			LocationCode: component.ConsumeFrom,
			Qty:          qty.Neg(),
			Uom:          component.Uom,
			BomVersionId: &versionId,
		})
	}
	return legs
}
