package workflow

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"github.com/shopspring/decimal"
)

// fakeBomLookup serves BOMs from a map, the way the store-backed resolver
// would serve active versions.
func fakeBomLookup(boms map[string]*models.ResolvedBom) BomLookup {
	return func(itemCode string) (*models.ResolvedBom, error) {
		if resolved, ok := boms[itemCode]; ok {
			return resolved, nil
		}
		base := models.NormalizeItemCode(itemCode)
		if resolved, ok := boms[base]; ok {
			return resolved, nil
		}
		return nil, &models.UnresolvableBomError{ItemCode: itemCode, Reason: "no lineage"}
	}
}

func fgBom(t *testing.T, versionId string, componentCode string, componentQty string) *models.ResolvedBom {
	t.Helper()
	return &models.ResolvedBom{
		Lineage: &models.BomLineage{ID: "lin-" + versionId, Category: models.BomCategoryFinished},
		Version: &models.BomVersion{
			ID: versionId,
			Components: []models.BomComponent{
				{ComponentCode: componentCode, Quantity: mustDecimal(t, componentQty), Uom: "KG", ConsumeFrom: models.LocationStore},
			},
		},
	}
}

func TestComputeLegs_DispatchExplodesBom(t *testing.T) {
	lookup := fakeBomLookup(map[string]*models.ResolvedBom{
		"FG-100": fgBom(t, "v-100", "RM-1", "2"),
	})
	doc := &StockDocument{
		PostingType: models.PostingTypeDispatch,
		ReferenceId: "DC-1",
		Lines: []DocumentLine{
			{ItemCode: "FG-100", Qty: mustDecimal(t, "5"), Uom: "NOS"},
		},
	}

	legs, versionIds, err := ComputeLegs(doc, lookup)
	if err != nil {
		t.Fatalf("ComputeLegs: %v", err)
	}
	if len(legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(legs))
	}
	if legs[0].ItemCode != "FG-100" || legs[0].Qty.String() != "-5" || legs[0].LocationCode != models.LocationFgStore {
		t.Errorf("FG leg = %s %s at %s, want FG-100 -5 at FG_STORE", legs[0].ItemCode, legs[0].Qty.String(), legs[0].LocationCode)
	}
	if legs[1].ItemCode != "RM-1" || legs[1].Qty.String() != "-10" || legs[1].LocationCode != models.LocationStore {
		t.Errorf("component leg = %s %s at %s, want RM-1 -10 at STORE", legs[1].ItemCode, legs[1].Qty.String(), legs[1].LocationCode)
	}
	if len(versionIds) != 1 || versionIds[0] != "v-100" {
		t.Errorf("versionIds = %v, want [v-100]", versionIds)
	}
}

func TestComputeLegs_FgTransferProducesFgAndConsumesComponents(t *testing.T) {
	resolved := &models.ResolvedBom{
		Lineage: &models.BomLineage{ID: "lin-2045", Category: models.BomCategoryFinished},
		Version: &models.BomVersion{
			ID: "v-2045",
			Components: []models.BomComponent{
				{ComponentCode: "SFG-11", Quantity: mustDecimal(t, "24"), Uom: "NOS", ConsumeFrom: models.LocationFgStore},
				{ComponentCode: "PM-CTN", Quantity: mustDecimal(t, "1"), Uom: "NOS", ConsumeFrom: models.LocationStore},
			},
		},
	}
	lookup := fakeBomLookup(map[string]*models.ResolvedBom{"2045": resolved})
	doc := &StockDocument{
		PostingType: models.PostingTypeFgTransfer,
		ReferenceId: "FGN-9",
		Lines: []DocumentLine{
			{ItemCode: "2045-Black", Qty: mustDecimal(t, "10"), Uom: "BOX"},
		},
	}

	legs, _, err := ComputeLegs(doc, lookup)
	if err != nil {
		t.Fatalf("ComputeLegs: %v", err)
	}
	if len(legs) != 3 {
		t.Fatalf("expected 3 legs, got %d", len(legs))
	}
	if legs[0].Qty.String() != "10" || legs[0].LocationCode != models.LocationFgStore {
		t.Errorf("FG leg = %s at %s, want +10 at FG_STORE", legs[0].Qty.String(), legs[0].LocationCode)
	}
	if legs[1].ItemCode != "SFG-11" || legs[1].Qty.String() != "-240" || legs[1].LocationCode != models.LocationFgStore {
		t.Errorf("SFG leg = %s %s at %s, want SFG-11 -240 at FG_STORE", legs[1].ItemCode, legs[1].Qty.String(), legs[1].LocationCode)
	}
	if legs[2].ItemCode != "PM-CTN" || legs[2].Qty.String() != "-10" || legs[2].LocationCode != models.LocationStore {
		t.Errorf("packing leg = %s %s at %s, want PM-CTN -10 at STORE", legs[2].ItemCode, legs[2].Qty.String(), legs[2].LocationCode)
	}
}

func TestComputeLegs_ReceiptsArePositiveOnly(t *testing.T) {
	for _, postingType := range []models.PostingType{models.PostingTypeGrn, models.PostingTypeJobWorkGrn, models.PostingTypeCustomerReturn} {
		doc := &StockDocument{
			PostingType: postingType,
			ReferenceId: "R-1",
			Lines: []DocumentLine{
				{ItemCode: "RM-1", Qty: mustDecimal(t, "-3"), Uom: "KG"},
			},
		}
		_, _, err := ComputeLegs(doc, nil)
		var ve *models.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s with negative qty: got %v, want validation error", postingType, err)
		}
	}

	doc := &StockDocument{
		PostingType: models.PostingTypeCustomerReturn,
		ReferenceId: "CR-1",
		Lines: []DocumentLine{
			{ItemCode: "2045", Qty: mustDecimal(t, "4"), Uom: "BOX"},
		},
	}
	legs, _, err := ComputeLegs(doc, nil)
	if err != nil {
		t.Fatalf("ComputeLegs: %v", err)
	}
	if len(legs) != 1 || legs[0].Qty.String() != "4" || legs[0].LocationCode != models.LocationFgStore {
		t.Fatalf("customer return leg = %+v, want +4 at FG_STORE", legs[0])
	}
}

func TestComputeLegs_AdjustmentDirections(t *testing.T) {
	doc := &StockDocument{
		PostingType: models.PostingTypeAdjustment,
		ReferenceId: "ADJ-1",
		Lines: []DocumentLine{
			{ItemCode: "RM-1", Qty: mustDecimal(t, "7"), Uom: "KG", LocationCode: models.LocationStore, Direction: models.AdjustmentDirectionOut},
			{ItemCode: "RM-2", Qty: mustDecimal(t, "3"), Uom: "KG", LocationCode: models.LocationProduction, Direction: models.AdjustmentDirectionIn},
			{ItemCode: "2045", Qty: mustDecimal(t, "100"), Uom: "BOX", LocationCode: models.LocationFgStore, Direction: models.AdjustmentDirectionOpening},
		},
	}

	legs, _, err := ComputeLegs(doc, nil)
	if err != nil {
		t.Fatalf("ComputeLegs: %v", err)
	}
	want := []string{"-7", "3", "100"}
	for i, w := range want {
		if legs[i].Qty.String() != w {
			t.Errorf("leg %d qty = %s, want %s", i, legs[i].Qty.String(), w)
		}
	}
}

func TestComputeLegs_AdjustmentRequiresLocationAndDirection(t *testing.T) {
	doc := &StockDocument{
		PostingType: models.PostingTypeAdjustment,
		ReferenceId: "ADJ-2",
		Lines: []DocumentLine{
			{ItemCode: "RM-1", Qty: mustDecimal(t, "7"), Uom: "KG"},
		},
	}
	_, _, err := ComputeLegs(doc, nil)
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want validation error", err)
	}
}

func TestComputeLegs_MiscPostsSignedLegsVerbatim(t *testing.T) {
	doc := &StockDocument{
		PostingType: models.PostingTypeMisc,
		ReferenceId: "MIS-1",
		Lines: []DocumentLine{
			{ItemCode: "RM-5", Qty: mustDecimal(t, "-20"), Uom: "KG", LocationCode: models.LocationStore},
			{ItemCode: "RM-5", Qty: mustDecimal(t, "20"), Uom: "KG", LocationCode: models.LocationProduction},
		},
	}

	legs, _, err := ComputeLegs(doc, nil)
	if err != nil {
		t.Fatalf("ComputeLegs: %v", err)
	}
	if len(legs) != 2 || legs[0].Qty.String() != "-20" || legs[1].Qty.String() != "20" {
		t.Fatalf("misc legs = %+v, want -20/+20", legs)
	}
}

func TestComputeLegs_UnresolvableBomPropagates(t *testing.T) {
	lookup := fakeBomLookup(map[string]*models.ResolvedBom{})
	doc := &StockDocument{
		PostingType: models.PostingTypeDispatch,
		ReferenceId: "DC-2",
		Lines: []DocumentLine{
			{ItemCode: "9999", Qty: mustDecimal(t, "1"), Uom: "NOS"},
		},
	}
	_, _, err := ComputeLegs(doc, lookup)
	var ube *models.UnresolvableBomError
	if !errors.As(err, &ube) {
		t.Fatalf("got %v, want UnresolvableBomError", err)
	}
}

func TestCheckBalanceGate_RejectsShortfallWithContext(t *testing.T) {
	legs := []models.LedgerEntry{
		{ItemCode: "2045", LocationCode: models.LocationFgStore, Qty: mustDecimal(t, "-1000000")},
	}
	balances := map[models.StockKey]decimal.Decimal{
		{ItemCode: "2045", LocationCode: models.LocationFgStore}: mustDecimal(t, "10"),
	}

	err := CheckBalanceGate(balances, legs)
	var ise *models.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}
	if ise.ItemCode != "2045" || ise.Available.String() != "10" || ise.Requested.String() != "1000000" {
		t.Errorf("error context = %+v", ise)
	}
}

func TestCheckBalanceGate_NetsLegsPerKey(t *testing.T) {
	// +5 and -3 on the same key nets to +2; no shortfall even at zero balance.
	legs := []models.LedgerEntry{
		{ItemCode: "RM-1", LocationCode: models.LocationStore, Qty: mustDecimal(t, "5")},
		{ItemCode: "RM-1", LocationCode: models.LocationStore, Qty: mustDecimal(t, "-3")},
	}
	if err := CheckBalanceGate(map[models.StockKey]decimal.Decimal{}, legs); err != nil {
		t.Fatalf("gate rejected net-positive movement: %v", err)
	}
}

func TestCheckBalanceGate_ExactDrawdownToZeroPasses(t *testing.T) {
	legs := []models.LedgerEntry{
		{ItemCode: "RM-1", LocationCode: models.LocationStore, Qty: mustDecimal(t, "-10")},
	}
	balances := map[models.StockKey]decimal.Decimal{
		{ItemCode: "RM-1", LocationCode: models.LocationStore}: mustDecimal(t, "10"),
	}
	if err := CheckBalanceGate(balances, legs); err != nil {
		t.Fatalf("gate rejected exact drawdown: %v", err)
	}
}

func TestTouchedKeys_SortedAndDistinct(t *testing.T) {
	legs := []models.LedgerEntry{
		{ItemCode: "B", LocationCode: models.LocationStore, Qty: mustDecimal(t, "1")},
		{ItemCode: "A", LocationCode: models.LocationFgStore, Qty: mustDecimal(t, "1")},
		{ItemCode: "B", LocationCode: models.LocationStore, Qty: mustDecimal(t, "2")},
		{ItemCode: "A", LocationCode: models.LocationStore, Qty: mustDecimal(t, "1")},
	}
	keys := TouchedKeys(legs)
	if len(keys) != 3 {
		t.Fatalf("expected 3 distinct keys, got %d", len(keys))
	}
	if keys[0].ItemCode != "A" || keys[0].LocationCode != models.LocationFgStore {
		t.Errorf("keys not sorted: %+v", keys)
	}
	if keys[2].ItemCode != "B" {
		t.Errorf("keys not sorted: %+v", keys)
	}
}

func TestNextPublishBackoff_DoublesAndCaps(t *testing.T) {
	initial := 5 * time.Second
	if got := NextPublishBackoff(initial, 1); got != 5*time.Second {
		t.Errorf("attempt 1 backoff = %s", got)
	}
	if got := NextPublishBackoff(initial, 3); got != 20*time.Second {
		t.Errorf("attempt 3 backoff = %s", got)
	}
	if got := NextPublishBackoff(initial, 50); got != 10*time.Minute {
		t.Errorf("attempt 50 backoff = %s, want cap", got)
	}
}
