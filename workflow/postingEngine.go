package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mfgops_backend/config"
	"bitbucket.org/mmdatafocus/mfgops_backend/models"
	"bitbucket.org/mmdatafocus/mfgops_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("mfgops-backend")

// StockDocument is the typed posting payload shared by every transaction
// type. Lines are interpreted per type by ComputeLegs.
type StockDocument struct {
	PostingType models.PostingType `json:"posting_type" validate:"required,oneof=GRN DISPATCH CUSTOMER_RETURN FG_TRANSFER JOB_WORK_CHALLAN JOB_WORK_GRN ADJUSTMENT MISC"`
	ReferenceId string             `json:"reference_id" validate:"required,max=100"`
	PostingDate time.Time          `json:"posting_date"`
	Remarks     string             `json:"remarks"`
	Lines       []DocumentLine     `json:"lines" validate:"required,min=1,dive"`
}

type DocumentLine struct {
	ItemCode string          `json:"item_code" validate:"required,max=100"`
	Qty      decimal.Decimal `json:"qty" validate:"required"`
	Uom      string          `json:"uom" validate:"required,max=20"`
	// LocationCode applies to ADJUSTMENT and MISC lines; the other types
	// carry fixed locations.
	LocationCode models.LocationCode `json:"location_code" validate:"omitempty,oneof=STORE PRODUCTION FG_STORE"`
	// Direction applies to ADJUSTMENT lines only.
	Direction models.AdjustmentDirection `json:"direction" validate:"omitempty,oneof=IN OUT OPENING"`
}

// ComputeLegs turns a validated document into its ledger legs. It is pure
// given the injected BOM lookup: same document and BOMs, same legs. Types
// that move finished goods (DISPATCH, FG_TRANSFER, JOB_WORK_CHALLAN) explode
// the active BOM into component legs; receipts post positive legs only;
// ADJUSTMENT and MISC post caller-directed signed legs with no explosion.
// The second return value lists the BOM version ids used, for traceability.
func ComputeLegs(doc *StockDocument, lookup BomLookup) ([]models.LedgerEntry, []string, error) {
	switch doc.PostingType {
	case models.PostingTypeGrn, models.PostingTypeJobWorkGrn:
		legs, err := receiptLegs(doc, models.LocationStore)
		return legs, nil, err
	case models.PostingTypeCustomerReturn:
		legs, err := receiptLegs(doc, models.LocationFgStore)
		return legs, nil, err
	case models.PostingTypeDispatch, models.PostingTypeJobWorkChallan:
		return explodedIssueLegs(doc, lookup, decimal.NewFromInt(-1))
	case models.PostingTypeFgTransfer:
		return explodedIssueLegs(doc, lookup, decimal.NewFromInt(1))
	case models.PostingTypeAdjustment:
		legs, err := adjustmentLegs(doc)
		return legs, nil, err
	case models.PostingTypeMisc:
		legs, err := signedLegs(doc)
		return legs, nil, err
	default:
		return nil, nil, models.NewValidationError("posting_type", "unknown posting type %s", doc.PostingType)
	}
}

// receiptLegs posts one positive leg per line at a fixed location.
func receiptLegs(doc *StockDocument, location models.LocationCode) ([]models.LedgerEntry, error) {
	legs := make([]models.LedgerEntry, 0, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		if !line.Qty.IsPositive() {
			return nil, models.NewValidationError("qty", "line %d (%s): %s quantity must be positive", i+1, line.ItemCode, doc.PostingType)
		}
		legs = append(legs, models.LedgerEntry{
			ItemCode:     line.ItemCode,
			LocationCode: location,
			Qty:          utils.RoundQuantity(line.Qty),
			Uom:          line.Uom,
		})
	}
	return legs, nil
}

// explodedIssueLegs posts the finished-good leg (sign given by fgSign: -1
// for an outgoing dispatch/challan, +1 for packed production) at FG_STORE,
// plus the component consumptions the active BOM prescribes.
func explodedIssueLegs(doc *StockDocument, lookup BomLookup, fgSign decimal.Decimal) ([]models.LedgerEntry, []string, error) {
	var legs []models.LedgerEntry
	var versionIds []string
	for i := range doc.Lines {
		line := &doc.Lines[i]
		if !line.Qty.IsPositive() {
			return nil, nil, models.NewValidationError("qty", "line %d (%s): %s quantity must be positive", i+1, line.ItemCode, doc.PostingType)
		}

		resolved, err := lookup(line.ItemCode)
		if err != nil {
			return nil, nil, err
		}
		versionId := resolved.Version.ID
		versionIds = append(versionIds, versionId)

		qty := utils.RoundQuantity(line.Qty)
		legs = append(legs, models.LedgerEntry{
			ItemCode:     line.ItemCode,
			LocationCode: models.LocationFgStore,
			Qty:          qty.Mul(fgSign),
			Uom:          line.Uom,
			BomVersionId: &versionId,
		})
		legs = append(legs, ExplodeComponents(qty, resolved.Version)...)
	}
	return legs, utils.UniqueSlice(versionIds), nil
}

// adjustmentLegs posts caller-directed corrections: positive quantities with
// an explicit direction. OPENING behaves like IN and marks opening balances.
func adjustmentLegs(doc *StockDocument) ([]models.LedgerEntry, error) {
	legs := make([]models.LedgerEntry, 0, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		if line.LocationCode == "" {
			return nil, models.NewValidationError("location_code", "line %d (%s): adjustment lines need a location", i+1, line.ItemCode)
		}
		if line.Direction == "" {
			return nil, models.NewValidationError("direction", "line %d (%s): adjustment lines need a direction", i+1, line.ItemCode)
		}
		if !line.Qty.IsPositive() {
			return nil, models.NewValidationError("qty", "line %d (%s): adjustment quantity must be positive", i+1, line.ItemCode)
		}
		qty := utils.RoundQuantity(line.Qty)
		if line.Direction == models.AdjustmentDirectionOut {
			qty = qty.Neg()
		}
		legs = append(legs, models.LedgerEntry{
			ItemCode:     line.ItemCode,
			LocationCode: line.LocationCode,
			Qty:          qty,
			Uom:          line.Uom,
		})
	}
	return legs, nil
}

// signedLegs posts the lines exactly as given: signed quantities at explicit
// locations. A material issue is its pair of signed legs.
func signedLegs(doc *StockDocument) ([]models.LedgerEntry, error) {
	legs := make([]models.LedgerEntry, 0, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		if line.LocationCode == "" {
			return nil, models.NewValidationError("location_code", "line %d (%s): misc lines need a location", i+1, line.ItemCode)
		}
		if line.Qty.IsZero() {
			return nil, models.NewValidationError("qty", "line %d (%s): misc quantity must not be zero", i+1, line.ItemCode)
		}
		legs = append(legs, models.LedgerEntry{
			ItemCode:     line.ItemCode,
			LocationCode: line.LocationCode,
			Qty:          utils.RoundQuantity(line.Qty),
			Uom:          line.Uom,
		})
	}
	return legs, nil
}

func primaryLocationForType(postingType models.PostingType, legs []models.LedgerEntry) models.LocationCode {
	switch postingType {
	case models.PostingTypeGrn, models.PostingTypeJobWorkGrn:
		return models.LocationStore
	case models.PostingTypeDispatch, models.PostingTypeCustomerReturn,
		models.PostingTypeFgTransfer, models.PostingTypeJobWorkChallan:
		return models.LocationFgStore
	default:
		if len(legs) > 0 {
			return legs[0].LocationCode
		}
		return models.LocationStore
	}
}

// allowsNegativeStock reports whether the gate is skipped for this posting.
// Adjustments and misc movements are the correction path and always bypass;
// operators can widen the set per deployment or per request.
func allowsNegativeStock(ctx context.Context, postingType models.PostingType) bool {
	if postingType == models.PostingTypeAdjustment || postingType == models.PostingTypeMisc {
		return true
	}
	if config.AllowNegativeStockFor(string(postingType)) {
		return true
	}
	override, ok := utils.GetAllowNegativeStockFromContext(ctx)
	return ok && override
}

// PostStockDocument validates, computes, gates and commits one posting.
// The header and all legs commit as one transaction; on any failure nothing
// is visible. Advisory locks serialize concurrent postings per
// (item, location) pair, so the balance gate reads a settled ledger.
func PostStockDocument(ctx context.Context, doc *StockDocument) (*models.Posting, error) {
	ctx, span := tracer.Start(ctx, "PostStockDocument")
	defer span.End()
	logger := config.GetLogger()

	if err := utils.ValidateStruct(doc); err != nil {
		return nil, models.NewValidationError("", "%s", err.Error())
	}
	actorId, ok := utils.GetActorIdFromContext(ctx)
	if !ok || actorId == "" {
		return nil, models.NewValidationError("actor", "actor id is required")
	}

	lookup := func(itemCode string) (*models.ResolvedBom, error) {
		return models.ResolveBom(ctx, itemCode)
	}
	legs, versionIds, err := ComputeLegs(doc, lookup)
	if err != nil {
		return nil, err
	}
	if len(legs) == 0 {
		return nil, models.NewValidationError("lines", "document produced no stock movements")
	}

	postingDate := doc.PostingDate
	if postingDate.IsZero() {
		postingDate = time.Now().UTC()
	}
	for i := range legs {
		legs[i].Seq = i + 1
		legs[i].EntryDate = postingDate
	}

	posting := &models.Posting{
		ID:           uuid.NewString(),
		PostingType:  doc.PostingType,
		ReferenceId:  doc.ReferenceId,
		ActiveRef:    &doc.ReferenceId,
		LocationCode: primaryLocationForType(doc.PostingType, legs),
		PostingDate:  postingDate,
		Status:       models.PostingStatusPosted,
		Remarks:      doc.Remarks,
		CreatedBy:    actorId,
		Legs:         legs,
	}
	if len(versionIds) > 0 {
		posting.BomVersionId = &versionIds[0]
	}

	skipGate := allowsNegativeStock(ctx, doc.PostingType)
	keys := TouchedKeys(legs)

	db := config.GetDB()
	err = db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		// GET_LOCK is connection-scoped, not transactional: acquire on the
		// pinned connection before the transaction opens and release only
		// after it commits. Releasing inside the transaction closure would
		// let a concurrent posting gate against a balance that does not yet
		// include these legs.
		if err := AcquireStockLocks(conn, keys); err != nil {
			return err
		}
		defer ReleaseStockLocks(conn, keys)

		return conn.Transaction(func(tx *gorm.DB) error {
			if !skipGate {
				balances := make(map[models.StockKey]decimal.Decimal, len(keys))
				for _, key := range keys {
					balance, err := models.BalanceInTx(tx, key.ItemCode, key.LocationCode)
					if err != nil {
						return err
					}
					balances[key] = balance
				}
				if err := CheckBalanceGate(balances, legs); err != nil {
					return err
				}
			}

			if err := models.InsertPosting(tx, posting); err != nil {
				return err
			}
			return models.EmitAudit(tx, ctx, models.AuditActionPost, "posting", posting.ID, models.AuditOutcomeSuccess, posting)
		})
	})
	if err != nil {
		config.LogError(logger, "workflow", "PostStockDocument", string(doc.PostingType), doc.ReferenceId, err)
		return nil, err
	}

	invalidateBalances(keys)
	logger.WithField("posting_id", posting.ID).
		WithField("posting_type", posting.PostingType).
		WithField("legs", len(posting.Legs)).
		Info("stock document posted")
	return posting, nil
}

func invalidateBalances(keys []models.StockKey) {
	pairs := make([][2]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, [2]string{key.ItemCode, string(key.LocationCode)})
	}
	if err := utils.InvalidateBalanceCache(pairs); err != nil {
		config.LogError(config.GetLogger(), "workflow", "invalidateBalances", "redis", "", err)
	}
}
