package models

type BomCategory string

const (
	BomCategorySemiFinished BomCategory = "SFG"
	BomCategoryFinished     BomCategory = "FG"
	BomCategoryLocal        BomCategory = "LOCAL"
)

type BomVersionStatus string

const (
	BomVersionStatusDraft    BomVersionStatus = "draft"
	BomVersionStatusReleased BomVersionStatus = "released"
	BomVersionStatusArchived BomVersionStatus = "archived"
)

type PostingType string

const (
	PostingTypeGrn            PostingType = "GRN"
	PostingTypeDispatch       PostingType = "DISPATCH"
	PostingTypeCustomerReturn PostingType = "CUSTOMER_RETURN"
	PostingTypeFgTransfer     PostingType = "FG_TRANSFER"
	PostingTypeJobWorkChallan PostingType = "JOB_WORK_CHALLAN"
	PostingTypeJobWorkGrn     PostingType = "JOB_WORK_GRN"
	PostingTypeAdjustment     PostingType = "ADJUSTMENT"
	PostingTypeMisc           PostingType = "MISC"
)

type PostingStatus string

const (
	PostingStatusPosted   PostingStatus = "posted"
	PostingStatusReversed PostingStatus = "reversed"
)

type LocationCode string

const (
	LocationStore      LocationCode = "STORE"
	LocationProduction LocationCode = "PRODUCTION"
	LocationFgStore    LocationCode = "FG_STORE"
)

type AdjustmentDirection string

const (
	AdjustmentDirectionIn      AdjustmentDirection = "IN"
	AdjustmentDirectionOut     AdjustmentDirection = "OUT"
	AdjustmentDirectionOpening AdjustmentDirection = "OPENING"
)

type ComponentCriticality string

const (
	ComponentCriticalityStandard ComponentCriticality = "standard"
	ComponentCriticalityCritical ComponentCriticality = "critical"
)

type AuditAction string

const (
	AuditActionPost     AuditAction = "POST"
	AuditActionReverse  AuditAction = "REVERSE"
	AuditActionActivate AuditAction = "ACTIVATE"
	AuditActionCreate   AuditAction = "CREATE"
	AuditActionArchive  AuditAction = "ARCHIVE"
)

type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "SUCCESS"
	AuditOutcomeFailure AuditOutcome = "FAILURE"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// ValidPostingTypes drives payload validation; the engine dispatches on a
// closed set and rejects anything outside it.
var ValidPostingTypes = map[PostingType]bool{
	PostingTypeGrn:            true,
	PostingTypeDispatch:       true,
	PostingTypeCustomerReturn: true,
	PostingTypeFgTransfer:     true,
	PostingTypeJobWorkChallan: true,
	PostingTypeJobWorkGrn:     true,
	PostingTypeAdjustment:     true,
	PostingTypeMisc:           true,
}

var ValidLocationCodes = map[LocationCode]bool{
	LocationStore:      true,
	LocationProduction: true,
	LocationFgStore:    true,
}
