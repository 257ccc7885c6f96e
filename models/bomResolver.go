package models

import (
	"context"
	"errors"
	"strings"
)

// categoryByLeadingDigit is the explicit prefix convention for routing item
// codes to a BOM category. Extend the table, not the resolver, when a new
// prefix appears.
var categoryByLeadingDigit = map[byte]BomCategory{
	'2': BomCategoryFinished,
	'3': BomCategoryLocal,
}

// NormalizeItemCode strips the free-form variant suffix: everything after the
// first "-". "2045-Black" and "2045" are the same product.
func NormalizeItemCode(itemCode string) string {
	code := strings.TrimSpace(itemCode)
	if idx := strings.Index(code, "-"); idx >= 0 {
		return code[:idx]
	}
	return code
}

func CategoryForItemCode(itemCode string) (BomCategory, error) {
	code := NormalizeItemCode(itemCode)
	if code == "" {
		return "", &UnresolvableBomError{ItemCode: itemCode, Reason: "empty item code"}
	}
	category, ok := categoryByLeadingDigit[code[0]]
	if !ok {
		return "", &UnresolvableBomError{ItemCode: itemCode, Reason: "no BOM category for prefix " + code[:1]}
	}
	return category, nil
}

// ResolvedBom pairs the lineage an item code resolved to with its active
// version.
type ResolvedBom struct {
	Lineage *BomLineage `json:"lineage"`
	Version *BomVersion `json:"version"`
}

// ResolveBom maps a raw item code to its active BOM version. The leading
// digit convention picks the category table; codes outside the convention
// resolve only when a lineage was registered under the code itself. The
// exact code is tried first, then the normalized base code. Read-only and
// idempotent; safe to call concurrently.
func ResolveBom(ctx context.Context, itemCode string) (*ResolvedBom, error) {
	var category *BomCategory
	if cat, err := CategoryForItemCode(itemCode); err == nil {
		category = &cat
	}

	lineage, err := lookupLineage(ctx, itemCode, category)
	if err != nil {
		return nil, err
	}

	version, err := GetActiveBomVersion(ctx, lineage.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, &UnresolvableBomError{ItemCode: itemCode, Reason: "no active BOM version for " + lineage.ProductCode}
	}
	if err != nil {
		return nil, err
	}

	return &ResolvedBom{Lineage: lineage, Version: version}, nil
}

func lookupLineage(ctx context.Context, itemCode string, category *BomCategory) (*BomLineage, error) {
	exact := strings.TrimSpace(itemCode)
	base := NormalizeItemCode(itemCode)

	candidates := []string{exact}
	if base != exact {
		candidates = append(candidates, base)
	}
	for _, code := range candidates {
		if code == "" {
			continue
		}
		lineage, err := getResolvableLineage(ctx, code, category)
		if err == nil {
			return lineage, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, &UnresolvableBomError{ItemCode: itemCode, Reason: "no lineage for " + base}
}

func getResolvableLineage(ctx context.Context, productCode string, category *BomCategory) (*BomLineage, error) {
	lineage, err := GetBomLineageByCode(ctx, productCode)
	if err != nil {
		return nil, err
	}
	if lineage.IsArchived != nil && *lineage.IsArchived {
		return nil, ErrNotFound
	}
	if category != nil && lineage.Category != *category {
		return nil, ErrNotFound
	}
	return lineage, nil
}
