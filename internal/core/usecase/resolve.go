package usecase

import (
	"strings"

	"github.com/mkorchagin/content-pipeline/internal/core/domain"
)

// ResolveLabel maps a raw classifier label to a primary category. Tiers are
// checked in order and short-circuit on first match:
//
//  1. exact: the label equals an active category name, case-insensitively
//  2. alias: the normalized label matches a registered alias
//  3. fallback: everything else, including an absent label
//
// Total function: every input, including a complete classification failure
// upstream, resolves to some category.
func ResolveLabel(snap *domain.Snapshot, rawLabel string) domain.ResolutionResult {
	trimmed := strings.TrimSpace(rawLabel)

	if trimmed != "" {
		if cat, ok := snap.CategoryByName(trimmed); ok {
			return domain.ResolutionResult{
				Category:   cat,
				Tier:       domain.TierExact,
				Confidence: domain.ExactConfidence,
				RawLabel:   rawLabel,
			}
		}
		if cat, _, ok := snap.AliasTarget(trimmed); ok {
			return domain.ResolutionResult{
				Category:   cat,
				Tier:       domain.TierAlias,
				Confidence: domain.AliasConfidence,
				RawLabel:   rawLabel,
			}
		}
	}

	return domain.ResolutionResult{
		Category:   snap.Fallback(),
		Tier:       domain.TierFallback,
		Confidence: domain.FallbackConfidence,
		RawLabel:   rawLabel,
	}
}
