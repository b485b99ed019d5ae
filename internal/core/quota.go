package core

import (
	"sort"
	"time"
)

// QuotaBucket is one upstream-reported fragment of quota for a model/token
// type, with its own remaining fraction and reset time. A provider may
// report several buckets per model.
type QuotaBucket struct {
	ModelID           string
	RemainingFraction float64 // 0..1
	ResetTime         *time.Time
}

// AggregateQuotas reduces heterogeneous per-model buckets into one usable
// summary. Per model the bucket with the lowest remaining fraction wins and
// its reset time travels with it; the overall percent is the minimum across
// models (100 when there are no buckets) and the overall reset is the
// earliest known one. Worst case is authoritative: the user must be warned
// by the single tightest constraint, not an average.
func AggregateQuotas(buckets []QuotaBucket) (quotas []ModelQuota, overallPercent float64, overallReset *time.Time) {
	type worst struct {
		fraction float64
		reset    *time.Time
	}
	byModel := make(map[string]worst)

	for _, b := range buckets {
		if cur, ok := byModel[b.ModelID]; !ok || b.RemainingFraction < cur.fraction {
			byModel[b.ModelID] = worst{fraction: b.RemainingFraction, reset: b.ResetTime}
		}
	}

	quotas = make([]ModelQuota, 0, len(byModel))
	for modelID, w := range byModel {
		quotas = append(quotas, ModelQuota{
			ModelID:     modelID,
			PercentLeft: w.fraction * 100,
			ResetTime:   w.reset,
		})
	}
	sort.Slice(quotas, func(i, j int) bool { return quotas[i].ModelID < quotas[j].ModelID })

	overallPercent = 100
	for _, q := range quotas {
		if q.PercentLeft < overallPercent {
			overallPercent = q.PercentLeft
		}
		if q.ResetTime != nil && (overallReset == nil || q.ResetTime.Before(*overallReset)) {
			overallReset = q.ResetTime
		}
	}

	return quotas, overallPercent, overallReset
}
