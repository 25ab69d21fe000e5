package counter

import (
	"context"
	"strconv"

	"github.com/siteforge/SiteForge/internal/pkg/cache"
)

const reconcileCountersKey = "billing:counters:reconcile"

// Counter field names within the reconcile hash.
const (
	FieldRuns          = "runs"
	FieldCancellations = "cancellations"
	FieldReactivations = "reactivations"
	FieldToggles       = "toggles"
	FieldNotices       = "notices"
)

// Add increments one reconcile counter field in Redis.
func Add(field string, n int) error {
	if n == 0 && field != FieldRuns {
		return nil
	}
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, reconcileCountersKey, field, int64(n)).Err()
}

// Snapshot reads all reconcile counters. Missing fields read as zero.
func Snapshot() (map[string]int64, error) {
	ctx := context.Background()
	raw, err := cache.GetClient().HGetAll(ctx, reconcileCountersKey).Result()
	if err != nil {
		return nil, err
	}
	out := map[string]int64{
		FieldRuns:          0,
		FieldCancellations: 0,
		FieldReactivations: 0,
		FieldToggles:       0,
		FieldNotices:       0,
	}
	for field, val := range raw {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			out[field] = n
		}
	}
	return out, nil
}
