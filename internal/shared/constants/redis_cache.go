package constants

import "time"

// Centralizes Redis cache keys and TTLs.
// Pattern: slotify:{module}:{operation}:{identifier}

const (
	CACHE_PREFIX = "slotify"
)

// Catalog cache keys. Item metadata is near-static; availability is never
// cached because it reflects live ledger state.
const (
	CACHE_KEY_ITEMS_PUBLISHED = CACHE_PREFIX + ":catalog:items:published"
	CACHE_KEY_ITEM_DETAIL     = CACHE_PREFIX + ":catalog:item:" // + item-id
)

const (
	TTL_ITEMS_PUBLISHED = 2 * time.Minute
	TTL_ITEM_DETAIL     = 5 * time.Minute
)

// Invalidation patterns for catalog writes.
const (
	PATTERN_INVALIDATE_CATALOG = CACHE_PREFIX + ":catalog:*"
)

func BuildItemDetailKey(itemID string) string {
	return CACHE_KEY_ITEM_DETAIL + itemID
}
