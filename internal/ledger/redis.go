package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"slotify/internal/clock"
)

// Redis is a ledger backed by Redis, for deployments running more than one
// instance. Each script runs atomically, which serializes all operations on
// an item's units; hold keys carry the TTL so Redis expires abandoned holds
// on its own.
type Redis struct {
	client *redis.Client
	clock  clock.Clock
}

// NewRedis creates a Redis-backed ledger.
func NewRedis(client *redis.Client, clk clock.Clock) *Redis {
	return &Redis{client: client, clock: clk}
}

func holdKey(itemID, unitID string) string {
	return "slotify:hold:" + itemID + ":" + unitID
}

func consumedKey(itemID, unitID string) string {
	return "slotify:consumed:" + itemID + ":" + unitID
}

// Grants free units to the session, refreshes its own holds, and reports the
// rest as conflicts. Returns {#granted, granted..., conflicted...}.
const luaAcquire = `
-- ARGV[1] = item_id
-- ARGV[2] = session_id
-- ARGV[3] = ttl_seconds
-- ARGV[4..N] = unit_ids

local item_id = ARGV[1]
local session_id = ARGV[2]
local ttl = tonumber(ARGV[3])

local granted = {}
local conflicted = {}

for i = 4, #ARGV do
    local unit_id = ARGV[i]
    local hold_key = "slotify:hold:" .. item_id .. ":" .. unit_id
    local consumed_key = "slotify:consumed:" .. item_id .. ":" .. unit_id

    if redis.call("EXISTS", consumed_key) == 1 then
        conflicted[#conflicted + 1] = unit_id
    else
        local owner = redis.call("GET", hold_key)
        if owner and owner ~= session_id then
            conflicted[#conflicted + 1] = unit_id
        else
            redis.call("SETEX", hold_key, ttl, session_id)
            granted[#granted + 1] = unit_id
        end
    end
end

local result = {#granted}
for i = 1, #granted do result[#result + 1] = granted[i] end
for i = 1, #conflicted do result[#result + 1] = conflicted[i] end
return result
`

// Deletes only the holds owned by the session; anything else is a no-op.
const luaRelease = `
local item_id = ARGV[1]
local session_id = ARGV[2]

for i = 3, #ARGV do
    local hold_key = "slotify:hold:" .. item_id .. ":" .. ARGV[i]
    if redis.call("GET", hold_key) == session_id then
        redis.call("DEL", hold_key)
    end
end
return 1
`

// Verifies the whole set before mutating anything: if any unit is stale the
// script returns {0, stale...} and no unit changes state.
const luaConsume = `
local item_id = ARGV[1]
local session_id = ARGV[2]

local stale = {}
for i = 3, #ARGV do
    local unit_id = ARGV[i]
    local hold_key = "slotify:hold:" .. item_id .. ":" .. unit_id
    local consumed_key = "slotify:consumed:" .. item_id .. ":" .. unit_id

    if redis.call("EXISTS", consumed_key) == 1 then
        stale[#stale + 1] = unit_id
    elseif redis.call("GET", hold_key) ~= session_id then
        stale[#stale + 1] = unit_id
    end
end

if #stale > 0 then
    local result = {0}
    for i = 1, #stale do result[#result + 1] = stale[i] end
    return result
end

for i = 3, #ARGV do
    local unit_id = ARGV[i]
    redis.call("SET", "slotify:consumed:" .. item_id .. ":" .. unit_id, session_id)
    redis.call("DEL", "slotify:hold:" .. item_id .. ":" .. unit_id)
end
return {1}
`

func (r *Redis) Acquire(ctx context.Context, itemID string, unitIDs []string, sessionID string, ttl time.Duration) (AcquireResult, error) {
	if len(unitIDs) == 0 {
		return AcquireResult{}, ErrNoUnits
	}

	args := make([]interface{}, 0, len(unitIDs)+3)
	args = append(args, itemID, sessionID, strconv.Itoa(int(ttl.Seconds())))
	for _, unitID := range unitIDs {
		args = append(args, unitID)
	}

	raw, err := r.client.Eval(ctx, luaAcquire, nil, args...).Result()
	if err != nil {
		return AcquireResult{}, fmt.Errorf("ledger acquire script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) == 0 {
		return AcquireResult{}, fmt.Errorf("ledger acquire script: unexpected result %T", raw)
	}

	grantedCount, ok := values[0].(int64)
	if !ok {
		return AcquireResult{}, fmt.Errorf("ledger acquire script: invalid grant count")
	}

	result := AcquireResult{ExpiresAt: r.clock.Now().Add(ttl)}
	for i, v := range values[1:] {
		unitID, _ := v.(string)
		if int64(i) < grantedCount {
			result.Granted = append(result.Granted, unitID)
		} else {
			result.Conflicted = append(result.Conflicted, unitID)
		}
	}
	return result, nil
}

func (r *Redis) Release(ctx context.Context, itemID string, unitIDs []string, sessionID string) error {
	if len(unitIDs) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(unitIDs)+2)
	args = append(args, itemID, sessionID)
	for _, unitID := range unitIDs {
		args = append(args, unitID)
	}

	if err := r.client.Eval(ctx, luaRelease, nil, args...).Err(); err != nil {
		return fmt.Errorf("ledger release script: %w", err)
	}
	return nil
}

func (r *Redis) Consume(ctx context.Context, itemID string, unitIDs []string, sessionID string) error {
	if len(unitIDs) == 0 {
		return ErrNoUnits
	}

	args := make([]interface{}, 0, len(unitIDs)+2)
	args = append(args, itemID, sessionID)
	for _, unitID := range unitIDs {
		args = append(args, unitID)
	}

	raw, err := r.client.Eval(ctx, luaConsume, nil, args...).Result()
	if err != nil {
		return fmt.Errorf("ledger consume script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) == 0 {
		return fmt.Errorf("ledger consume script: unexpected result %T", raw)
	}

	if success, _ := values[0].(int64); success == 1 {
		return nil
	}

	stale := make([]string, 0, len(values)-1)
	for _, v := range values[1:] {
		if unitID, ok := v.(string); ok {
			stale = append(stale, unitID)
		}
	}
	return &StaleHoldError{Units: stale}
}

func (r *Redis) Reinstate(ctx context.Context, itemID string, unitIDs []string) error {
	if len(unitIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(unitIDs))
	for _, unitID := range unitIDs {
		keys = append(keys, consumedKey(itemID, unitID))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("ledger reinstate: %w", err)
	}
	return nil
}

func (r *Redis) Validate(ctx context.Context, itemID string, unitIDs []string, sessionID string) ([]string, error) {
	pipe := r.client.Pipeline()
	owners := make([]*redis.StringCmd, len(unitIDs))
	for i, unitID := range unitIDs {
		owners[i] = pipe.Get(ctx, holdKey(itemID, unitID))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("ledger validate: %w", err)
	}

	var lapsed []string
	for i, cmd := range owners {
		owner, err := cmd.Result()
		if err == redis.Nil || owner != sessionID {
			lapsed = append(lapsed, unitIDs[i])
		}
	}
	return lapsed, nil
}

func (r *Redis) States(ctx context.Context, itemID string, unitIDs []string) (map[string]UnitState, error) {
	pipe := r.client.Pipeline()
	held := make([]*redis.IntCmd, len(unitIDs))
	consumed := make([]*redis.IntCmd, len(unitIDs))
	for i, unitID := range unitIDs {
		held[i] = pipe.Exists(ctx, holdKey(itemID, unitID))
		consumed[i] = pipe.Exists(ctx, consumedKey(itemID, unitID))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("ledger states: %w", err)
	}

	states := make(map[string]UnitState, len(unitIDs))
	for i, unitID := range unitIDs {
		switch {
		case consumed[i].Val() > 0:
			states[unitID] = UnitConsumed
		case held[i].Val() > 0:
			states[unitID] = UnitHeld
		default:
			states[unitID] = UnitFree
		}
	}
	return states, nil
}

// PreloadScripts loads the Lua scripts so the first booking doesn't pay the
// compile cost.
func (r *Redis) PreloadScripts(ctx context.Context) error {
	for _, script := range []string{luaAcquire, luaRelease, luaConsume} {
		if err := r.client.ScriptLoad(ctx, script).Err(); err != nil {
			return fmt.Errorf("failed to load ledger script: %w", err)
		}
	}
	return nil
}
