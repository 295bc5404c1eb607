package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/payengine/internal/domain"
)

// claimScript sets KEYS[1] to ARGV[1] unless it exists and returns the
// previous owner, or nil when the claim succeeded. ARGV[2] is a TTL in
// milliseconds, 0 for none.
var claimScript = redis.NewScript(`
local owner = redis.call('GET', KEYS[1])
if owner then
	return owner
end
if tonumber(ARGV[2]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return false
`)

// releaseScript deletes KEYS[1] only while it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// TxIndex implements usecase.TxIndex in Redis so several processes can
// share one transaction id space.
type TxIndex struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTxIndex creates a new TxIndex. A zero ttl keeps claims forever.
func NewTxIndex(client *redis.Client, ttl time.Duration) *TxIndex {
	return &TxIndex{
		client: client,
		prefix: "payengine:tx:",
		ttl:    ttl,
	}
}

// Claim atomically registers id for client.
func (i *TxIndex) Claim(ctx context.Context, id domain.TxID, client domain.ClientID) (domain.ClientID, bool, error) {
	owner, err := claimScript.Run(ctx, i.client,
		[]string{i.key(id)},
		strconv.FormatUint(uint64(client), 10),
		i.ttl.Milliseconds(),
	).Text()
	if errors.Is(err, redis.Nil) {
		return client, true, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("claim tx %d: %w", id, err)
	}

	parsed, err := parseOwner(owner)
	if err != nil {
		return 0, false, fmt.Errorf("claim tx %d: %w", id, err)
	}
	return parsed, false, nil
}

// Owner reads the client holding id without claiming it.
func (i *TxIndex) Owner(ctx context.Context, id domain.TxID) (domain.ClientID, bool, error) {
	owner, err := i.client.Get(ctx, i.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("owner of tx %d: %w", id, err)
	}

	parsed, err := parseOwner(owner)
	if err != nil {
		return 0, false, fmt.Errorf("owner of tx %d: %w", id, err)
	}
	return parsed, true, nil
}

// Release drops the claim if client still owns id.
func (i *TxIndex) Release(ctx context.Context, id domain.TxID, client domain.ClientID) error {
	err := releaseScript.Run(ctx, i.client,
		[]string{i.key(id)},
		strconv.FormatUint(uint64(client), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("release tx %d: %w", id, err)
	}
	return nil
}

func parseOwner(owner string) (domain.ClientID, error) {
	parsed, err := strconv.ParseUint(owner, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("corrupt owner %q: %w", owner, err)
	}
	return domain.ClientID(parsed), nil
}

func (i *TxIndex) key(id domain.TxID) string {
	return i.prefix + strconv.FormatUint(uint64(id), 10)
}
