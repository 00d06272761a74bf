package sync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_LockUnlock(t *testing.T) {
	m := NewShardedMutex()

	m.Lock("42:DATA_SHARING")
	m.Unlock("42:DATA_SHARING")

	// Empty key defaults to shard 0
	m.Lock("")
	m.Unlock("")
}

func TestShardedMutex_SameKeySerializes(t *testing.T) {
	m := NewShardedMutex()
	counter := 0
	var wg sync.WaitGroup

	for range 200 {
		wg.Go(func() {
			m.Lock("42:PHOTO_PUBLICATION")
			defer m.Unlock("42:PHOTO_PUBLICATION")
			counter++
		})
	}
	wg.Wait()

	assert.Equal(t, 200, counter)
}

func TestShardedMutex_TryLock(t *testing.T) {
	m := NewShardedMutex()
	m.Lock("scope")
	assert.False(t, m.TryLock("scope"))
	m.Unlock("scope")
	assert.True(t, m.TryLock("scope"))
	m.Unlock("scope")
}

func TestShardedMutex_ShardDistribution(t *testing.T) {
	m := NewShardedMutex()
	shards := make(map[int]bool)
	keys := []string{"1:DATA_SHARING", "2:DATA_SHARING", "1:PHOTO_PUBLICATION", "3:HEALTH_RECORDS", "4:ANALYTICS", "5:TRANSPORT"}

	for _, key := range keys {
		shards[m.shardFor(key)] = true
	}

	assert.GreaterOrEqual(t, len(shards), 3, "expected keys to distribute across multiple shards")
}

func TestHashString(t *testing.T) {
	assert.Equal(t, hashString("scope"), hashString("scope"))
	assert.NotEqual(t, hashString("42:A"), hashString("42:B"))
	assert.Equal(t, uint32(2166136261), hashString(""))
}
