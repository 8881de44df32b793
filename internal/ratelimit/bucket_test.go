package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestBucket(capacity int, window time.Duration) (*Bucket, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	bucket := NewBucket(capacity, window)
	bucket.now = func() time.Time { return now }
	return bucket, &now
}

func TestBucketCapacityWithinWindow(t *testing.T) {
	bucket, _ := newTestBucket(5, time.Minute)

	for i := 0; i < 5; i++ {
		assert.True(t, bucket.Allow("k"), "call %d should be allowed", i+1)
	}
	assert.False(t, bucket.Allow("k"), "6th call must be denied")
	assert.False(t, bucket.Allow("k"), "denied calls must not free up budget")
}

func TestBucketResetsAfterWindow(t *testing.T) {
	bucket, now := newTestBucket(5, time.Minute)

	for i := 0; i < 5; i++ {
		bucket.Allow("k")
	}
	assert.False(t, bucket.Allow("k"))

	*now = now.Add(61 * time.Second)
	assert.True(t, bucket.Allow("k"), "fresh window should allow again")
}

func TestBucketKeysAreIndependent(t *testing.T) {
	bucket, _ := newTestBucket(2, time.Minute)

	assert.True(t, bucket.Allow("a"))
	assert.True(t, bucket.Allow("a"))
	assert.False(t, bucket.Allow("a"))

	// Exhausting "a" must not touch "b"'s budget.
	assert.True(t, bucket.Allow("b"))
	assert.True(t, bucket.Allow("b"))
	assert.False(t, bucket.Allow("b"))
}

func TestBucketDeniedCallDoesNotMutate(t *testing.T) {
	bucket, now := newTestBucket(1, time.Minute)

	assert.True(t, bucket.Allow("k"))
	for i := 0; i < 10; i++ {
		assert.False(t, bucket.Allow("k"))
	}

	entry, ok := bucket.store.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 1, entry.Count)
	assert.Equal(t, now.Add(time.Minute), entry.ResetAt)
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	bucket, now := newTestBucket(5, time.Minute)

	bucket.Allow("a")
	bucket.Allow("b")
	assert.Equal(t, 0, bucket.Sweep(), "live entries must survive the sweep")

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, bucket.Sweep())

	// Swept keys start a fresh window.
	assert.True(t, bucket.Allow("a"))
}
