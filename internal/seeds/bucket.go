package seeds

import (
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
)

// Common ambient window widths used by the front-end.
const (
	SecondBucket = time.Second
	SpawnBucket  = 750 * time.Millisecond
)

// Bucket is a coarse time window: Index = floor(unixMillis / Width).
type Bucket struct {
	Index int64         `json:"index"`
	Width time.Duration `json:"width"`
}

// BucketAt returns the bucket containing t. A non-positive width falls back
// to SecondBucket.
func BucketAt(t time.Time, width time.Duration) Bucket {
	if width <= 0 {
		width = SecondBucket
	}
	w := width.Milliseconds()
	if w <= 0 {
		w = 1
	}
	ms := t.UnixMilli()
	idx := ms / w
	if ms%w != 0 && ms < 0 {
		idx--
	}
	return Bucket{Index: idx, Width: width}
}

// CurrentBucket reads the bucket from clock.
func CurrentBucket(clock clockwork.Clock, width time.Duration) Bucket {
	return BucketAt(clock.Now(), width)
}

// Start is the first instant inside the bucket.
func (b Bucket) Start() time.Time {
	return time.UnixMilli(b.Index * b.Width.Milliseconds())
}

func (b Bucket) String() string {
	return strconv.FormatInt(b.Index, 10)
}
