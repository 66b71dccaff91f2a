package reader

import (
	"sync"

	"github.com/blue-robotics/nmea-bridge/sentence"
)

// RecentBuffer keeps the last capacity sentences, most-recent first, for
// the HTTP control surface's raw-feed view.
type RecentBuffer struct {
	mu       sync.Mutex
	items    []sentence.Sentence
	capacity int
}

func NewRecentBuffer(capacity int) *RecentBuffer {
	return &RecentBuffer{capacity: capacity}
}

func (b *RecentBuffer) Push(s sentence.Sentence) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append([]sentence.Sentence{s}, b.items...)
	if len(b.items) > b.capacity {
		b.items = b.items[:b.capacity]
	}
}

func (b *RecentBuffer) Items() []sentence.Sentence {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]sentence.Sentence, len(b.items))
	copy(out, b.items)
	return out
}
