package recording

import (
	"github.com/INLOpen/skiplist"
)

// frameKey orders frames by timestamp, then by position.
type frameKey struct {
	timestamp int64
	frame     int
}

func compareFrameKeys(a, b frameKey) int {
	if a.timestamp != b.timestamp {
		if a.timestamp < b.timestamp {
			return -1
		}
		return 1
	}
	if a.frame < b.frame {
		return -1
	}
	if a.frame > b.frame {
		return 1
	}
	return 0
}

// FrameIndex maps timestamps to frame positions.
type FrameIndex struct {
	list *skiplist.SkipList[frameKey, int]
	size int
}

// NewFrameIndex creates an empty index.
func NewFrameIndex() *FrameIndex {
	return &FrameIndex{
		list: skiplist.NewWithComparator[frameKey, int](compareFrameKeys),
	}
}

// Add records that frame has the given timestamp.
func (fi *FrameIndex) Add(timestamp int64, frame int) {
	if old := fi.list.Insert(frameKey{timestamp: timestamp, frame: frame}, frame); old == nil {
		fi.size++
	}
}

// Len returns the number of indexed frames.
func (fi *FrameIndex) Len() int { return fi.size }

// SeekFrame returns the first frame whose timestamp is at or after timestamp.
func (fi *FrameIndex) SeekFrame(timestamp int64) (int, bool) {
	node, ok := fi.list.Seek(frameKey{timestamp: timestamp, frame: -1})
	if !ok {
		return 0, false
	}
	return node.Value(), true
}

// Frames returns all frame positions in timestamp order.
func (fi *FrameIndex) Frames() []int {
	out := make([]int, 0, fi.size)
	iter := fi.list.NewIterator()
	for iter.Next() {
		out = append(out, iter.Value())
	}
	return out
}
