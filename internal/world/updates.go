package world

import "github.com/vogiaan1904/pelotond/internal/models"

type queuedFrame struct {
	data       []byte
	expire     int64
	enqueuedAt int64
}

// updateQueues holds one bounded FIFO mailbox per online human. When a
// mailbox is full the oldest frame is dropped.
type updateQueues struct {
	depth   int
	byID    map[models.ParticipantID][]queuedFrame
	dropped uint64
}

func newUpdateQueues(depth int) *updateQueues {
	if depth <= 0 {
		depth = 1
	}
	return &updateQueues{depth: depth, byID: make(map[models.ParticipantID][]queuedFrame)}
}

// enqueue shares data between recipients; frames are never mutated after
// encoding.
func (q *updateQueues) enqueue(id models.ParticipantID, f queuedFrame) {
	entries := q.byID[id]
	if len(entries) >= q.depth {
		n := len(entries) - q.depth + 1
		q.dropped += uint64(n)
		entries = entries[n:]
	}
	q.byID[id] = append(entries, f)
}

// drain empties the mailbox and returns what has not expired at now.
func (q *updateQueues) drain(id models.ParticipantID, now int64) [][]byte {
	entries, ok := q.byID[id]
	if !ok {
		return nil
	}
	delete(q.byID, id)

	out := make([][]byte, 0, len(entries))
	for _, e := range entries {
		if e.expire != 0 && now > e.expire {
			continue
		}
		out = append(out, e.data)
	}
	return out
}

func (q *updateQueues) pending(id models.ParticipantID) int {
	return len(q.byID[id])
}

func (q *updateQueues) remove(id models.ParticipantID) {
	delete(q.byID, id)
}
