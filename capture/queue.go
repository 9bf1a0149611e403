package capture

import (
	"errors"
	"sync"
)

var ErrQueueStopped = errors.New("transmit queue stopped")

// txQueue is the fast transmit path. Frames are copied into preallocated buffers while more
// frames are announced, and written out together once a frame arrives with more=false or the
// queue is full.
type txQueue struct {
	lock   sync.Mutex
	write  func([]byte) error
	bufs   [][]byte
	n      int
	frozen bool
}

func newTxQueue(depth int, write func([]byte) error) *txQueue {
	if depth < 1 {
		depth = 1
	}
	return &txQueue{write: write, bufs: make([][]byte, depth)}
}

func (q *txQueue) push(data []byte, more bool) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.frozen {
		return ErrQueueStopped
	}
	q.bufs[q.n] = append(q.bufs[q.n][:0], data...)
	q.n++
	if !more || q.n == len(q.bufs) {
		return q.flushLocked()
	}
	return nil
}

func (q *txQueue) flushLocked() (err error) {
	for i := 0; i < q.n; i++ {
		if werr := q.write(q.bufs[i]); werr != nil && err == nil {
			err = werr
		}
	}
	q.n = 0
	return
}

func (q *txQueue) flush() error {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.flushLocked()
}

// freeze writes out whatever is pending and refuses frames from then on.
func (q *txQueue) freeze() error {
	q.lock.Lock()
	defer q.lock.Unlock()
	err := q.flushLocked()
	q.frozen = true
	return err
}

func (q *txQueue) stopped() bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.frozen
}

func (q *txQueue) pending() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.n
}
