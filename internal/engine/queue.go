package engine

import (
	"bytes"

	"github.com/tidwall/btree"
)

// keyLess is the price-time priority relation. The queue's best element
// sorts first: on the bid side the highest price, on the ask side the
// lowest. Equal prices fall back to arrival time, earliest first, and a
// full price-time tie breaks on id bytes so the relation is total and a
// key addresses exactly one element.
//
// The side flip lives in the comparator rather than in two queue types, so
// a single queue implementation serves both sides of a book.
func keyLess(a, b OrderKey) bool {
	if !a.Price.Equal(b.Price) {
		if a.Side == Bid {
			return a.Price.GreaterThan(b.Price)
		}
		return a.Price.LessThan(b.Price)
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return bytes.Compare(a.OrderID[:], b.OrderID[:]) < 0
}

// OrderQueue keeps order keys in price-time priority. Push, Peek, Pop and
// Remove are all O(log n); remove-by-key avoids the linear scan a plain
// binary heap would need for cancels.
//
// The queue stores keys, not orders: quantity lives in the book's index,
// so partial fills never touch the queue. Uniqueness of ids is guaranteed
// upstream by the book; the queue does not validate prices or pairs.
type OrderQueue struct {
	tree *btree.BTreeG[OrderKey]
}

func NewOrderQueue() *OrderQueue {
	return &OrderQueue{tree: btree.NewBTreeG(keyLess)}
}

// Push inserts a key into the queue.
func (q *OrderQueue) Push(key OrderKey) {
	q.tree.Set(key)
}

// Peek returns the highest-priority key without removing it.
func (q *OrderQueue) Peek() (OrderKey, bool) {
	return q.tree.Min()
}

// Pop removes and returns the highest-priority key.
func (q *OrderQueue) Pop() (OrderKey, bool) {
	return q.tree.PopMin()
}

// Remove deletes the element equal to key. Reports whether an element was
// removed. The key must carry the exact price, side and timestamp of the
// resting order; the book reconstructs it from its index.
func (q *OrderQueue) Remove(key OrderKey) bool {
	_, ok := q.tree.Delete(key)
	return ok
}

func (q *OrderQueue) Len() int {
	return q.tree.Len()
}

// Items returns the queued keys in priority order. Intended for
// diagnostics and tests, not the matching path.
func (q *OrderQueue) Items() []OrderKey {
	return q.tree.Items()
}
