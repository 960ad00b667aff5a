package cache

type node[T any] struct {
	item T
	next *node[T]
}

// Queue singly linked fifo, zero value is an empty queue.
type Queue[T any] struct {
	head *node[T]
	tail *node[T]
	size int
}

// NewQueue creates queue holding first item
func NewQueue[T any](first T) *Queue[T] {
	q := &Queue[T]{}
	q.Push(first)

	return q
}

func (q *Queue[T]) Push(item T) {
	n := &node[T]{item: item}

	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}

	q.tail = n
	q.size++
}

// Pop removes head item, false if queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	if q.head == nil {
		return
	}

	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.size--

	return n.item, true
}

func (q *Queue[T]) Len() int {
	return q.size
}

func (q *Queue[T]) Empty() bool {
	return q.head == nil
}

// Range visits items from head to tail without removing them.
func (q *Queue[T]) Range(fn func(item T) bool) {
	for n := q.head; n != nil; n = n.next {
		if !fn(n.item) {
			return
		}
	}
}

// Free drops all nodes, release is called on every item if not nil.
func (q *Queue[T]) Free(release func(T)) {
	for {
		item, ok := q.Pop()
		if !ok {
			return
		}

		if release != nil {
			release(item)
		}
	}
}
