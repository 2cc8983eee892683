package memory

import (
	"container/list"
	"encoding"
	"sync"
)

// NewQueue returns an unbounded in-process FIFO. It is the fallback used when
// the workspace disk cannot take more rows.
func NewQueue() *Queue {
	return &Queue{
		buffer: list.New(),
	}
}

// Queue holds result rows (metric values, summary statistics) that could not
// be written to their file queue. Rows are lost if the process exits before
// the sender publishes them.
type Queue struct {
	buffer *list.List
	mx     sync.Mutex
}

func (m *Queue) Eject(limit int) (models []interface{}, err error) {
	m.mx.Lock()
	defer m.mx.Unlock()

	if limit > m.buffer.Len() || limit < 0 {
		limit = m.buffer.Len()
	}

	if limit == 0 {
		return nil, nil
	}

	models = make([]interface{}, 0, limit)
	for e := m.buffer.Front(); e != nil && len(models) < limit; {
		cur := e
		e = e.Next()
		models = append(models, m.buffer.Remove(cur))
	}
	return models, nil
}

func (m *Queue) Push(model encoding.BinaryMarshaler) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.buffer.PushBack(model)
	return nil
}

func (m *Queue) Len() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.buffer.Len()
}
