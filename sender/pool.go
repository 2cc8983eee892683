package sender

import (
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/farwydi/sferror"
)

type NewQueueFunc = func(model sferror.DataModel) (sferror.Queue, error)

func NewPool(newQueue NewQueueFunc) *Pool {
	return &Pool{
		newQueue:  newQueue,
		openQueue: map[string]sferror.Queue{},
	}
}

// Pool routes each row to the queue of its insert statement, opening queues
// lazily.
type Pool struct {
	newQueue  NewQueueFunc
	ofsMx     sync.Mutex
	order     []string
	openQueue map[string]sferror.Queue
}

func (p *Pool) getQueue(model sferror.DataModel) (sferror.Queue, error) {
	query := model.SQL()
	queue, isInit := p.openQueue[query]
	if !isInit {
		var err error
		queue, err = p.newQueue(model)
		if err != nil {
			return nil, err
		}

		p.openQueue[query] = queue
		p.order = append(p.order, query)
	}

	return queue, nil
}

// Open makes sure the queue for model exists. Durable queues left over by a
// previous process only become visible to Eject once opened.
func (p *Pool) Open(model sferror.DataModel) error {
	p.ofsMx.Lock()
	defer p.ofsMx.Unlock()

	_, err := p.getQueue(model)
	return err
}

func (p *Pool) Append(models []sferror.DataModel) error {
	p.ofsMx.Lock()
	defer p.ofsMx.Unlock()

	for _, model := range models {
		queue, err := p.getQueue(model)
		if err != nil {
			return err
		}

		err = queue.Push(model)
		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Pool) Push(model sferror.DataModel) (err error) {
	p.ofsMx.Lock()
	defer p.ofsMx.Unlock()

	queue, err := p.getQueue(model)
	if err != nil {
		return err
	}

	return queue.Push(model)
}

func (p *Pool) Len() int {
	p.ofsMx.Lock()
	defer p.ofsMx.Unlock()

	n := 0
	for _, queue := range p.openQueue {
		n += queue.Len()
	}
	return n
}

// Eject takes up to limit rows, visiting queues in the order they were
// opened. A negative limit drains every queue.
func (p *Pool) Eject(limit int) (models []sferror.DataModel, err error) {
	p.ofsMx.Lock()
	defer p.ofsMx.Unlock()

	maxLimit := 0
	for _, queue := range p.openQueue {
		maxLimit += queue.Len()
	}

	if limit > maxLimit || limit < 0 {
		limit = maxLimit
	}

	if limit == 0 {
		return nil, nil
	}

	models = make([]sferror.DataModel, 0, limit)
	for _, query := range p.order {
		ejectModels, err := p.openQueue[query].Eject(limit - len(models))
		for _, em := range ejectModels {
			if em != nil {
				models = append(models, em.(sferror.DataModel))
			}
		}
		if err != nil {
			return models, err
		}

		if len(models) >= limit {
			return models, nil
		}
	}
	return models, nil
}

// Close releases every queue holding a file.
func (p *Pool) Close() error {
	p.ofsMx.Lock()
	defer p.ofsMx.Unlock()

	var err error
	for _, queue := range p.openQueue {
		if c, ok := queue.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	p.openQueue = map[string]sferror.Queue{}
	p.order = nil
	return err
}
