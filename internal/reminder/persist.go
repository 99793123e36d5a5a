package reminder

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// persister writes the latest reminder snapshot in the background. Writes
// coalesce: only the newest snapshot pending at wake-up is saved.
type persister struct {
	store  StateStore
	logger *log.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	latest  []Reminder
	seq     uint64
	written uint64
	closed  bool

	kick chan struct{}
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func newPersister(store StateStore, logger *log.Logger) *persister {
	p := &persister{
		store:  store,
		logger: logger,
		kick:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

func (p *persister) enqueue(snapshot []Reminder) {
	p.mu.Lock()
	p.latest = snapshot
	p.seq++
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.write()
		return
	}
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.kick:
			p.write()
		case <-p.quit:
			p.write()
			return
		}
	}
}

func (p *persister) write() {
	p.mu.Lock()
	if p.written == p.seq {
		p.mu.Unlock()
		return
	}
	snapshot, seq := p.latest, p.seq
	p.mu.Unlock()

	if p.store != nil {
		if err := p.store.Save(context.Background(), snapshot); err != nil {
			p.logger.Error("persist reminders", "err", err, "count", len(snapshot))
		}
	}

	p.mu.Lock()
	p.written = seq
	p.cond.Broadcast()
	p.mu.Unlock()
}

// flush blocks until every snapshot enqueued so far has been handed to the store.
func (p *persister) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	target := p.seq
	for p.written < target {
		p.cond.Wait()
	}
}

func (p *persister) close() {
	p.once.Do(func() { close(p.quit) })
	<-p.done
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	// a snapshot may have slipped in between the final write and closed
	p.write()
}
