package notify

import (
	"context"
	"sync"

	"github.com/ayusman/drishti/internal/attention"
	"github.com/ayusman/drishti/internal/log"
)

// Dispatcher fans alerts out to every subscribed plugin without blocking
// the caller.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher over the plugins known to manager.
func NewDispatcher(manager *Manager, executor *Executor) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Dispatch sends rec to the plugins subscribed to EventAlert. It returns
// immediately; failures are logged.
func (d *Dispatcher) Dispatch(rec attention.AlertRecord) {
	if d.ctx.Err() != nil {
		return
	}

	alert := AlertOf(rec)
	for _, p := range d.manager.Subscribers(EventAlert) {
		d.wg.Add(1)
		go func(p *Plugin) {
			defer d.wg.Done()
			d.run(p, &Request{Event: EventAlert, Alert: &alert})
		}(p)
	}
}

func (d *Dispatcher) run(p *Plugin, req *Request) {
	resp, err := d.executor.Execute(d.ctx, p, req)
	if err != nil {
		log.Warn("notifier failed", "plugin", p.Manifest.Name, "error", err)
		return
	}
	if !resp.Success {
		log.Warn("notifier reported failure", "plugin", p.Manifest.Name, "error", resp.Error)
		return
	}
	log.Debug("notifier delivered alert", "plugin", p.Manifest.Name, "person_id", req.Alert.PersonID)
}

// Wait blocks until all in-flight notifications finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels in-flight notifications and waits for them.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}
