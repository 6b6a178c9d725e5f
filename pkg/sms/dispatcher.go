package sms

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/phone"
)

// ErrQueueFull is returned by Enqueue when every worker is busy and the buffer is full.
var ErrQueueFull = errors.New("sms queue full")

// ErrDispatcherClosed is returned by Enqueue after Close.
var ErrDispatcherClosed = errors.New("sms dispatcher closed")

// DispatcherParams wires a Dispatcher.
type DispatcherParams struct {
	Sender  Sender
	Logger  *logger.Logger
	Workers int
	Buffer  int
	Timeout time.Duration
}

// Dispatcher delivers messages on a fixed pool of goroutines. Delivery
// failures are logged and never reach the caller.
type Dispatcher struct {
	sender  Sender
	logg    *logger.Logger
	timeout time.Duration

	queue  chan Message
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(p DispatcherParams) (*Dispatcher, error) {
	if p.Sender == nil {
		return nil, errors.New("sms sender required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Workers <= 0 {
		p.Workers = 1
	}
	if p.Buffer <= 0 {
		p.Buffer = p.Workers * 16
	}
	if p.Timeout <= 0 {
		p.Timeout = 10 * time.Second
	}

	d := &Dispatcher{
		sender:  p.Sender,
		logg:    p.Logger,
		timeout: p.Timeout,
		queue:   make(chan Message, p.Buffer),
	}
	for i := 0; i < p.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d, nil
}

// Enqueue schedules msg without blocking the caller.
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits for in-flight deliveries or ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	logCtx := d.logg.WithField(ctx, "receiver", phone.Mask(msg.To))
	if err := d.sender.Send(ctx, msg); err != nil {
		d.logg.Error(logCtx, "sms.delivery_failed", err)
		return
	}
	d.logg.Debug(logCtx, "sms.delivered")
}
