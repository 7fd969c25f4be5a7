package triggers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"uitforum/internal/docstore"
)

// Options 调度器参数
type Options struct {
	Workers   int           // 并发 worker 数
	QueueSize int           // 缓冲队列长度
	Timeout   time.Duration // 单次调用超时
	Retries   uint64        // 失败后重投次数，0 表示不重投
}

// Dispatcher delivers committed changes to the matching triggers. Every
// trigger invocation is independent: its own timeout, its own retries, and no
// ordering guarantee relative to other invocations.
type Dispatcher struct {
	registry *Registry
	logger   logrus.FieldLogger
	opts     Options

	queue   chan docstore.Change
	pending sync.WaitGroup

	// 队列满时的溢出缓冲，由唯一的 drain goroutine 按顺序送入 queue
	mu       sync.Mutex
	overflow []docstore.Change
	draining bool

	workers sync.WaitGroup
	quit    chan struct{}
	once    sync.Once
}

func NewDispatcher(registry *Registry, logger logrus.FieldLogger, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Dispatcher{
		registry: registry,
		logger:   logger,
		opts:     opts,
		queue:    make(chan docstore.Change, opts.QueueSize),
		quit:     make(chan struct{}),
	}
}

// Start 启动后台 worker
func (d *Dispatcher) Start() {
	for i := 0; i < d.opts.Workers; i++ {
		d.workers.Add(1)
		go d.worker()
	}
	d.logger.WithField("workers", d.opts.Workers).Info("trigger dispatcher started")
}

// Publish 实现 docstore.Publisher；从不阻塞写入方。
// 队列已满时事件进入溢出缓冲，不丢事件，且最多只有一个额外的 goroutine 在等待入队
func (d *Dispatcher) Publish(change docstore.Change) {
	d.pending.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.overflow) == 0 {
		select {
		case d.queue <- change:
			return
		default:
		}
	}
	d.overflow = append(d.overflow, change)
	if !d.draining {
		d.draining = true
		d.logger.WithField("path", change.Path).Warn("trigger queue full, delivery delayed")
		go d.drain()
	}
}

func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.overflow) == 0 {
			d.draining = false
			d.mu.Unlock()
			return
		}
		change := d.overflow[0]
		d.overflow[0] = docstore.Change{}
		d.overflow = d.overflow[1:]
		d.mu.Unlock()

		select {
		case d.queue <- change:
		case <-d.quit:
			d.mu.Lock()
			dropped := len(d.overflow) + 1
			d.overflow = nil
			d.draining = false
			d.mu.Unlock()
			d.logger.WithField("dropped", dropped).Warn("dispatcher stopped with undelivered events")
			d.pending.Add(-dropped)
			return
		}
	}
}

// Backlog 当前排队（含溢出缓冲）但尚未被 worker 取走的事件数
func (d *Dispatcher) Backlog() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue) + len(d.overflow)
}

// Flush 等待所有已发布的事件（包括处理过程中产生的新事件）处理完成
func (d *Dispatcher) Flush() {
	d.pending.Wait()
}

// Stop waits for in-flight events with the given deadline, then stops the workers.
func (d *Dispatcher) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("trigger dispatcher: %w", ctx.Err())
	}
	d.once.Do(func() { close(d.quit) })
	d.workers.Wait()
	return err
}

func (d *Dispatcher) worker() {
	defer d.workers.Done()
	for {
		select {
		case change := <-d.queue:
			d.handle(change)
			d.pending.Done()
		case <-d.quit:
			return
		}
	}
}

func (d *Dispatcher) handle(change docstore.Change) {
	bindings, events := d.registry.Match(change)
	for i, b := range bindings {
		d.invoke(b, events[i])
	}
}

func (d *Dispatcher) invoke(b Binding, ev Event) {
	logger := d.logger.WithFields(logrus.Fields{
		"function": b.Name,
		"kind":     ev.Kind,
		"path":     ev.Path,
	})

	var policy backoff.BackOff = backoff.NewExponentialBackOff()
	policy = backoff.WithMaxRetries(policy, d.opts.Retries)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
		defer cancel()
		err := d.call(ctx, b, ev)
		if err != nil && attempt <= int(d.opts.Retries) {
			logger.WithError(err).WithField("attempt", attempt).Warn("function failed, redelivering")
		}
		return err
	}, policy)
	if err != nil {
		logger.WithError(err).Error("function failed")
		return
	}
	logger.Debug("function finished")
}

func (d *Dispatcher) call(ctx context.Context, b Binding, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = backoff.Permanent(fmt.Errorf("panic in %s: %v", b.Name, r))
		}
	}()
	return b.Handler(ctx, ev)
}
