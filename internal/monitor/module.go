// Package monitor ties the event pipeline and the state tree together. A
// Module owns the queue, the dedup register, the dispatcher and the updater
// for one machine/module pair; Nodes are the per-component handles that
// application code registers events and attaches counters on.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crimson-sun/vigil/internal/dedup"
	"github.com/crimson-sun/vigil/internal/escalate"
	"github.com/crimson-sun/vigil/internal/model"
	"github.com/crimson-sun/vigil/internal/output"
	"github.com/crimson-sun/vigil/internal/pipeline"
	"github.com/crimson-sun/vigil/internal/queue"
)

// ErrAlreadyDisposed is logged when an event is registered after Close.
// Registration never returns it.
var ErrAlreadyDisposed = errors.New("module already disposed")

const defaultUpdateInterval = time.Second

// Option configures a Module.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	notifier       output.Notifier
	email          output.EmailNotifier
	sms            output.SmsNotifier
	thresholds     escalate.Thresholds
	updateInterval time.Duration
	drainTimeout   time.Duration
	rootSeverity   model.Severity
	onError        func(model.Event, error)
}

// WithLogger sets the logger shared by the module's components.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNotifier sets the log/page channel.
func WithNotifier(n output.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithEmailNotifier sets the email channel.
func WithEmailNotifier(n output.EmailNotifier) Option {
	return func(o *options) { o.email = n }
}

// WithSmsNotifier sets the SMS channel.
func WithSmsNotifier(n output.SmsNotifier) Option {
	return func(o *options) { o.sms = n }
}

// WithThresholds overrides the severity bands.
func WithThresholds(t escalate.Thresholds) Option {
	return func(o *options) { o.thresholds = t }
}

// WithUpdateInterval sets the counter refresh cadence. Zero disables the
// background updater; Update can still be called directly. Default: 1s.
func WithUpdateInterval(d time.Duration) Option {
	return func(o *options) { o.updateInterval = d }
}

// WithDrainTimeout bounds how long Close waits for the queue when its
// context has no deadline.
func WithDrainTimeout(d time.Duration) Option {
	return func(o *options) { o.drainTimeout = d }
}

// WithRootSeverity sets the severity of the root node, inherited by
// components attached without an explicit one. Default: Notify.
func WithRootSeverity(s model.Severity) Option {
	return func(o *options) { o.rootSeverity = s }
}

// WithOnError is called with each event the dispatcher failed on.
func WithOnError(f func(model.Event, error)) Option {
	return func(o *options) { o.onError = f }
}

// Stats is a point-in-time view of a Module.
type Stats struct {
	Queue        queue.Stats
	Dispatch     pipeline.Stats
	DedupEntries int
	Nodes        int
}

// Module is the monitoring scope of one machine/module pair.
type Module struct {
	machine string
	module  string
	logger  *slog.Logger

	dispatcher *pipeline.Dispatcher
	queue      *queue.Queue
	dedup      *dedup.Register

	arenaMu sync.RWMutex
	nodes   map[NodeID]*Node
	nextID  NodeID
	root    *Node

	stopUpdate chan struct{}
	updaterWG  sync.WaitGroup
	ticks      atomic.Int64

	closed    atomic.Bool
	closeOnce sync.Once
}

// New starts a Module writing to storage. Close must be called to stop its
// goroutines and timers.
func New(machine, module string, storage output.Storage, opts ...Option) (*Module, error) {
	if strings.TrimSpace(machine) == "" {
		return nil, fmt.Errorf("monitor: new: %w: machine is empty", model.ErrInvalidArgument)
	}
	if strings.TrimSpace(module) == "" {
		return nil, fmt.Errorf("monitor: new: %w: module is empty", model.ErrInvalidArgument)
	}
	o := options{
		logger:         slog.Default(),
		thresholds:     escalate.DefaultThresholds(),
		updateInterval: defaultUpdateInterval,
		rootSeverity:   model.SeverityNotify,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("monitor: new: %w", err)
	}

	m := &Module{
		machine:    machine,
		module:     module,
		logger:     o.logger.With("machine", machine, "module", module),
		nodes:      make(map[NodeID]*Node),
		stopUpdate: make(chan struct{}),
	}

	popts := []pipeline.Option{pipeline.WithThresholds(o.thresholds), pipeline.WithLogger(m.logger)}
	if o.notifier != nil {
		popts = append(popts, pipeline.WithNotifier(o.notifier))
	}
	if o.email != nil {
		popts = append(popts, pipeline.WithEmail(o.email))
	}
	if o.sms != nil {
		popts = append(popts, pipeline.WithSms(o.sms))
	}
	m.dispatcher = pipeline.New(storage, popts...)

	qopts := []queue.Option{queue.WithLogger(m.logger)}
	if o.drainTimeout > 0 {
		qopts = append(qopts, queue.WithDrainTimeout(o.drainTimeout))
	}
	if o.onError != nil {
		qopts = append(qopts, queue.WithOnError(o.onError))
	}
	m.queue = queue.New(machine+"/"+module, m.dispatcher, qopts...)
	m.dedup = dedup.New(m.queue, dedup.WithLogger(m.logger))

	m.root = m.newNode(module, "", o.rootSeverity, 0)

	if o.updateInterval > 0 {
		m.updaterWG.Add(1)
		go m.runUpdater(o.updateInterval)
	}
	return m, nil
}

// Machine returns the machine name events are tagged with.
func (m *Module) Machine() string { return m.machine }

// Name returns the module name.
func (m *Module) Name() string { return m.module }

// Root returns the module-level node. Its events carry no component name.
func (m *Module) Root() *Node { return m.root }

// Node resolves a handle, or returns nil if none is registered.
func (m *Module) Node(id NodeID) *Node {
	m.arenaMu.RLock()
	defer m.arenaMu.RUnlock()
	return m.nodes[id]
}

func (m *Module) newNode(name, component string, sev model.Severity, parent NodeID) *Node {
	m.arenaMu.Lock()
	defer m.arenaMu.Unlock()
	m.nextID++
	n := &Node{
		id:        m.nextID,
		name:      name,
		component: component,
		m:         m,
		severity:  sev,
		parent:    parent,
	}
	m.nodes[n.id] = n
	return n
}

// Update walks the live tree once, refreshing every counter.
func (m *Module) Update() { m.root.Update() }

// Walk visits every node reachable from the root, depth first, with its
// slash-separated path. fn must not attach or remove nodes.
func (m *Module) Walk(fn func(path string, n *Node)) {
	var visit func(prefix string, n *Node)
	visit = func(prefix string, n *Node) {
		path := n.Name()
		if prefix != "" {
			path = prefix + "/" + path
		}
		fn(path, n)
		for _, c := range n.Children() {
			visit(path, c)
		}
	}
	visit("", m.root)
}

// Fetch passes req to the storage unchanged.
func (m *Module) Fetch(ctx context.Context, req output.FetchRequest) ([]model.Event, error) {
	events, err := m.dispatcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("monitor: fetch: %w", err)
	}
	return events, nil
}

// Stats returns queue, dispatch and tree counters.
func (m *Module) Stats() Stats {
	m.arenaMu.RLock()
	n := len(m.nodes)
	m.arenaMu.RUnlock()
	return Stats{
		Queue:        m.queue.Stats(),
		Dispatch:     m.dispatcher.Stats(),
		DedupEntries: m.dedup.Len(),
		Nodes:        n,
	}
}

// Ticks returns how many updater walks have run.
func (m *Module) Ticks() int64 { return m.ticks.Load() }

// Closed reports whether Close has been called.
func (m *Module) Closed() bool { return m.closed.Load() }

// enqueue routes an event through the dedup register. A non-positive window
// enqueues it immediately.
func (m *Module) enqueue(event model.Event, window time.Duration) {
	var ok bool
	if window > 0 {
		ok = m.dedup.Register(event, window)
	} else {
		ok = m.dedup.Enqueue(event)
	}
	if !ok {
		m.logger.Debug("registration ignored", "event", event, "error", ErrAlreadyDisposed)
	}
}

// Close stops the updater, flushes pending rollups, drains the queue and
// closes every collaborator that implements io.Closer. If ctx ends before
// the queue drains, Close returns the ctx error and the collaborators are
// closed in the background after the last event is handled. Later calls
// return nil.
func (m *Module) Close(ctx context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		close(m.stopUpdate)
		m.updaterWG.Wait()

		m.dedup.Close()

		if qerr := m.queue.Close(ctx); qerr != nil {
			// The consumer is still storing and notifying; collaborators
			// are closed once it has handled the backlog.
			m.logger.Warn("queue still draining, collaborators close later", "pending", m.queue.Stats().Pending)
			go func() {
				<-m.queue.Done()
				if err := m.closeCollaborators(); err != nil {
					m.logger.Error("late collaborator close failed", "error", err)
				}
				m.logger.Info("module closed", "processed", m.queue.Stats().Processed)
			}()
			err = fmt.Errorf("monitor: close: %w", qerr)
			return
		}
		err = m.closeCollaborators()
		m.logger.Info("module closed", "processed", m.queue.Stats().Processed)
	})
	return err
}

func (m *Module) closeCollaborators() error {
	var errs []error
	for _, c := range m.dispatcher.Collaborators() {
		if cl, ok := c.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, fmt.Errorf("monitor: close collaborator: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}
