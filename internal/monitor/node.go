package monitor

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/crimson-sun/vigil/internal/counter"
	"github.com/crimson-sun/vigil/internal/model"
)

// NodeID is a stable handle of a node within its Module. 0 means none.
type NodeID uint64

type stateTriple struct {
	state, title, description string
}

// Node is a module or nested component in the monitoring tree, and the
// handle its events are registered through.
type Node struct {
	id        NodeID
	name      string
	component string
	m         *Module

	mu          sync.RWMutex
	severity    model.Severity
	parent      NodeID
	children    []NodeID
	counters    []counter.Counter
	state       stateTriple
	hasState    bool
	stateWindow time.Duration
}

func (n *Node) ID() NodeID { return n.id }

// Name returns the component name, or the module name for the root.
func (n *Node) Name() string { return n.name }

// Component returns the component name events from this node carry.
func (n *Node) Component() string { return n.component }

// Module returns the owning module.
func (n *Node) Module() *Module { return n.m }

func (n *Node) Severity() model.Severity {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.severity
}

func (n *Node) SetSeverity(s model.Severity) {
	n.mu.Lock()
	n.severity = s
	n.mu.Unlock()
}

// Parent returns the parent node, or nil for the root and removed nodes.
func (n *Node) Parent() *Node {
	n.mu.RLock()
	pid := n.parent
	n.mu.RUnlock()
	if pid == 0 {
		return nil
	}
	return n.m.Node(pid)
}

// Children returns the attached children in attach order.
func (n *Node) Children() []*Node {
	n.mu.RLock()
	ids := append([]NodeID(nil), n.children...)
	n.mu.RUnlock()
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if c := n.m.Node(id); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Counters returns the attached counters in attach order.
func (n *Node) Counters() []counter.Counter {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]counter.Counter(nil), n.counters...)
}

// Counter finds an attached counter by name.
func (n *Node) Counter(name string) (counter.Counter, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, c := range n.counters {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// AttachComponent creates a child inheriting this node's severity.
func (n *Node) AttachComponent(name string) (*Node, error) {
	return n.AttachComponentWithSeverity(name, n.Severity())
}

// AttachComponentWithSeverity creates a child with its own severity. Names
// are unique among siblings and may not contain "/", the path separator.
func (n *Node) AttachComponentWithSeverity(name string, sev model.Severity) (*Node, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("monitor: attach component: %w: name is empty", model.ErrInvalidArgument)
	}
	if strings.Contains(name, "/") {
		return nil, fmt.Errorf("monitor: attach component %q: %w: name contains '/'", name, model.ErrInvalidArgument)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, id := range n.children {
		if c := n.m.Node(id); c != nil && c.name == name {
			return nil, fmt.Errorf("monitor: attach component %q: %w: already attached", name, model.ErrInvalidArgument)
		}
	}
	child := n.m.newNode(name, name, sev, n.id)
	n.children = append(n.children, child.id)
	return child, nil
}

// RemoveFromMonitoring detaches the node from its parent. Its own children
// and counters stay attached to it, so the handle keeps working, but the
// updater no longer reaches the subtree. Returns false if the node had no
// parent.
func (n *Node) RemoveFromMonitoring() bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	// Parent before child, the same order attach uses.
	p.mu.Lock()
	defer p.mu.Unlock()
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.parent != p.id {
		return false
	}
	for i, id := range p.children {
		if id == n.id {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = 0
	return true
}

func (n *Node) attachCounter(c counter.Counter) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.counters {
		if existing.Name() == c.Name() {
			return fmt.Errorf("monitor: attach counter %q: %w: already attached", c.Name(), model.ErrInvalidArgument)
		}
	}
	n.counters = append(n.counters, c)
	return nil
}

func checkCounterName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("monitor: attach counter: %w: name is empty", model.ErrInvalidArgument)
	}
	return nil
}

// AttachNumericCounter attaches a mutable numeric counter.
func (n *Node) AttachNumericCounter(name string, t counter.Type) (*counter.NumericCounter, error) {
	if err := checkCounterName(name); err != nil {
		return nil, err
	}
	c, err := counter.NewNumeric(name, t)
	if err != nil {
		return nil, fmt.Errorf("monitor: attach counter: %w", err)
	}
	if err := n.attachCounter(c); err != nil {
		return nil, err
	}
	return c, nil
}

// AttachNumericCounterFunc attaches a read-only counter showing fn.
func (n *Node) AttachNumericCounterFunc(name string, t counter.Type, fn func() float64) (*counter.FuncCounter, error) {
	if err := checkCounterName(name); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("monitor: attach counter %q: %w: nil func", name, model.ErrInvalidArgument)
	}
	c := counter.NewFunc(name, t, fn)
	if err := n.attachCounter(c); err != nil {
		return nil, err
	}
	return c, nil
}

// AttachStringCounter attaches a mutable string counter, initially empty.
func (n *Node) AttachStringCounter(name string) (*counter.StringCounter, error) {
	if err := checkCounterName(name); err != nil {
		return nil, err
	}
	c := counter.NewString(name, "")
	if err := n.attachCounter(c); err != nil {
		return nil, err
	}
	return c, nil
}

// AttachStringCounterFunc attaches a read-only string counter showing fn.
func (n *Node) AttachStringCounterFunc(name string, fn func() string) (*counter.FuncStringCounter, error) {
	if err := checkCounterName(name); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("monitor: attach counter %q: %w: nil func", name, model.ErrInvalidArgument)
	}
	c := counter.NewFuncString(name, fn)
	if err := n.attachCounter(c); err != nil {
		return nil, err
	}
	return c, nil
}

// AttachSystemCounter attaches a read-only counter sampling src.
func (n *Node) AttachSystemCounter(name string, t counter.Type, src counter.Source) (*counter.SystemCounter, error) {
	if err := checkCounterName(name); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("monitor: attach counter %q: %w: nil source", name, model.ErrInvalidArgument)
	}
	c := counter.NewSystem(name, t, src, counter.WithLogger(n.m.logger))
	if err := n.attachCounter(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update refreshes this node's counters under its write lock, then recurses
// into the children outside it.
func (n *Node) Update() {
	n.mu.Lock()
	for _, c := range n.counters {
		n.updateCounter(c)
	}
	kids := append([]NodeID(nil), n.children...)
	n.mu.Unlock()

	for _, id := range kids {
		if c := n.m.Node(id); c != nil {
			c.Update()
		}
	}
}

func (n *Node) updateCounter(c counter.Counter) {
	defer func() {
		if r := recover(); r != nil {
			n.m.logger.Error("counter update panicked", "component", n.component, "counter", c.Name(), "panic", r)
		}
	}()
	c.Update()
}

// SetupStatesRepeat makes ChangeState register through the dedup register
// with window w. Zero restores immediate registration.
func (n *Node) SetupStatesRepeat(w time.Duration) {
	n.mu.Lock()
	n.stateWindow = w
	n.mu.Unlock()
}

// State returns the last recorded state triple.
func (n *Node) State() (state, title, description string) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state.state, n.state.title, n.state.description
}

// ChangeState records a new (state, title, description) and, when it
// differs from the last one, registers "State changed from X to Y" at the
// node's severity. An empty title defaults to "State changed". Reports
// whether an event was registered.
func (n *Node) ChangeState(state, title, description string) bool {
	next := stateTriple{state: state, title: title, description: description}
	if strings.TrimSpace(title) == "" {
		title = "State changed"
	}

	// Held across emit so events reach the queue in transition order.
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.hasState && n.state == next {
		return false
	}
	from := "unknown"
	if n.hasState {
		from = n.state.state
	}
	n.state = next
	n.hasState = true

	msg := fmt.Sprintf("State changed from %s to %s", from, state)
	if description != "" {
		msg += ": " + description
	}
	if err := n.emit(n.stateWindow, n.severity, title, model.NewText(msg), nil); err != nil {
		n.m.logger.Warn("state change not registered", "component", n.component, "error", err)
	}
	return true
}
