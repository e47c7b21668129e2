package monitor

import (
	"fmt"
	"time"

	"github.com/crimson-sun/vigil/internal/model"
)

// emit builds the event and hands it to the module. Only an invalid title
// fails; after Close the event is dropped silently.
func (n *Node) emit(window time.Duration, sev model.Severity, title string, desc model.Text, err error) error {
	ev, e := model.NewEvent(n.m.machine, n.m.module, n.component, sev, title, desc, err)
	if e != nil {
		return fmt.Errorf("monitor: register: %w", e)
	}
	n.m.enqueue(ev, window)
	return nil
}

// Register enqueues an event immediately.
func (n *Node) Register(sev model.Severity, title, message string) error {
	return n.emit(0, sev, title, model.NewText(message), nil)
}

// RegisterError enqueues an event carrying err.
func (n *Node) RegisterError(sev model.Severity, title, message string, err error) error {
	return n.emit(0, sev, title, model.NewText(message), err)
}

// RegisterFormat enqueues an event with a fmt.Sprintf message.
func (n *Node) RegisterFormat(sev model.Severity, title, format string, args ...any) error {
	return n.emit(0, sev, title, model.NewText(fmt.Sprintf(format, args...)), nil)
}

// RegisterFunc enqueues an event whose message is built by fn on first read.
func (n *Node) RegisterFunc(sev model.Severity, title string, fn func() string) error {
	return n.emit(0, sev, title, model.LazyText(fn), nil)
}

// RegisterRepeat enqueues the first occurrence of the event and folds
// identical ones arriving within window into a single
// "occurred N times" rollup.
func (n *Node) RegisterRepeat(window time.Duration, sev model.Severity, title, message string) error {
	return n.emit(window, sev, title, model.NewText(message), nil)
}

// RegisterRepeatError is RegisterRepeat carrying err.
func (n *Node) RegisterRepeatError(window time.Duration, sev model.Severity, title, message string, err error) error {
	return n.emit(window, sev, title, model.NewText(message), err)
}

func (n *Node) RegisterRepeatFormat(window time.Duration, sev model.Severity, title, format string, args ...any) error {
	return n.emit(window, sev, title, model.NewText(fmt.Sprintf(format, args...)), nil)
}

func (n *Node) RegisterRepeatFunc(window time.Duration, sev model.Severity, title string, fn func() string) error {
	return n.emit(window, sev, title, model.LazyText(fn), nil)
}
