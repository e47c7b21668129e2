package model

import "sync"

// Text is an event description. It is either a fixed string or a deferred
// computation that runs at most once, on first read. Copies share the same
// memoized value.
type Text struct {
	l *lazyText
}

type lazyText struct {
	once sync.Once
	fn   func() string
	s    string
}

// NewText returns a Text holding s.
func NewText(s string) Text {
	return Text{l: &lazyText{s: s}}
}

// LazyText returns a Text that calls fn on first String call.
func LazyText(fn func() string) Text {
	if fn == nil {
		return Text{}
	}
	return Text{l: &lazyText{fn: fn}}
}

func (t Text) String() string {
	if t.l == nil {
		return ""
	}
	t.l.once.Do(func() {
		if t.l.fn != nil {
			t.l.s = t.l.fn()
			t.l.fn = nil
		}
	})
	return t.l.s
}
