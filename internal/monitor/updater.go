package monitor

import "time"

// runUpdater walks the tree on every tick. A walk that outlasts the
// interval causes the ticker to drop the ticks it missed, so walks never
// overlap.
func (m *Module) runUpdater(interval time.Duration) {
	defer m.updaterWG.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.stopUpdate:
			return
		case <-t.C:
			m.root.Update()
			m.ticks.Add(1)
		}
	}
}
