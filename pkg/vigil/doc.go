// Package vigil is a monitoring pipeline for long-running services.
//
// Application code registers severity-tagged events against a
// machine/module/component hierarchy. Repeated events inside a window are
// folded into a single "occurred N times" rollup, every event passes through
// one ordered queue, is stored, and is escalated to notify, email and SMS
// channels by severity. Each component also carries counters that a
// background updater refreshes once per second.
//
// Quick start:
//
//	m, err := vigil.New("web-1", "checkout")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close(context.Background())
//
//	db, _ := m.Root().AttachComponent("db")
//	db.RegisterRepeat(time.Minute, vigil.SeverityNotify, "slow query", "p99 above 2s")
//	requests, _ := db.AttachNumericCounter("requests", vigil.CountPerSecond)
//	requests.Increment()
//
// A Module owns goroutines and timers; Close must be called to flush pending
// rollups and release them.
package vigil
