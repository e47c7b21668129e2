package vigil_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/crimson-sun/vigil/pkg/vigil"
)

func Example() {
	m, err := vigil.New("web-1", "checkout",
		vigil.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		vigil.WithUpdateInterval(0))
	if err != nil {
		fmt.Println(err)
		return
	}

	db, _ := m.Root().AttachComponent("db")
	for i := 0; i < 4; i++ {
		db.RegisterRepeat(time.Minute, vigil.SeverityNone, "slow query", "p99 above 2s")
	}
	avg, _ := db.AttachNumericCounter("latency_avg", vigil.AverageValue)
	avg.IncrementBy(10)
	avg.IncrementBaseBy(2)

	m.Close(context.Background())

	events, _ := m.Fetch(context.Background(), vigil.FetchRequest{Forward: true})
	for _, e := range events {
		fmt.Println(e.Description.String())
	}
	fmt.Printf("%.3f\n", avg.Value())
	// Output:
	// p99 above 2s
	// p99 above 2s (occurred 3 times in 1m)
	// 3.333
}
