package main

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/jpalmerr/meterpulse/internal/kasa/kasatest"
)

// StartMockPlugs serves one simulated plug per alias on loopback ports and
// returns their addresses. The last plug answers slower than the deadline
// of a one-second period, so it shows up as a failing device.
func StartMockPlugs(aliases ...string) []string {
	addrs := make([]string, len(aliases))
	for i, alias := range aliases {
		plug := kasatest.NewPlug(alias, reading(0))
		if i == len(aliases)-1 {
			plug.SetDelay(700 * time.Millisecond)
		}
		srv := kasatest.NewServer(plug.Handle)
		addrs[i] = srv.Addr

		go drift(plug)
		slog.Info("mock plug listening", "alias", alias, "addr", srv.Addr)
	}
	return addrs
}

// drift nudges the plug's meter every second so charts have movement.
func drift(plug *kasatest.Plug) {
	var total int
	for range time.Tick(time.Second) {
		total++
		plug.SetRealtime(reading(total))
	}
}

func reading(totalWh int) map[string]any {
	return map[string]any{
		"power_mw":   40000 + rand.Intn(20000),
		"voltage_mv": 229000 + rand.Intn(3000),
		"current_ma": 170 + rand.Intn(80),
		"total_wh":   totalWh,
	}
}
