// Standalone simulated smart plugs for trying the plugin binary.
//
// Usage:
//
//	go run ./example/cmd/mockplug
//
// Then in another terminal:
//
//	go run ./cmd/hs110.plugin -c example/hs110.conf 1
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/meterpulse/internal/kasa/kasatest"
)

func main() {
	base := flag.Int("base-port", 19999, "port of the first plug; plugs use consecutive ports")
	count := flag.Int("count", 3, "number of plugs")
	slow := flag.Duration("slow", 0, "response delay of the last plug")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var servers []*kasatest.Server
	for i := 0; i < *count; i++ {
		addr := fmt.Sprintf("127.0.0.1:%d", *base+i)
		plug := kasatest.NewPlug(fmt.Sprintf("Mock plug %d", i+1), realtime(0))
		if i == *count-1 && *slow > 0 {
			plug.SetDelay(*slow)
		}

		srv, err := kasatest.NewServerAt(addr, plug.Handle)
		if err != nil {
			slog.Error("failed to start plug", "addr", addr, "error", err)
			os.Exit(1)
		}
		servers = append(servers, srv)
		go drift(ctx, plug)
		slog.Info("mock plug listening", "addr", addr)
	}

	fmt.Println("Press Ctrl+C to stop")
	<-ctx.Done()

	for _, s := range servers {
		s.Close()
	}
}

func drift(ctx context.Context, plug *kasatest.Plug) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var total int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total++
			plug.SetRealtime(realtime(total))
		}
	}
}

func realtime(totalWh int) map[string]any {
	return map[string]any{
		"power_mw":   5000 + rand.Intn(100000),
		"voltage_mv": 228000 + rand.Intn(5000),
		"current_ma": 20 + rand.Intn(400),
		"total_wh":   totalWh,
	}
}
