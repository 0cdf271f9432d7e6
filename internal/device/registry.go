package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// ErrNoDevices is returned by [Build] when no addresses are configured.
var ErrNoDevices = errors.New("at least one device address is required")

// Build creates the ordered device set for addrs.
//
// A client is constructed for every address with newClient and its alias is
// resolved within resolveTimeout. Alias resolution runs concurrently for all
// devices, so startup waits at most one resolveTimeout. A failed resolution
// is logged as a warning and the device keeps [UnknownAlias]; it never aborts
// startup.
//
// Returns [ErrNoDevices] if addrs is empty, or an error if an address is blank
// or two addresses (or their dimension prefixes) collide.
func Build(ctx context.Context, addrs []string, resolveTimeout time.Duration, newClient ClientFactory, logger *slog.Logger) ([]Device, error) {
	if len(addrs) == 0 {
		return nil, ErrNoDevices
	}
	if logger == nil {
		logger = slog.Default()
	}

	devices := make([]Device, len(addrs))
	seenAddr := make(map[string]int, len(addrs))
	seenPrefix := make(map[string]int, len(addrs))

	for i, raw := range addrs {
		addr := strings.TrimSpace(raw)
		if addr == "" {
			return nil, fmt.Errorf("device[%d]: address is empty", i)
		}
		if j, dup := seenAddr[addr]; dup {
			return nil, fmt.Errorf("device[%d]: duplicate address %q (also device[%d])", i, addr, j)
		}
		seenAddr[addr] = i

		prefix := DimensionPrefix(addr)
		if j, dup := seenPrefix[prefix]; dup {
			return nil, fmt.Errorf("device[%d]: address %q collides with device[%d] on dimension prefix %q", i, addr, j, prefix)
		}
		seenPrefix[prefix] = i

		devices[i] = Device{
			Address:         addr,
			Alias:           UnknownAlias,
			DimensionPrefix: prefix,
			Client:          newClient(addr),
		}
	}

	// each goroutine owns exactly one slot of devices
	var wg conc.WaitGroup
	for i := range devices {
		d := &devices[i]
		wg.Go(func() {
			d.Alias = resolveAlias(ctx, *d, resolveTimeout, logger)
		})
	}
	wg.Wait()

	return devices, nil
}

// lookup is what the alias goroutine hands back to resolveAlias.
type lookup struct {
	alias     string
	err       error
	recovered *panics.Recovered
}

// resolveAlias asks the device for its alias, falling back to UnknownAlias.
//
// The client call runs in its own goroutine: a client that ignores its
// context is abandoned at the timeout and a panicking client is recovered.
func resolveAlias(ctx context.Context, d Device, timeout time.Duration, logger *slog.Logger) string {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan lookup, 1)
	go func() {
		var l lookup
		var pc panics.Catcher
		pc.Try(func() {
			l.alias, l.err = d.Client.ResolveAlias(ctx)
		})
		l.recovered = pc.Recovered()
		done <- l
	}()

	var l lookup
	select {
	case l = <-done:
	case <-ctx.Done():
		l.err = ctx.Err()
	}

	if l.recovered != nil {
		logger.Warn("device client panicked resolving alias, using fallback",
			"address", d.Address,
			"fallback", UnknownAlias,
			"panic", fmt.Sprintf("%v", l.recovered.Value),
		)
		return UnknownAlias
	}

	alias, err := l.alias, l.err
	if err != nil {
		logger.Warn("unable to resolve device alias, using fallback",
			"address", d.Address,
			"fallback", UnknownAlias,
			"error", err,
		)
		return UnknownAlias
	}

	alias = strings.TrimSpace(alias)
	if alias == "" {
		logger.Warn("device reported an empty alias, using fallback",
			"address", d.Address,
			"fallback", UnknownAlias,
		)
		return UnknownAlias
	}
	return alias
}
