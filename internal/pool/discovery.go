package pool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/grandcat/zeroconf"
)

const mopidyService = "_mopidy-http._tcp"

// Discovery synthesizes a settings document by browsing mDNS for Mopidy
// instances. Used when neither a settings URL nor a settings file is
// configured.
type Discovery struct {
	// Window bounds the browse; instances answering later are missed.
	Window time.Duration
}

func (d Discovery) Fetch(ctx context.Context) (*Settings, error) {
	window := d.Window
	if window == 0 {
		window = 3 * time.Second
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	settings := &Settings{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if entry == nil || len(entry.AddrIPv4) == 0 {
				continue
			}
			slog.Info("discovered mopidy instance",
				"name", entry.Instance, "host", entry.AddrIPv4[0], "port", entry.Port)
			settings.Instances = append(settings.Instances, Instance{
				ID:    entry.Instance,
				Host:  entry.AddrIPv4[0].String(),
				Port:  entry.Port,
				Index: len(settings.Instances),
			})
		}
	}()

	if err := resolver.Browse(browseCtx, mopidyService, "local.", entries); err != nil {
		return nil, fmt.Errorf("mdns browse: %w", err)
	}
	<-done

	return settings, nil
}
