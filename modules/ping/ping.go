// SPDX-License-Identifier: MPL-2.0

// Package ping provides the ping module: a /ping command reporting how long
// the host has had the module loaded.
package ping

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/modhost/modhost/internal/source"
	"github.com/modhost/modhost/pkg/module"
)

// ID is the module ID ping registers under.
const ID module.ID = "ping"

func init() {
	source.Register(ID, New)
}

// New builds a fresh ping descriptor. The load time and counter are per
// load, so a reload resets them.
func New() (*module.Descriptor, error) {
	var (
		loadedAt atomic.Int64
		pings    atomic.Int64
	)
	return &module.Descriptor{
		Name:        "Ping",
		Version:     "1.0.0",
		Description: "Answers /ping with the module uptime.",
		Authors:     []string{"modhost"},
		Commands: []module.Command{{
			Label: "Ping",
			Definition: module.CommandDef{
				Name:        "ping",
				Description: "Check that the host is responsive",
			},
			Handler: func(ctx context.Context, ev *module.Event) error {
				n := pings.Add(1)
				up := time.Since(time.Unix(0, loadedAt.Load())).Truncate(time.Second)
				return ev.Reply(ctx, module.Message{
					Title:       "Pong!",
					Description: fmt.Sprintf("Loaded for %s, ping #%d.", up, n),
				})
			},
		}},
		Load: func(_ context.Context, host module.Host) error {
			loadedAt.Store(time.Now().UnixNano())
			host.Logger().Debug("ping ready")
			return nil
		},
	}, nil
}
