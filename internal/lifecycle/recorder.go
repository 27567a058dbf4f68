// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"time"

	"github.com/modhost/modhost/pkg/module"
)

const (
	ActionLoaded       Action = "loaded"
	ActionLoadFailed   Action = "load_failed"
	ActionUnloaded     Action = "unloaded"
	ActionUnloadFailed Action = "unload_failed"
	ActionEnabled      Action = "enabled"
	ActionDisabled     Action = "disabled"
	ActionSkipped      Action = "skipped"
	ActionReloaded     Action = "reloaded"
)

type (
	// Action names a lifecycle transition.
	Action string

	// Transition is one recorded lifecycle step.
	Transition struct {
		Module module.ID `json:"module,omitempty"`
		Action Action    `json:"action"`
		Detail string    `json:"detail,omitempty"`
		At     time.Time `json:"at"`
	}

	// Recorder persists transitions, e.g. to the lifecycle journal.
	// Errors are logged by the controller and otherwise ignored.
	Recorder interface {
		Record(ctx context.Context, t Transition) error
	}
)

func (c *Controller) record(ctx context.Context, id module.ID, action Action, detail string) {
	if c.recorder == nil {
		return
	}
	t := Transition{Module: id, Action: action, Detail: detail, At: c.now()}
	if err := c.recorder.Record(ctx, t); err != nil {
		c.logger.Warn("failed to record lifecycle transition", "module", id, "action", action, "err", err)
	}
}
