// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/modhost/modhost/pkg/module"

	"github.com/google/uuid"
)

const (
	ReplySent      ReplyKind = "reply"
	ReplyEdited    ReplyKind = "edit"
	ReplySuggested ReplyKind = "suggest"
)

var (
	// ErrAlreadyReplied is returned by Reply after a successful Reply.
	ErrAlreadyReplied = errors.New("event already has a reply")
	// ErrNoReply is returned by EditReply before any Reply.
	ErrNoReply = errors.New("event has no reply to edit")
)

type (
	// ReplyKind says which Responder method produced a Reply.
	ReplyKind string

	// Reply is one answer delivered for an event.
	Reply struct {
		Kind    ReplyKind       `json:"kind"`
		Message *module.Message `json:"message,omitempty"`
		Choices []module.Choice `json:"choices,omitempty"`
	}

	// Collector is a module.Responder that keeps every reply in memory.
	// OnReply, when set, is called with each reply as it arrives.
	Collector struct {
		OnReply func(Reply)

		mu      sync.Mutex
		replied bool
		replies []Reply
	}
)

// NewEventID returns a fresh event identifier.
func NewEventID() string {
	return uuid.NewString()
}

// Reply implements module.Responder.
func (c *Collector) Reply(ctx context.Context, msg module.Message) error {
	c.mu.Lock()
	if c.replied {
		c.mu.Unlock()
		return ErrAlreadyReplied
	}
	c.replied = true
	c.mu.Unlock()
	return c.push(ctx, Reply{Kind: ReplySent, Message: &msg})
}

// EditReply implements module.Responder.
func (c *Collector) EditReply(ctx context.Context, msg module.Message) error {
	c.mu.Lock()
	if !c.replied {
		c.mu.Unlock()
		return ErrNoReply
	}
	c.mu.Unlock()
	return c.push(ctx, Reply{Kind: ReplyEdited, Message: &msg})
}

// Replied implements module.Responder.
func (c *Collector) Replied() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replied
}

// Suggest implements module.Responder.
func (c *Collector) Suggest(ctx context.Context, choices []module.Choice) error {
	return c.push(ctx, Reply{Kind: ReplySuggested, Choices: slices.Clone(choices)})
}

func (c *Collector) push(ctx context.Context, r Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.replies = append(c.replies, r)
	fn := c.OnReply
	c.mu.Unlock()
	if fn != nil {
		fn(r)
	}
	return nil
}

// Replies returns every reply in delivery order.
func (c *Collector) Replies() []Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.replies)
}

// Last returns the message currently shown for the event: the latest
// reply or edit.
func (c *Collector) Last() (module.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range slices.Backward(c.replies) {
		if r.Message != nil {
			return *r.Message, true
		}
	}
	return module.Message{}, false
}

// Choices returns the latest autocomplete suggestions.
func (c *Collector) Choices() []module.Choice {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range slices.Backward(c.replies) {
		if r.Kind == ReplySuggested {
			return slices.Clone(r.Choices)
		}
	}
	return nil
}
