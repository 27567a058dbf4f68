// SPDX-License-Identifier: MPL-2.0

package interaction

import (
	"errors"
	"fmt"
	"strings"

	"github.com/modhost/modhost/pkg/module"
)

// errorReply turns a contained handler failure into the reply shown to the
// user. Interaction errors show their message, plus the cause chain when
// they ask for it; anything else is unexpected and always shows the chain.
func (r *Router) errorReply(ev *module.Event, err error) module.Message {
	var (
		ie  *Error
		msg string
	)
	if errors.As(err, &ie) {
		msg = ie.Error()
		if ie.ShowDiagnostic {
			msg += ":\n```\n" + Diagnostic(ie.Cause) + "\n```"
		}
	} else {
		msg = "An unexpected error occurred:\n```\n" + fmt.Sprintf("%T: ", err) + Diagnostic(err) + "\n```"
	}
	if !strings.Contains(msg, "`") {
		msg = "`" + msg + "`"
	}

	title, footer := "Interaction Exception", "Interaction: "
	switch ev.Kind {
	case module.KindCommand:
		title, footer = "Command Exception", "Command: "
	case module.KindButton:
		title, footer = "Button Exception", "Button: "
	case module.KindModal:
		title, footer = "Modal Exception", "Modal: "
	}

	r.mu.RLock()
	theme, deleteAfter := r.theme, r.deleteAfter
	r.mu.RUnlock()

	return module.Message{
		Title:       title,
		Description: msg,
		Footer:      footer + ev.Key(),
		Color:       theme.Error,
		Timestamp:   r.now(),
		Ephemeral:   true,
		DeleteAfter: deleteAfter,
	}
}

// Diagnostic renders the full error chain of err, one cause per line, and
// the goroutine stack for recovered panics.
func Diagnostic(err error) string {
	if err == nil {
		return "no further detail"
	}

	var sb strings.Builder
	depth := 1
	for e := err; e != nil; e = errors.Unwrap(e) {
		if depth > 1 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%d. %s", depth, e.Error())
		depth++
	}

	var pe *PanicError
	if errors.As(err, &pe) && len(pe.Stack) > 0 {
		sb.WriteString("\n\n")
		sb.Write(pe.Stack)
	}
	return strings.TrimRight(sb.String(), "\n")
}
