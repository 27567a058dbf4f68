// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

type (
	// ActionableError is a user-facing failure of one of the host's failure
	// classes. The class, named by Issue, supplies the default operation and
	// suggestions and links the Markdown guidance shown in verbose output.
	//
	//	return issue.Fail(issue.ManifestParseErrorId).
	//		On("./modules/greeter/module.cue").
	//		Because(err)
	ActionableError struct {
		Issue       Id
		Operation   string
		Resource    string
		Suggestions []string
		Cause       error
	}

	class struct {
		operation   string
		suggestions []string
	}
)

var classes = map[Id]class{
	ConfigLoadFailedId: {
		operation:   "load configuration",
		suggestions: []string{"Run 'modhost config path' to see where configuration is read from"},
	},
	ModuleStateInvalidId: {
		operation:   "load module state",
		suggestions: []string{"Fix the reported field, or delete the file to have defaults written back"},
	},
	ModulesDirNotFoundId: {
		operation:   "discover modules",
		suggestions: []string{"Create the directory or point modules.dir at an existing one"},
	},
	ManifestParseErrorId: {
		operation:   "parse module manifest",
		suggestions: []string{"Run 'modhost modules validate' to list every rejected module"},
	},
	ModuleNotFoundId: {
		operation:   "find module",
		suggestions: []string{"Run 'modhost modules list' to see the discovered modules"},
	},
	DependencyCycleId: {
		operation:   "resolve module dependencies",
		suggestions: []string{"Run 'modhost modules graph' to see the resulting load order"},
	},
	ModuleToggleRefusedId: {operation: "change module state"},
	ReloadFailedId:        {operation: "load modules"},
	ServerStartFailedId: {
		operation:   "start server",
		suggestions: []string{"Choose another address or stop the process using it"},
	},
	HostKeyUnavailableId: {
		operation:   "prepare SSH host key",
		suggestions: []string{"Check that the host key directory exists and is writable"},
	},
	JournalUnavailableId: {operation: "open lifecycle journal"},
}

// Fail starts an error of class id, preset with the class operation and
// suggestions. Unknown classes start empty.
func Fail(id Id) *ActionableError {
	c := classes[id]
	return &ActionableError{
		Issue:       id,
		Operation:   c.operation,
		Suggestions: slices.Clone(c.suggestions),
	}
}

// During replaces the class operation with a more specific one.
func (e *ActionableError) During(op string) *ActionableError {
	e.Operation = op
	return e
}

// On names the file, address or module the failure concerns.
func (e *ActionableError) On(resource string) *ActionableError {
	e.Resource = resource
	return e
}

// Suggest puts hints specific to this failure ahead of the class ones.
func (e *ActionableError) Suggest(hints ...string) *ActionableError {
	e.Suggestions = append(slices.Clone(hints), e.Suggestions...)
	return e
}

// Because attaches cause and returns the finished error.
func (e *ActionableError) Because(cause error) error {
	e.Cause = cause
	return e
}

// Classify returns the class of the first ActionableError in err's chain,
// or 0 when there is none.
func Classify(err error) Id {
	var ae *ActionableError
	if errors.As(err, &ae) {
		return ae.Issue
	}
	return 0
}

// Error renders "failed to <operation>: <resource>: <cause>", omitting
// empty parts.
func (e *ActionableError) Error() string {
	parts := make([]string, 0, 3)
	op := e.Operation
	if op == "" {
		op = "complete operation"
	}
	parts = append(parts, "failed to "+op)
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ActionableError) Unwrap() error { return e.Cause }

// HasSuggestions reports whether any hint is attached.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// Format renders the error for a terminal: the message, a bullet per
// suggestion and, when verbose, the numbered chain of causes.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())
	if len(e.Suggestions) > 0 {
		b.WriteString("\n")
		for _, s := range e.Suggestions {
			b.WriteString("\n  • " + s)
		}
	}
	if !verbose || e.Cause == nil {
		return b.String()
	}
	b.WriteString("\n\nError chain:")
	for n, err := 1, e.Cause; err != nil; n, err = n+1, errors.Unwrap(err) {
		fmt.Fprintf(&b, "\n  %d. %s", n, err)
	}
	return b.String()
}

// Guidance renders the Markdown guidance of the error's class with glamour.
// It returns "" for errors without a registered class.
func (e *ActionableError) Guidance(stylePath string) (string, error) {
	i := Get(e.Issue)
	if i == nil {
		return "", nil
	}
	return i.Render(stylePath)
}
