// SPDX-License-Identifier: MPL-2.0

package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modhost/modhost/internal/journal"
	"github.com/modhost/modhost/internal/lifecycle"
	"github.com/modhost/modhost/internal/platform"
	"github.com/modhost/modhost/pkg/module"
)

type (
	// InteractionRequest is the body of POST /interactions.
	InteractionRequest struct {
		Kind       string            `json:"kind"`
		Name       string            `json:"name,omitempty"`
		Group      string            `json:"group,omitempty"`
		Subcommand string            `json:"subcommand,omitempty"`
		CustomID   string            `json:"custom_id,omitempty"`
		Options    map[string]string `json:"options,omitempty"`
		Values     []string          `json:"values,omitempty"`
		Focused    string            `json:"focused,omitempty"`
		User       string            `json:"user,omitempty"`
	}

	// InteractionResponse lists the replies the handler produced.
	InteractionResponse struct {
		EventID string           `json:"event_id"`
		Replies []platform.Reply `json:"replies"`
	}

	// ModuleView is the JSON form of a module status.
	ModuleView struct {
		ID           module.ID       `json:"id"`
		Name         string          `json:"name"`
		Version      string          `json:"version,omitempty"`
		Description  string          `json:"description,omitempty"`
		Authors      []string        `json:"authors,omitempty"`
		Dependencies []module.ID     `json:"dependencies,omitempty"`
		State        lifecycle.State `json:"state"`
		Reason       string          `json:"reason,omitempty"`
		LoadedAt     *time.Time      `json:"loaded_at,omitempty"`
		Commands     []string        `json:"commands,omitempty"`
	}

	// ReloadResponse carries the reload report and the aggregate error.
	ReloadResponse struct {
		Summary string            `json:"summary"`
		Report  *lifecycle.Report `json:"report"`
		Error   string            `json:"error,omitempty"`
	}

	// CommandView is the JSON form of a registered command.
	CommandView struct {
		Name     string    `json:"name"`
		Label    string    `json:"label,omitempty"`
		Owner    module.ID `json:"owner"`
		RemoteID string    `json:"remote_id,omitempty"`
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) interaction(w http.ResponseWriter, r *http.Request) {
	var req InteractionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode interaction: %w", err))
		return
	}

	kind := module.ParseKind(req.Kind)
	if kind == module.KindUnknown {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown interaction kind %q", req.Kind))
		return
	}

	collector := &platform.Collector{}
	ev := &module.Event{
		ID:         platform.NewEventID(),
		Kind:       kind,
		Name:       req.Name,
		Group:      req.Group,
		Subcommand: req.Subcommand,
		CustomID:   req.CustomID,
		Options:    req.Options,
		Values:     req.Values,
		Focused:    req.Focused,
		User:       req.User,
		Responder:  collector,
	}
	s.opts.Dispatcher.Dispatch(r.Context(), ev)

	replies := collector.Replies()
	if replies == nil {
		replies = []platform.Reply{}
	}
	writeJSON(w, http.StatusOK, InteractionResponse{EventID: ev.ID, Replies: replies})
}

func (s *Server) listModules(w http.ResponseWriter, _ *http.Request) {
	statuses := s.opts.Modules.Status()
	views := make([]ModuleView, 0, len(statuses))
	for _, st := range statuses {
		views = append(views, moduleView(st))
	}
	writeJSON(w, http.StatusOK, views)
}

func moduleView(st lifecycle.Status) ModuleView {
	v := ModuleView{
		ID:       st.ID,
		State:    st.State,
		Reason:   st.Reason,
		Commands: st.Bindings.Commands,
	}
	if d := st.Descriptor; d != nil {
		v.Name = d.Name
		v.Version = d.Version
		v.Description = d.Description
		v.Authors = d.Authors
		v.Dependencies = d.Dependencies
	}
	if !st.LoadedAt.IsZero() {
		at := st.LoadedAt
		v.LoadedAt = &at
	}
	return v
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	rep, err := s.opts.Modules.Reload(r.Context())
	if errors.Is(err, lifecycle.ErrReloadInProgress) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if rep == nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := ReloadResponse{Summary: rep.Summary(), Report: rep}
	if err != nil {
		// Failures of single modules do not fail the request.
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) toggle(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := module.ID(chi.URLParam(r, "id"))
		var err error
		if enable {
			err = s.opts.Modules.Enable(r.Context(), id)
		} else {
			err = s.opts.Modules.Disable(r.Context(), id)
		}
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		for _, st := range s.opts.Modules.Status() {
			if st.ID == id {
				writeJSON(w, http.StatusOK, moduleView(st))
				return
			}
		}
		writeJSON(w, http.StatusOK, ModuleView{ID: id})
	}
}

func (s *Server) listCommands(w http.ResponseWriter, _ *http.Request) {
	cmds := s.opts.Dispatcher.Commands()
	views := make([]CommandView, 0, len(cmds))
	for _, c := range cmds {
		views = append(views, CommandView{Name: c.Name, Label: c.Label, Owner: c.Owner, RemoteID: c.RemoteID})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeError(w, http.StatusNotFound, errors.New("lifecycle journal is disabled"))
		return
	}

	q := journal.Query{
		Module: module.ID(r.URL.Query().Get("module")),
		Action: lifecycle.Action(r.URL.Query().Get("action")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		q.Limit = n
	}

	entries, err := s.opts.History.History(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []lifecycle.Transition{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// statusFor maps lifecycle precondition errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrUnknownModule):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidModuleID):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrProtectedModule):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrAlreadyEnabled),
		errors.Is(err, lifecycle.ErrNotEnabled),
		errors.Is(err, lifecycle.ErrDependencyNotLoaded),
		errors.Is(err, lifecycle.ErrModuleDisabled),
		errors.Is(err, lifecycle.ErrReloadInProgress):
		return http.StatusConflict
	default:
		var le *lifecycle.LoadError
		if errors.As(err, &le) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // the client went away
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}
