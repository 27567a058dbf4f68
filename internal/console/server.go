// SPDX-License-Identifier: MPL-2.0

package console

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"

	"github.com/modhost/modhost/internal/interaction"
	"github.com/modhost/modhost/internal/platform"
	"github.com/modhost/modhost/internal/serverbase"
	"github.com/modhost/modhost/pkg/module"
)

const (
	prompt = "modhost> "
	banner = "modhost console. Type help for the line syntax, exit to leave."
)

const helpText = `/<command> [group] [subcommand] [option=value ...]   run a command
button <custom-id>                                  press a button
modal <custom-id> [field=value ...]                 submit a modal
menu <custom-id> [value ...]                        choose select menu values
complete /<command> [sub] <option>=<prefix>         autocomplete an option
commands                                            list registered commands
exit                                                close the session
`

type (
	// Dispatcher routes interaction events.
	Dispatcher interface {
		Dispatch(ctx context.Context, ev *module.Event)
		Commands() []interaction.CommandInfo
	}

	// Config configures a Server.
	Config struct {
		// HostKeyPath is created with a new ed25519 key when missing.
		HostKeyPath string
		// Password, when set, is required from every client. Without it
		// any client is accepted.
		Password string
		Logger   *log.Logger
	}

	// Server serves the interaction console over SSH.
	Server struct {
		*serverbase.Base

		cfg        Config
		dispatcher Dispatcher
		logger     *log.Logger
		srv        *ssh.Server
	}
)

// New creates a console server dispatching to d.
func New(d Dispatcher, cfg Config) (*Server, error) {
	if d == nil {
		return nil, errors.New("console: dispatcher is required")
	}
	if cfg.HostKeyPath == "" {
		return nil, errors.New("console: host key path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		Base:       serverbase.NewBase("ssh", serverbase.WithLogger(logger)),
		cfg:        cfg,
		dispatcher: d,
		logger:     logger.WithPrefix("ssh"),
	}

	opts := []ssh.Option{
		wish.WithHostKeyPath(cfg.HostKeyPath),
		wish.WithMiddleware(
			s.sessionMiddleware(),
			logging.StructuredMiddlewareWithLogger(s.logger, log.DebugLevel),
		),
	}
	if cfg.Password != "" {
		opts = append(opts, wish.WithPasswordAuth(s.passwordHandler))
	} else {
		s.logger.Warn("console accepts clients without authentication")
	}

	srv, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("console: create SSH server: %w", err)
	}
	s.srv = srv
	return s, nil
}

// Start listens on addr and serves until Stop.
func (s *Server) Start(ctx context.Context, addr string) error {
	return s.Base.Start(ctx, addr, s.serve, s.srv.Shutdown)
}

func (s *Server) serve(l net.Listener) error {
	s.logger.Info("listening", "addr", l.Addr().String())
	if err := s.srv.Serve(l); !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) passwordHandler(ctx ssh.Context, password string) bool {
	ok := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) == 1
	if !ok {
		s.logger.Warn("rejected password", "user", ctx.User(), "remote", ctx.RemoteAddr().String())
	}
	return ok
}

func (s *Server) sessionMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			if err := s.handle(sess); err != nil {
				s.logger.Debug("session ended with error", "user", sess.User(), "err", err)
				sess.Exit(1) //nolint:errcheck // the channel may already be closed
			} else {
				sess.Exit(0) //nolint:errcheck // the channel may already be closed
			}
			next(sess)
		}
	}
}

// handle runs a single command given on the ssh command line, or an
// interactive session when there is none.
func (s *Server) handle(sess ssh.Session) error {
	pty, _, isPty := sess.Pty()
	width := pty.Window.Width
	r, err := newRenderer(sess, width, isPty)
	if err != nil {
		return err
	}

	out := io.Writer(sess)
	if isPty {
		out = crlfWriter{sess}
	}

	if raw := sess.RawCommand(); raw != "" {
		_, err := s.execute(sess.Context(), sess.User(), raw, r, out)
		return err
	}

	var echo io.Writer
	if isPty {
		echo = sess
	}
	lines := newLineReader(sess, echo)
	fmt.Fprintln(out, banner)
	for {
		fmt.Fprint(sess, prompt)
		line, err := lines.readLine()
		switch {
		case errors.Is(err, errInterrupted):
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		done, err := s.execute(sess.Context(), sess.User(), line, r, out)
		if err != nil && !errors.Is(err, ErrEmptyLine) {
			fmt.Fprintln(out, err)
		}
		if done {
			return nil
		}
	}
}

// execute runs one line. It reports whether the session should end.
func (s *Server) execute(ctx context.Context, user, line string, r *renderer, out io.Writer) (bool, error) {
	ev, b, err := parseLine(line)
	if err != nil {
		return false, err
	}
	switch b {
	case builtinHelp:
		fmt.Fprint(out, helpText)
		return false, nil
	case builtinCommands:
		fmt.Fprint(out, r.commands(s.dispatcher.Commands()))
		return false, nil
	case builtinExit:
		return true, nil
	}

	ev.ID = platform.NewEventID()
	ev.User = user
	ev.Responder = &platform.Collector{
		OnReply: func(rep platform.Reply) {
			fmt.Fprint(out, r.reply(rep))
		},
	}
	s.logger.Debug("dispatching", "kind", ev.Kind, "key", ev.Key(), "user", user)
	s.dispatcher.Dispatch(ctx, ev)
	return false, nil
}

// crlfWriter translates LF to CRLF for raw-mode terminals.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(c.w, strings.ReplaceAll(string(p), "\n", "\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}
