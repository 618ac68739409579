package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/timecapsule/internal/capsule"
	"github.com/hpungsan/timecapsule/internal/config"
	"github.com/hpungsan/timecapsule/internal/db"
	"github.com/hpungsan/timecapsule/internal/errors"
	"github.com/hpungsan/timecapsule/internal/manager"
	"github.com/hpungsan/timecapsule/internal/ops"
	"github.com/hpungsan/timecapsule/internal/web"
)

// maxStdinBytes bounds a message read from stdin.
const maxStdinBytes = 1 << 20

// appEnv carries what every command needs.
type appEnv struct {
	cfg   *config.Config
	clock clockwork.Clock
	log   *slog.Logger

	// opener replaces the browser opener when set (tests)
	opener manager.Opener
}

// newManager opens a fresh in-memory collection and wraps it in a manager
// configured from cfg.
func (e *appEnv) newManager(opts ...manager.Option) (*manager.Manager, error) {
	loc := e.cfg.Location()
	store, err := db.OpenStore(loc)
	if err != nil {
		return nil, err
	}
	base := []manager.Option{
		manager.WithLocation(loc),
		manager.WithTickInterval(e.cfg.TickInterval()),
		manager.WithMessageMaxChars(e.cfg.MessageMaxChars),
		manager.WithLogger(e.log),
	}
	return manager.New(store, e.clock, append(base, opts...)...), nil
}

func (e *appEnv) linkOpener() manager.Opener {
	if e.opener != nil {
		return e.opener
	}
	return ops.NewBrowserOpener(e.log)
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "timecapsule",
		Usage:   "Schedule messages to friends and hand them off when due",
		Version: Version,
		Commands: []*cli.Command{
			exportCmd(env),
			countdownCmd(env),
			linkCmd(env),
			scheduleCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// fieldFlags are the capsule form fields as flags.
func fieldFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Friend's name"},
		&cli.StringFlag{Name: "phone", Aliases: []string{"p"}, Usage: "Friend's phone number"},
		&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Message text (\"-\" reads stdin)"},
		&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Scheduled date, YYYY-MM-DD"},
		&cli.StringFlag{Name: "time", Aliases: []string{"t"}, Usage: "Scheduled time, HH:MM"},
	}
}

// readFields collects the form fields from flags.
func readFields(c *cli.Context) (capsule.Fields, error) {
	message := c.String("message")
	if message == "-" {
		text, err := readStdin(c.App.Reader, maxStdinBytes)
		if err != nil {
			return capsule.Fields{}, err
		}
		message = text
	}
	return capsule.Fields{
		Name:    c.String("name"),
		Contact: c.String("phone"),
		Message: message,
		Date:    c.String("date"),
		Time:    c.String("time"),
	}, nil
}

// exportCmd creates the export command.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a capsule to a plain-text file",
		Flags: append(fieldFlags(),
			&cli.StringFlag{Name: "path", Usage: "Output .txt path (default: exports dir)"},
		),
		Action: func(c *cli.Context) error {
			fields, err := readFields(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Export(c.Context, env.cfg, ops.ExportInput{
				Fields: fields,
				Path:   c.String("path"),
				Now:    env.clock.Now(),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// countdownOutput is what the countdown command prints.
type countdownOutput struct {
	capsule.Countdown
	Text     string    `json:"text"`
	TargetAt time.Time `json:"target_at"`
}

// countdownCmd creates the countdown command.
func countdownCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "countdown",
		Usage: "Show the time left until a scheduled date and time",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Target date, YYYY-MM-DD"},
			&cli.StringFlag{Name: "time", Aliases: []string{"t"}, Usage: "Target time, HH:MM"},
			&cli.StringFlag{Name: "now", Usage: "Reference instant, RFC 3339 (default: current time)"},
		},
		Action: func(c *cli.Context) error {
			target, err := capsule.ParseSchedule(c.String("date"), c.String("time"), env.cfg.Location())
			if err != nil {
				return outputError(err)
			}

			now := env.clock.Now()
			if raw := c.String("now"); raw != "" {
				now, err = time.Parse(time.RFC3339, raw)
				if err != nil {
					return outputError(errors.NewInvalidRequest("--now must be an RFC 3339 timestamp"))
				}
			}

			cd := capsule.TimeUntil(target, now)
			return outputJSON(c.App.Writer, countdownOutput{
				Countdown: cd,
				Text:      cd.String(),
				TargetAt:  target,
			})
		},
	}
}

// linkCmd creates the link command.
func linkCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "link",
		Usage: "Preview the WhatsApp link a capsule would open",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Friend's name"},
			&cli.StringFlag{Name: "phone", Aliases: []string{"p"}, Usage: "Friend's phone number"},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Message text (\"-\" reads stdin)"},
			&cli.StringFlag{Name: "created", Usage: "Date the message was written, YYYY-MM-DD (default: today)"},
		},
		Action: func(c *cli.Context) error {
			fields, err := readFields(c)
			if err != nil {
				return outputError(err)
			}

			var missing []string
			for _, kv := range [][2]string{
				{capsule.FieldName, fields.Name},
				{capsule.FieldContact, fields.Contact},
				{capsule.FieldMessage, fields.Message},
			} {
				if strings.TrimSpace(kv[1]) == "" {
					missing = append(missing, kv[0])
				}
			}
			if len(missing) > 0 {
				return outputError(errors.NewValidation(missing))
			}

			created := env.clock.Now().In(env.cfg.Location())
			if raw := c.String("created"); raw != "" {
				created, err = time.ParseInLocation(capsule.DateLayout, raw, env.cfg.Location())
				if err != nil {
					return outputError(errors.NewInvalidRequest("--created must be YYYY-MM-DD"))
				}
			}

			cp := &capsule.Capsule{
				RecipientName:    fields.Name,
				RecipientContact: fields.Contact,
				Message:          fields.Message,
				CreatedAt:        created,
			}
			url, err := capsule.DeepLink(cp)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, map[string]string{
				"url":  url,
				"text": capsule.DispatchText(cp),
			})
		},
	}
}

// scheduleCmd creates the schedule command.
func scheduleCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Schedule one capsule and wait until it is due",
		Flags: append(fieldFlags(),
			&cli.BoolFlag{Name: "open", Usage: "Open the link in the default browser when due"},
		),
		Action: func(c *cli.Context) error {
			fields, err := readFields(c)
			if err != nil {
				return outputError(err)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			// The hook runs on the evaluator goroutine; hand off instead of
			// stopping from inside it.
			due := make(chan string, 1)
			opts := []manager.Option{
				manager.WithOnDue(func(cp *capsule.Capsule) {
					select {
					case due <- cp.ID:
					default:
					}
				}),
			}
			if c.Bool("open") || env.cfg.OpenLinks {
				opts = append(opts, manager.WithOpener(env.linkOpener()))
			}

			mgr, err := env.newManager(opts...)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer mgr.Close()

			cp, err := mgr.Create(ctx, fields)
			if err != nil {
				return outputError(err)
			}
			env.log.Info("waiting for capsule", "id", cp.ID, "countdown", mgr.Describe(cp).CountdownText)

			if err := mgr.Start(ctx); err != nil {
				return outputError(err)
			}

			select {
			case <-due:
			case <-ctx.Done():
				return outputError(errors.NewCancelled("schedule"))
			}

			output, err := mgr.Dispatch(ctx, cp.ID)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI with the due evaluator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: env.cfg.Bind, Usage: "Interface to listen on"},
			&cli.IntFlag{Name: "port", Value: env.cfg.Port, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			mgr, err := env.newManager()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer mgr.Close()

			srv, err := web.NewServer(mgr, env.cfg, env.log, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			if err := web.Run(srv, mgr, env.log); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// outputJSON prints v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var cErr *errors.CapsuleError
	if stderrors.As(err, &cErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// readStdin reads all content from r, failing if it exceeds limit bytes.
func readStdin(r io.Reader, limit int64) (string, error) {
	if r == nil {
		r = os.Stdin
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}
