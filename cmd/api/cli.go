package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	goversion "go.hein.dev/go-version"

	"zen-journal-backend/internal/ai"
	"zen-journal-backend/internal/auth"
	"zen-journal-backend/internal/input"
	"zen-journal-backend/internal/journal"
	"zen-journal-backend/internal/models"
	"zen-journal-backend/internal/store"
	"zen-journal-backend/internal/views"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func addVersion(root *cobra.Command) {
	shortened := false
	output := "json"
	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print the build version.",
		Annotations: map[string]string{"config": "skip"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), goversion.FuncWithOutput(shortened, version, commit, date, output))
		},
	}
	cmd.Flags().BoolVarP(&shortened, "short", "s", false, "Print just the version number.")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format. One of 'yaml' or 'json'.")
	root.AddCommand(cmd)
}

func addToken(root *cobra.Command, a *app) {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a user.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWTSecret == "" {
				return errors.New("jwt_secret is not configured")
			}
			tok, err := auth.GenerateToken([]byte(a.cfg.JWTSecret), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "Token lifetime.")
	root.AddCommand(cmd)
}

// session signs the CLI in as the configured user.
func (a *app) session(ctx context.Context, user string) (*auth.Session, error) {
	if user == "" {
		user = a.cfg.User
	}
	s := auth.NewSession()
	if err := s.Init(ctx, auth.StaticResolver(user)); err != nil {
		return nil, err
	}
	return s, nil
}

func addWrite(root *cobra.Command, a *app) {
	var (
		text    string
		dictate bool
		user    string
	)
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write a journal entry and organize it.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var src input.Source = input.Prompt{}
			switch {
			case text != "":
				src = input.Text(text)
			case dictate:
				src = input.Dictated{D: input.NewDictation(input.CommandRecognizer{Command: a.cfg.DictateCommand})}
			}

			content, err := src.Read(ctx)
			if err != nil {
				return errors.New(input.Message(err))
			}

			d, st, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer d.Close()
			s, err := a.session(ctx, user)
			if err != nil {
				return err
			}
			uid, err := s.UserID()
			if err != nil {
				return err
			}

			client := ai.New(a.cfg.OpenAIKey, a.cfg.OpenAIBaseURL, a.cfg.OpenAIModel)
			res, err := journal.New(ai.NewExtractor(client), st).Submit(ctx, uid, content)
			if err != nil {
				return errors.New(models.UserMessage(err))
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "Entry text; skips the interactive prompt.")
	cmd.Flags().BoolVar(&dictate, "dictate", false, "Capture the entry with the configured speech-to-text command.")
	cmd.Flags().StringVar(&user, "user", "", "Owner id; defaults to cli.user.")
	root.AddCommand(cmd)
}

func printResult(w io.Writer, res journal.Result) {
	tbl := uitable.New()
	tbl.AddRow("CATEGORY", "EXTRACTED")
	tbl.AddRow("tasks", len(res.Extracted.Tasks))
	tbl.AddRow("events", len(res.Extracted.Events))
	tbl.AddRow("notes", len(res.Extracted.Notes))
	tbl.AddRow("health", len(res.Extracted.Health))
	color.New(color.FgGreen).Fprintln(w, "saved entry", res.JournalEntryID)
	fmt.Fprintln(w, tbl)
	warn := color.New(color.FgYellow)
	for _, f := range res.Warnings {
		warn.Fprintf(w, "warning: %d %s not saved\n", f.Count, f.Category)
	}
}

// listing describes one list for the CLI.
type listing[T views.Record] struct {
	use      string
	short    string
	view     func(*store.Store, *auth.Session) *views.View[T]
	header   []any
	row      func(T) []any
	manual   bool // reordered by hand
	toggle   bool // has a completion flag
	editable bool
}

func addLists(root *cobra.Command, a *app) {
	addListing(root, a, listing[models.Task]{
		use:      "tasks",
		manual:   true,
		toggle:   true,
		editable: true,
		short:    "List and organize tasks.",
		view:     views.Tasks,
		header:   []any{"#", "DONE", "PRIORITY", "TITLE"},
		row: func(t models.Task) []any {
			done := " "
			if t.Completed {
				done = "x"
			}
			return []any{done, t.Priority.Badge(), t.Title}
		},
	})
	addListing(root, a, listing[models.CalendarEvent]{
		use:      "events",
		editable: true,
		short:    "List calendar events.",
		view:     views.Events,
		header:   []any{"#", "DATE", "TIME", "TITLE", "SYNCED"},
		row: func(e models.CalendarEvent) []any {
			return []any{deref(e.EventDate, "-"), deref(e.EventTime, "-"), e.Title, e.ExternalSyncEnabled}
		},
	})
	addListing(root, a, listing[models.Note]{
		use:      "notes",
		manual:   true,
		editable: true,
		short:    "List and organize notes.",
		view:     views.Notes,
		header:   []any{"#", "CREATED", "NOTE"},
		row: func(n models.Note) []any {
			return []any{n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Content}
		},
	})
	addListing(root, a, listing[models.HealthMention]{
		use:      "health",
		manual:   true,
		editable: true,
		short:    "List and organize health mentions.",
		view:     views.Health,
		header:   []any{"#", "CREATED", "MENTION"},
		row: func(h models.HealthMention) []any {
			return []any{h.CreatedAt.Local().Format("2006-01-02 15:04"), h.Content}
		},
	})
	addListing(root, a, listing[models.JournalEntry]{
		use:    "entries",
		short:  "List journal entries.",
		view:   views.Entries,
		header: []any{"#", "CREATED", "ENTRY"},
		row: func(e models.JournalEntry) []any {
			return []any{e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Content}
		},
	})
}

func deref(p *string, empty string) string {
	if p == nil {
		return empty
	}
	return *p
}

func addListing[T views.Record](root *cobra.Command, a *app, l listing[T]) {
	var (
		user   string
		filter views.Filter
		status string
		bucket string
	)

	// withView opens the store and refreshes the filtered view.
	withView := func(cmd *cobra.Command, fn func(ctx context.Context, v *views.View[T]) error) error {
		ctx := cmd.Context()
		d, st, err := a.open(ctx)
		if err != nil {
			return err
		}
		defer d.Close()
		s, err := a.session(ctx, user)
		if err != nil {
			return err
		}
		v := l.view(st, s)
		filter.Status, filter.Bucket = views.ParseStatus(status), views.ParseBucket(bucket)
		v.SetFilter(filter)
		if err := v.Refresh(ctx); err != nil {
			return err
		}
		return fn(ctx, v)
	}

	render := func(w io.Writer, v *views.View[T]) {
		items := v.Items()
		if len(items) == 0 {
			fmt.Fprintf(w, "no %s\n", l.use)
			return
		}
		tbl := uitable.New()
		tbl.MaxColWidth = 60
		tbl.Wrap = true
		tbl.AddRow(l.header...)
		for i, it := range items {
			tbl.AddRow(append([]any{i + 1}, l.row(it)...)...)
		}
		fmt.Fprintln(w, tbl)
	}

	// indexed runs op on the 1-based displayed position, then re-renders.
	indexed := func(op func(ctx context.Context, v *views.View[T], i int, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("position must be a number from the list, got %q", args[0])
			}
			return withView(cmd, func(ctx context.Context, v *views.View[T]) error {
				if n > len(v.Items()) {
					return fmt.Errorf("no %s at position %d", l.use, n)
				}
				if err := op(ctx, v, n-1, args[1:]); err != nil {
					if errors.Is(err, views.ErrNoNeighbour) || errors.Is(err, views.ErrNotOrderable) {
						return err
					}
					return errors.New(models.UserMessage(err))
				}
				render(cmd.OutOrStdout(), v)
				return nil
			})
		}
	}

	group := &cobra.Command{Use: l.use, Short: l.short}
	group.PersistentFlags().StringVar(&user, "user", "", "Owner id; defaults to cli.user.")
	group.PersistentFlags().StringVarP(&filter.Query, "query", "q", "", "Only items containing this text.")
	group.PersistentFlags().StringVar(&bucket, "since", "all", "Time bucket: all, today, week or month.")
	if l.toggle {
		group.PersistentFlags().StringVar(&status, "status", "all", "all, completed or pending.")
		group.PersistentFlags().StringVar(&filter.Priority, "priority", "", "low, medium or high.")
	}

	group.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the list.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withView(cmd, func(_ context.Context, v *views.View[T]) error {
				render(cmd.OutOrStdout(), v)
				return nil
			})
		},
	})
	group.AddCommand(&cobra.Command{
		Use:   "delete <n>",
		Short: "Delete the item at position n.",
		Args:  cobra.ExactArgs(1),
		RunE: indexed(func(ctx context.Context, v *views.View[T], i int, _ []string) error {
			return v.Delete(ctx, v.Items()[i].RecordID())
		}),
	})
	if l.manual {
		group.AddCommand(&cobra.Command{
			Use:   "move-up <n>",
			Short: "Move the item at position n up.",
			Args:  cobra.ExactArgs(1),
			RunE: indexed(func(ctx context.Context, v *views.View[T], i int, _ []string) error {
				return v.MoveUp(ctx, i)
			}),
		})
		group.AddCommand(&cobra.Command{
			Use:   "move-down <n>",
			Short: "Move the item at position n down.",
			Args:  cobra.ExactArgs(1),
			RunE: indexed(func(ctx context.Context, v *views.View[T], i int, _ []string) error {
				return v.MoveDown(ctx, i)
			}),
		})
	}
	if l.editable {
		group.AddCommand(&cobra.Command{
			Use:   "edit <n> <text>",
			Short: "Replace the text of the item at position n.",
			Args:  cobra.MinimumNArgs(2),
			RunE: indexed(func(ctx context.Context, v *views.View[T], i int, rest []string) error {
				return v.Edit(ctx, v.Items()[i].RecordID(), strings.Join(rest, " "))
			}),
		})
	}
	if l.toggle {
		group.AddCommand(&cobra.Command{
			Use:   "toggle <n>",
			Short: "Flip completion of the item at position n.",
			Args:  cobra.ExactArgs(1),
			RunE: indexed(func(ctx context.Context, v *views.View[T], i int, _ []string) error {
				return v.Toggle(ctx, v.Items()[i].RecordID())
			}),
		})
	}
	root.AddCommand(group)
}
