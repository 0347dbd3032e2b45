package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/dagaz/internal"
	"github.com/starford/dagaz/internal/index"
	"github.com/starford/dagaz/internal/models"
	"github.com/starford/dagaz/internal/parser"
	pkgconfig "github.com/starford/dagaz/pkg/config"
)

// withApp loads config, opens the application, runs fn, and tears down.
func withApp(fn func(ctx context.Context, cmd *cli.Command, app *internal.App) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := internal.NewDefaultConfig()
		if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		app, err := internal.Open(internal.WithConfig(cfg))
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(ctx, cmd, app)
	}
}

func scanAction(ctx context.Context, cmd *cli.Command, app *internal.App) error {
	report, err := app.Engine.Scan(ctx, cmd.String("note"), cmd.Bool("vectors"))
	if err != nil {
		return err
	}
	fmt.Println(report.Summary())
	for _, f := range report.Failed {
		fmt.Printf("  failed: %s: %v\n", f.Path, f.Err)
	}
	return nil
}

func todosAction(_ context.Context, cmd *cli.Command, app *internal.App) error {
	f := index.TodoFilter{
		Notebook:        cmd.String("notebook"),
		Status:          models.TodoStatus(cmd.String("status")),
		Overdue:         cmd.Bool("overdue"),
		Tag:             cmd.String("tag"),
		PathContains:    cmd.String("path"),
		IncludeExcluded: cmd.Bool("all"),
		Sort:            cmd.String("sort"),
	}
	if cmd.Bool("pending") {
		completed := false
		f.Completed = &completed
	}
	if s := cmd.String("due-start"); s != "" {
		t, ok := parser.ParseDateValue(s, time.Now())
		if !ok {
			return fmt.Errorf("bad --due-start value %q", s)
		}
		f.DueStart = &t
	}
	if s := cmd.String("due-end"); s != "" {
		t, ok := parser.ParseDateValue(s, time.Now())
		if !ok {
			return fmt.Errorf("bad --due-end value %q", s)
		}
		f.DueEnd = &t
	}

	todos, err := app.Engine.QueryTodos(f)
	if err != nil {
		return err
	}
	for _, t := range todos {
		printTodo(t)
	}
	return nil
}

func printTodo(t models.Todo) {
	mark := "[" + t.Status.Marker() + "]"
	due := ""
	if t.DueDate != nil {
		due = " due " + t.DueDate.Format("2006-01-02")
	}
	fmt.Printf("%s  %s %s%s  (%s:%d)\n", t.ID, mark, t.Content, due, t.Source.Path, t.LineNumber)
}

// loadTodo fetches a cached todo by id for mutation commands.
func loadTodo(app *internal.App, id string) (*models.Todo, error) {
	return app.Engine.Cache().GetTodo(id)
}

func todoCommand() *cli.Command {
	return &cli.Command{
		Name:  "todo",
		Usage: "Mutate a single todo by cache id",
		Commands: []*cli.Command{
			{
				Name:      "done",
				Usage:     "Mark a todo completed",
				ArgsUsage: "<id>",
				Action: withApp(func(_ context.Context, cmd *cli.Command, app *internal.App) error {
					return app.Engine.UpdateTodoCompletion(cmd.Args().First(), true)
				}),
			},
			{
				Name:      "toggle",
				Usage:     "Flip a todo's checkbox",
				ArgsUsage: "<id>",
				Action: withApp(func(_ context.Context, cmd *cli.Command, app *internal.App) error {
					t, err := loadTodo(app, cmd.Args().First())
					if err != nil {
						return err
					}
					line, err := app.Engine.ToggleTodoInFile(t.Source.Path, t.LineNumber, t.Content)
					if err != nil {
						return err
					}
					fmt.Printf("toggled %s at line %d\n", t.ID, line)
					return nil
				}),
			},
			{
				Name:      "status",
				Usage:     "Set a todo's status (pending|in_progress|completed)",
				ArgsUsage: "<id> <status>",
				Action: withApp(func(_ context.Context, cmd *cli.Command, app *internal.App) error {
					return app.Engine.UpdateTodoStatus(cmd.Args().Get(0), models.TodoStatus(cmd.Args().Get(1)))
				}),
			},
			{
				Name:      "due",
				Usage:     "Set or clear a todo's due date ('-' clears)",
				ArgsUsage: "<id> <date>",
				Action: withApp(func(_ context.Context, cmd *cli.Command, app *internal.App) error {
					t, err := loadTodo(app, cmd.Args().Get(0))
					if err != nil {
						return err
					}
					var due *time.Time
					if arg := cmd.Args().Get(1); arg != "-" {
						parsed, ok := parser.ParseDateValue(arg, time.Now())
						if !ok {
							return fmt.Errorf("bad date value %q", arg)
						}
						due = &parsed
					}
					line, err := app.Engine.UpdateTodoDueDate(t.Source.Path, t.LineNumber, t.Content, due, false)
					if err != nil {
						return err
					}
					fmt.Printf("updated %s at line %d\n", t.ID, line)
					return nil
				}),
			},
			{
				Name:      "rm",
				Usage:     "Delete a todo line from its source file",
				ArgsUsage: "<id>",
				Action: withApp(func(_ context.Context, cmd *cli.Command, app *internal.App) error {
					t, err := loadTodo(app, cmd.Args().First())
					if err != nil {
						return err
					}
					return app.Engine.DeleteTodoFromFile(t.Source.Path, t.LineNumber, t.Content)
				}),
			},
		},
	}
}

func attachCommand() *cli.Command {
	return &cli.Command{
		Name:  "attach",
		Usage: "Manage attachments",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Attach a file or URL to a note (or a todo in it)",
				ArgsUsage: "<note-path> <file-or-url>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Display title"},
					&cli.BoolFlag{Name: "copy", Usage: "Copy the file into managed storage"},
					&cli.StringFlag{Name: "todo", Usage: "Attach to the todo with this cache id instead of the note"},
				},
				Action: withApp(func(_ context.Context, cmd *cli.Command, app *internal.App) error {
					notePath, target := cmd.Args().Get(0), cmd.Args().Get(1)
					title := cmd.String("title")

					ownerType, line, expected := models.OwnerNote, 0, ""
					if id := cmd.String("todo"); id != "" {
						t, err := loadTodo(app, id)
						if err != nil {
							return err
						}
						ownerType, line, expected = models.OwnerTodo, t.LineNumber, t.Content
						notePath = t.Source.Path
					}

					var a *models.Attachment
					var err error
					if strings.Contains(target, "://") {
						a, err = app.Engine.AddURLAttachment(ownerType, notePath, line, expected, target, title)
					} else {
						a, err = app.Engine.AddFileAttachment(ownerType, notePath, line, expected, target, title, cmd.Bool("copy"))
					}
					if err != nil {
						return err
					}
					fmt.Printf("attached %s (%s)\n", a.Path, a.ID)
					return nil
				}),
			},
			{
				Name:  "ls",
				Usage: "List attachments",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "file or url"},
					&cli.StringFlag{Name: "notebook", Usage: "Filter by notebook"},
				},
				Action: withApp(func(_ context.Context, cmd *cli.Command, app *internal.App) error {
					as, err := app.Engine.QueryAttachments(index.AttachmentFilter{
						Type:     models.AttachmentType(cmd.String("type")),
						Notebook: cmd.String("notebook"),
					})
					if err != nil {
						return err
					}
					for _, a := range as {
						fmt.Printf("%s  %-4s %s  (%s %s)\n", a.ID, a.Type, a.Path, a.OwnerType, a.OwnerID)
					}
					return nil
				}),
			},
			{
				Name:  "orphans",
				Usage: "List managed attachment files no cache row references",
				Action: withApp(func(_ context.Context, _ *cli.Command, app *internal.App) error {
					orphans, err := app.Engine.FindOrphanAttachmentFiles()
					if err != nil {
						return err
					}
					for _, o := range orphans {
						fmt.Println(o)
					}
					return nil
				}),
			},
		},
	}
}

func statsAction(_ context.Context, _ *cli.Command, app *internal.App) error {
	s, err := app.Engine.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("notes: %d\ntodos: %d\n", s.Notes, s.Todos)
	for k, v := range s.TodosByState {
		fmt.Printf("  %s: %d\n", k, v)
	}
	fmt.Printf("attachments: %d (copied %d, linked %d)\n", s.Attachments, s.Copied, s.Linked)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "dagaz",
		Usage: "Plaintext note and todo manager with a SQLite-backed query cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("DAGAZ_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "Reconcile the note tree with the cache",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "note", Usage: "Incrementally scan a single note path"},
					&cli.BoolFlag{Name: "vectors", Usage: "Also refresh the vector index (no-op without a backend)"},
				},
				Action: withApp(scanAction),
			},
			{
				Name:  "todos",
				Usage: "Query cached todos",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "notebook", Usage: "Filter by notebook"},
					&cli.StringFlag{Name: "status", Usage: "pending, in_progress, or completed"},
					&cli.BoolFlag{Name: "pending", Usage: "Exclude completed todos"},
					&cli.BoolFlag{Name: "overdue", Usage: "Only overdue todos"},
					&cli.StringFlag{Name: "due-start", Usage: "Due-date window start"},
					&cli.StringFlag{Name: "due-end", Usage: "Due-date window end"},
					&cli.StringFlag{Name: "tag", Usage: "Filter by tag"},
					&cli.StringFlag{Name: "path", Usage: "Filter by source path substring"},
					&cli.StringFlag{Name: "sort", Usage: "due, priority, or line"},
					&cli.BoolFlag{Name: "all", Usage: "Include todos from note_exclude notes"},
				},
				Action: withApp(todosAction),
			},
			todoCommand(),
			attachCommand(),
			{
				Name:   "stats",
				Usage:  "Show cache statistics",
				Action: withApp(statsAction),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
