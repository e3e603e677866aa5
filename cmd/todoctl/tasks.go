package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Tommy-ui-del/Vue3FastAPI-To-Do/internal/tasks"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var taskDate string

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"task", "t"},
	Short:   "List and change the tasks of a day",
	Long: `List and change the tasks of a day. The day defaults to today.

Examples:
  todoctl tasks list
  todoctl tasks add "Buy milk" --date 2024-05-01
  todoctl tasks done 42
  todoctl tasks move 3 1`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE: withDay(func(cmd *cobra.Command, day *tasks.Day, args []string) error {
		renderTasks(cmd.OutOrStdout(), day)
		return nil
	}),
}

var tasksAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a task at the bottom of the list",
	Args:  cobra.MinimumNArgs(1),
	RunE: withDay(func(cmd *cobra.Command, day *tasks.Day, args []string) error {
		task, err := day.Add(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added task %d\n", task.ID)
		return nil
	}),
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Check or uncheck a task",
	Args:  cobra.ExactArgs(1),
	RunE: withDay(func(cmd *cobra.Command, day *tasks.Day, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		task, err := day.Toggle(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Task %d %s\n", task.ID, completedLabel(task.Completed))
		return nil
	}),
}

var tasksEditCmd = &cobra.Command{
	Use:   "edit <id> <text>",
	Short: "Change a task's text",
	Args:  cobra.MinimumNArgs(2),
	RunE: withDay(func(cmd *cobra.Command, day *tasks.Day, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		if _, err := day.Edit(cmd.Context(), id, strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d\n", id)
		return nil
	}),
}

var tasksRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: withDay(func(cmd *cobra.Command, day *tasks.Day, args []string) error {
		id, err := parseTaskID(args[0])
		if err != nil {
			return err
		}
		if err := day.Delete(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
		return nil
	}),
}

var tasksMoveCmd = &cobra.Command{
	Use:   "move <from> <to>",
	Short: "Move a task between positions (1 is the top)",
	Args:  cobra.ExactArgs(2),
	RunE: withDay(func(cmd *cobra.Command, day *tasks.Day, args []string) error {
		from, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[0])
		}
		to, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[1])
		}
		if err := day.Move(cmd.Context(), from-1, to-1); err != nil {
			return err
		}
		renderTasks(cmd.OutOrStdout(), day)
		return nil
	}),
}

func init() {
	tasksCmd.PersistentFlags().StringVar(&taskDate, "date", "", "day as YYYY-MM-DD (default today)")
	tasksCmd.AddCommand(tasksListCmd, tasksAddCmd, tasksDoneCmd, tasksEditCmd, tasksRemoveCmd, tasksMoveCmd)
	rootCmd.AddCommand(tasksCmd)
}

// withDay loads the selected day before running fn.
func withDay(fn func(cmd *cobra.Command, day *tasks.Day, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		date := time.Now()
		if taskDate != "" {
			parsed, err := time.ParseInLocation(tasks.DateLayout, taskDate, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", taskDate)
			}
			date = parsed
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}

		day := tasks.NewDay(a.tasks, a.tracker, date)
		if err := day.Load(cmd.Context()); err != nil {
			return err
		}
		return fn(cmd, day, args)
	}
}

func renderTasks(out io.Writer, day *tasks.Day) {
	list := day.Tasks()
	if len(list) == 0 {
		fmt.Fprintf(out, "%s\n", text.FgYellow.Sprintf("No tasks for %s", day.Date().Format(tasks.DateLayout)))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(day.Date().Format(tasks.DateLayout))
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("#"),
		text.FgHiCyan.Sprint("ID"),
		text.FgHiCyan.Sprint("DONE"),
		text.FgHiCyan.Sprint("TASK"),
	})
	for _, task := range list {
		done := ""
		if task.Completed {
			done = text.FgGreen.Sprint("✓")
		}
		t.AppendRow(table.Row{task.Priority, task.ID, done, task.Text})
	}
	t.Render()
}

func parseTaskID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}

func completedLabel(completed bool) string {
	if completed {
		return "completed"
	}
	return "reopened"
}
