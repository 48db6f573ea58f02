package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stepwise/pkg/application"
	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

var tasksJSON bool

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and update the stored task list",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd)
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		list := services.Store.Tasks()
		stats := services.Store.Stats()
		out := cmd.OutOrStdout()
		if tasksJSON {
			return writeJSON(out, map[string]any{"tasks": list, "completed": stats.Completed, "total": stats.Total})
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No tasks yet. Run 'stepwise generate <context>' --save to create some.")
			return nil
		}
		fmt.Fprintf(out, "%d of %d completed\n\n", stats.Completed, stats.Total)
		printTasks(out, list)
		return nil
	},
}

func newTasksEditCmd() *cobra.Command {
	var name, description, timeframe string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit the name, description or timeframe of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch tasks.Patch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("timeframe") {
				patch.Timeframe = &timeframe
			}
			if patch.IsEmpty() {
				return NewCLIError("nothing to update", "Pass at least one of --name, --description or --timeframe", nil)
			}

			services, err := loadServices(cmd)
			if err != nil {
				return MapError(err)
			}
			defer services.Close()

			task, found, err := services.Store.Update(cmd.Context(), args[0], patch)
			if err != nil {
				return fmt.Errorf("failed to update task: %w", err)
			}
			if !found {
				return MapError(fmt.Errorf("%w: %s", application.ErrTaskNotFound, args[0]))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s updated.\n", task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New task name")
	cmd.Flags().StringVar(&description, "description", "", "New task description")
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "New time estimate")
	return cmd
}

var tasksToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Mark a task completed, or open again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd)
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		res, found, err := services.Store.ToggleCompletion(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to toggle task: %w", err)
		}
		if !found {
			return MapError(fmt.Errorf("%w: %s", application.ErrTaskNotFound, args[0]))
		}

		out := cmd.OutOrStdout()
		if !res.Task.Completed {
			fmt.Fprintf(out, "Task %s reopened.\n", res.Task.ID)
			return nil
		}
		fmt.Fprintf(out, "Task %s completed.\n", res.Task.ID)
		switch {
		case res.NotifyErr != nil:
			fmt.Fprintf(cmd.ErrOrStderr(), "Webhook Failed: %v\n", MapError(res.NotifyErr))
		case services.Notifier != nil:
			fmt.Fprintln(out, "Task completion notification sent.")
		}
		return nil
	},
}

var tasksClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored task",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd)
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		if err := services.Store.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clear tasks: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Task list cleared.")
		return nil
	},
}

func printTasks(w io.Writer, list []tasks.Task) {
	for _, t := range list {
		box := "[ ]"
		if t.Completed {
			box = "[x]"
		}
		fmt.Fprintf(w, "%s %s  %s (%s)\n      %s\n", box, t.ID, t.Name, t.Timeframe, t.Description)
	}
}

func init() {
	tasksListCmd.Flags().BoolVar(&tasksJSON, "json", false, "Print JSON instead of text")
	tasksCmd.AddCommand(tasksListCmd, newTasksEditCmd(), tasksToggleCmd, tasksClearCmd)
	RootCmd.AddCommand(tasksCmd)
}
