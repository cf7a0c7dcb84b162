package cli

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// playCommand creates the play command.
func (c *CLI) playCommand() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Walk through the cocoa story in the terminal",
		Long: `Walk through the cocoa story in the terminal.

Arrow keys move between steps, [ and ] move the year slider on the map
step, + and - zoom, tab opens the info panel for the next country.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlay(cmd.Context(), source)
		},
	}

	cmd.Flags().StringVarP(&source, "dataset", "d", "", "dataset path or URL (default from config)")

	return cmd
}

func (c *CLI) runPlay(ctx context.Context, source string) error {
	runner, err := c.newRunner(ctx)
	if err != nil {
		return err
	}
	defer runner.Close()

	// Logs would tear the alternate screen.
	level := c.Logger.GetLevel()
	c.SetLogLevel(LogFatal)
	defer c.SetLogLevel(level)

	m, err := runner.NewMachine(ctx, source)
	if err != nil {
		return err
	}
	p := tea.NewProgram(NewStoryModel(ctx, m, runner.Ref), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if sm, ok := final.(StoryModel); ok && sm.fatal != nil {
		return sm.fatal
	}
	return nil
}
