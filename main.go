package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	isatty "github.com/mattn/go-isatty"
	"go.uber.org/fx"
)

type runCmd struct{}

type versionCmd struct{}

var program *tea.Program

var cli struct {
	Version versionCmd `cmd:"version" help:"Print version information"`
	Debug   bool       `help:"Enable debug logging"`
	Run     runCmd     `cmd:"" default:"1" help:"Run the interactive writing studio"`
}

// Update the version as part of the release process
var version = "0.1.0"

// llmInitSuccessMsg is sent when the AI backend is connected and attached
type llmInitSuccessMsg struct{}

// llmInitErrorMsg is sent when LLM initialization fails
type llmInitErrorMsg struct {
	err error
}

func (v versionCmd) Run() error {
	fmt.Printf("Inkwell v%s\n", version)
	return nil
}

func (r *runCmd) Run() error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Println("This program requires a terminal to run.")
		fmt.Println("Please run it in a terminal emulator.")
		return nil
	}

	var prog *tea.Program
	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			ProvideLogger,
			ProvideConfig,
			ProvideStorage,
			ProvideWorkspace,
			ProvideTUIModel,
			StartTUI,
		),
		fx.Invoke(ProvideModelClient),
		fx.Populate(&prog),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	_, runErr := prog.Run()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return runErr
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("inkwell"),
		kong.Description("An AI-assisted writing studio for the terminal"),
	)
	if err := ctx.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
