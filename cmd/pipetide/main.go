package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pipetide/pipetide/internal/config"
	"github.com/pipetide/pipetide/internal/controller"
	"github.com/pipetide/pipetide/internal/events"
	"github.com/pipetide/pipetide/internal/shell"
	"github.com/pipetide/pipetide/internal/task"
	"github.com/pipetide/pipetide/internal/tui"
)

func main() {
	configPath := flag.String("config", "", "pipeline config file (overrides conventional paths)")
	headless := flag.Bool("headless", false, "run without the monitor UI")
	flag.Parse()

	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pm := shell.NewProcessManager()

	var cfg *config.PipelineConfig
	var err error
	if *configPath != "" {
		cfg, err = config.Load("", *configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Stages) == 0 {
		fmt.Fprintln(os.Stderr, "No stages configured; nothing to run")
		os.Exit(1)
	}

	grid := shell.NewGrid(shell.DefaultRetryConfig())
	if len(cfg.Grid.Command) > 0 {
		grid.Command = cfg.Grid.Command
	}
	grid.Queue = cfg.Grid.Queue
	grid.Procs = pm

	bus := events.NewBus()
	defer bus.Close()

	graph, err := buildGraph(cfg, grid, pm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building pipeline: %v\n", err)
		os.Exit(1)
	}

	runner := controller.NewRunner(controller.RunnerConfig{
		Slots: cfg.Slots,
		Bus:   bus,
	}, graph)

	if *headless {
		runHeadless(ctx, runner, pm)
		return
	}

	model := tui.New(bus, cfg.Name)
	p := tea.NewProgram(model, tea.WithAltScreen())

	uiErr := make(chan error, 1)
	go func() {
		_, err := p.Run()
		uiErr <- err
	}()

	runErr := make(chan error, 1)
	go func() {
		_, err := runner.Run(ctx)
		runErr <- err
	}()

	select {
	case err := <-uiErr:
		// User quit the monitor; the run keeps its context until signal.
		stop()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case err := <-runErr:
		if err != nil {
			log.Printf("ERROR: pipeline: %v", err)
		}
		logSummary(runner.Results())
		p.Quit()
		<-uiErr

	case <-ctx.Done():
		stop()
		log.Println("Shutdown signal received, cleaning up...")

		if err := pm.KillAll(); err != nil {
			log.Printf("Error killing subprocesses: %v", err)
		}

		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		select {
		case err := <-uiErr:
			if err != nil {
				log.Printf("Monitor exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}

	log.Println("Shutdown complete")
}

// runHeadless executes the pipeline without the monitor UI.
func runHeadless(ctx context.Context, runner *controller.Runner, pm *shell.ProcessManager) {
	results, err := runner.Run(ctx)
	if ctx.Err() != nil {
		if killErr := pm.KillAll(); killErr != nil {
			log.Printf("Error killing subprocesses: %v", killErr)
		}
	}
	logSummary(results)
	if err != nil {
		log.Printf("ERROR: pipeline: %v", err)
		os.Exit(1)
	}
}

// buildGraph converts configured stages into script tasks wired into a
// dependency graph. Stage ordering in the config is irrelevant; edges come
// from shared input and output paths.
func buildGraph(cfg *config.PipelineConfig, grid *shell.Grid, pm *shell.ProcessManager) (*controller.Graph, error) {
	graph := controller.NewGraph()

	for _, stage := range cfg.Stages {
		params := make(map[string]any, len(stage.Parameters)+1)
		for k, v := range stage.Parameters {
			params[k] = v
		}
		if stage.Slots > 0 {
			params["slots"] = stage.Slots
		}

		opts := task.Options{
			URL:         "task://" + cfg.Name + "/" + stage.Name,
			Inputs:      pathObjects(stage.Inputs),
			Outputs:     pathObjects(stage.Outputs),
			Mutables:    pathObjects(stage.Mutables),
			Parameters:  params,
			Mode:        task.ModeThreaded,
			Distributed: stage.Distributed,
		}
		if stage.Distributed {
			opts.Shell = grid
		} else {
			opts.Shell = shell.Local{Procs: pm}
		}

		t, err := task.NewScriptTask(stage.Script, opts)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", stage.Name, err)
		}
		if err := graph.AddTask(t); err != nil {
			return nil, err
		}
	}

	if _, err := graph.Validate(); err != nil {
		return nil, err
	}
	return graph, nil
}

func pathObjects(paths map[string]string) map[string]task.Object {
	if len(paths) == 0 {
		return nil
	}
	objs := make(map[string]task.Object, len(paths))
	for name, path := range paths {
		objs[name] = task.NewLocalFile(path)
	}
	return objs
}

// logSummary logs one line per task result.
func logSummary(results []controller.Result) {
	for _, res := range results {
		switch {
		case res.Skipped:
			log.Printf("up to date: %s", res.URL)
		case res.Err != nil:
			log.Printf("failed: %s: %v", res.URL, res.Err)
		default:
			log.Printf("%s: %s", res.Status, res.URL)
		}
	}
}
