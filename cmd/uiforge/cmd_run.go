package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"uiforge/internal/pipeline"
	"uiforge/internal/render"
	"uiforge/internal/types"
)

var (
	runFile     string
	runAttach   string
	runOptimize bool
	runOut      string
	runPlain    bool
)

var runCmd = &cobra.Command{
	Use:   "run [task description]",
	Short: "Generate a UI for one task",
	Long: `Runs the full pipeline once and prints a report.

The task comes from --file (usually a task.yaml) or from the arguments.

Example:
  uiforge run --file task.yaml --optimize --out ui.html`,
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Task specification file (task.yaml)")
	runCmd.Flags().StringVar(&runAttach, "attach", "", "Extra file appended to the task")
	runCmd.Flags().BoolVar(&runOptimize, "optimize", false, "Run one critique-and-revise pass")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Write the generated document to this file")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "Print the report as plain markdown")
}

func runTask(cmd *cobra.Command, args []string) error {
	spec, err := readTaskSpec(runFile, runAttach, args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	optimize := runOptimize || cfg.Pipeline.Optimize
	logger.Info("Processing task", zap.Int("spec_len", len(spec.Text())), zap.Bool("optimize", optimize))

	out, err := a.pipeline.Run(ctx, spec, optimize)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderReport(buildReport(out), runPlain))

	if out.Failed() {
		return errors.New(out.Failure.Error)
	}
	if runOut != "" {
		if err := writeDocument(runOut, out); err != nil {
			return err
		}
		logger.Info("Document written", zap.String("path", runOut))
	}
	return nil
}

// readTaskSpec assembles the task from a file or the arguments. YAML files
// are checked for syntax before any model call is made.
func readTaskSpec(file, attach string, args []string) (types.TaskSpecification, error) {
	var spec types.TaskSpecification

	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return spec, fmt.Errorf("failed to read task file: %w", err)
		}
		if ext := strings.ToLower(filepath.Ext(file)); ext == ".yaml" || ext == ".yml" {
			var probe interface{}
			if err := yaml.Unmarshal(data, &probe); err != nil {
				return spec, fmt.Errorf("task file %s is not valid YAML: %w", file, err)
			}
		}
		spec.Content = string(data)
		if len(args) > 0 {
			spec.Content = strings.Join(args, " ") + "\n\n" + spec.Content
		}
	case len(args) > 0:
		spec.Content = strings.Join(args, " ")
	default:
		return spec, errors.New("a task is required: pass --file or a description")
	}

	if strings.TrimSpace(spec.Content) == "" {
		return spec, errors.New("task specification is empty")
	}

	if attach != "" {
		data, err := os.ReadFile(attach)
		if err != nil {
			return spec, fmt.Errorf("failed to read attachment: %w", err)
		}
		spec.Attachment = string(data)
		spec.AttachmentName = filepath.Base(attach)
	}
	return spec, nil
}

// writeDocument renders the final artifact, or the best-effort text, to path.
func writeDocument(path string, out *pipeline.Outcome) error {
	var doc string
	if out.Artifact != nil {
		var err error
		if doc, err = render.Document(out.Artifact); err != nil {
			return err
		}
	} else {
		doc = render.Raw(out.Raw)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}
