package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aspor-platform/docintake/constants"
	"github.com/aspor-platform/docintake/internal/blob"
	"github.com/aspor-platform/docintake/internal/common"
	"github.com/aspor-platform/docintake/internal/run"
)

// newProcessCmd runs the pipeline once against local files, without the HTTP
// server. Useful for smoke-testing a deployment's OCR and LLM wiring.
func newProcessCmd() *cobra.Command {
	var (
		model  string
		format string
		user   string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "process [files...]",
		Short: "Process local documents through the pipeline once",
		Args:  cobra.RangeArgs(1, constants.MaxFilesPerRun),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), args, model, format, user, outDir)
		},
	}
	cmd.Flags().StringVar(&model, "model", "A", "analysis model (A or B)")
	cmd.Flags().StringVar(&format, "format", "docx", "output format (docx, pdf, txt)")
	cmd.Flags().StringVar(&user, "user", "cli", "owner recorded on the run")
	cmd.Flags().StringVar(&outDir, "out", ".", "directory the report is written to")
	return cmd
}

func runProcess(parent context.Context, paths []string, model, format, user, outDir string) error {
	cfg, err := common.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Production)

	app, cleanup, err := buildApp(parent, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	keys := make([]string, 0, len(paths))
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		name := filepath.Base(path)
		key := blob.UploadKey(common.SanitizeUserID(user), uuid.New().String()+"_"+name)
		contentType := mime.TypeByExtension(filepath.Ext(name))
		if err := app.store.Put(parent, key, data, contentType); err != nil {
			return fmt.Errorf("stage %s: %w", path, err)
		}
		keys = append(keys, key)
		names = append(names, name)
	}

	res, err := app.runs.Execute(parent, run.CreateInput{
		OwnerID:      user,
		Model:        constants.ModelType(model),
		FileKeys:     keys,
		FileNames:    names,
		OutputFormat: constants.OutputFormat(format),
	})
	if err != nil {
		if res != nil {
			return fmt.Errorf("run %s failed: %w", res.ID, err)
		}
		return err
	}

	key := res.Output[string(res.OutputFormat)]
	data, err := app.store.Get(parent, key)
	if err != nil {
		return fmt.Errorf("fetch report: %w", err)
	}
	outPath := filepath.Join(outDir, fmt.Sprintf("reporte_%s.%s", res.ID[:8], res.OutputFormat))
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("run %s completed, report written to %s\n", res.ID, outPath)
	return nil
}
