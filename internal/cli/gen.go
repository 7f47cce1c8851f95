package cli

import (
	"os"

	"go.uber.org/zap"

	"fields-valid/pkg/config"
	"fields-valid/pkg/validator/codegen"
	"fields-valid/pkg/validator/schema"
)

func runGen(cfg *config.Config, file *schema.File, log *zap.Logger, stdio IO) int {
	src, err := codegen.Generate(file, cfg.Package)
	if err != nil {
		log.Error("generate failed", zap.String("schema", cfg.Schema), zap.Error(err))
		return ExitUsage
	}

	if cfg.Output == "" || cfg.Output == "-" {
		if _, err := stdio.Stdout.Write(src); err != nil {
			log.Error("write output failed", zap.Error(err))
			return ExitUsage
		}
		return ExitOK
	}

	if err := os.WriteFile(cfg.Output, src, 0o644); err != nil {
		log.Error("write output failed", zap.String("output", cfg.Output), zap.Error(err))
		return ExitUsage
	}
	log.Info("generated", zap.String("output", cfg.Output), zap.Int("records", len(file.Records)))
	return ExitOK
}
