package main

import (
	"flag"
	"os"

	"atlas-service/internal/config"
	"atlas-service/internal/dataset"
	"atlas-service/internal/export"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yml", "path to config file")
	output := flag.String("output", "", "output archive path (overrides config)")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	outPath := cfg.Export.Output
	if *output != "" {
		outPath = *output
	}

	store, err := dataset.Open(cfg.Dataset.Path, logger)
	if err != nil {
		logger.Fatal("Failed to load dataset. Run the upstream projection step to produce it",
			zap.String("path", cfg.Dataset.Path),
			zap.Error(err))
	}
	defer store.Close()

	exportCfg := export.Config{
		SourcePath: cfg.Dataset.Path,
		StaticDir:  cfg.Export.StaticDir,
		Props:      export.DefaultProps(),
	}

	identifier, err := export.Identifier(export.Version, exportCfg)
	if err != nil {
		logger.Fatal("Failed to compute identifier", zap.Error(err))
	}
	logger.Info("Exporting archive", zap.String("identifier", identifier))

	exporter := export.NewService(logger)
	data, err := exporter.Archive(store, exportCfg)
	if err != nil {
		logger.Fatal("Failed to build archive", zap.Error(err))
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		logger.Fatal("Failed to write archive", zap.String("path", outPath), zap.Error(err))
	}

	logger.Info("Done", zap.String("path", outPath), zap.Int("bytes", len(data)))
}
