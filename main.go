package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"churnsight/db"
	qhttp "churnsight/http"
	"churnsight/logger"
	"churnsight/ml"
	"churnsight/predict"
)

type Config struct {
	Http struct {
		Port           int   `yaml:"port"`
		TimeoutSeconds int   `yaml:"timeout_seconds"`
		MaxUploadMB    int64 `yaml:"max_upload_mb"`
	} `yaml:"http"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Model struct {
		Dir string `yaml:"dir"`
	} `yaml:"model"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	flag.Parse()

	// 1. Load config and logger
	config, err := loadConfig(*configPath)
	if err != nil {
		logger.Init("info", "")
		logger.L.Fatal("failed to load config", zap.Error(err))
	}
	logger.Init(config.Log.Level, config.Log.File)
	defer logger.Sync()

	// 2. Initialize database
	if err := db.InitDB(config.Database.Path); err != nil {
		logger.L.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	logger.L.Info("database initialized", zap.String("path", config.Database.Path))

	// 3. Load model artifacts once. A failed load is not fatal: the service
	// runs degraded and keeps serving batch analysis.
	var artifacts *ml.ModelArtifacts
	artifacts, err = ml.LoadArtifacts(config.Model.Dir)
	if err != nil {
		artifacts = nil
		logger.L.Warn("model artifacts not loaded, inference disabled",
			zap.String("dir", config.Model.Dir), zap.Error(err))
	} else {
		logger.L.Info("model artifacts loaded",
			zap.Int("vocabulary_size", artifacts.Vectorizer.Width()))
	}
	qhttp.SetPredictService(predict.NewService(artifacts))

	// 4. Watch the config file so log level changes apply without a restart.
	// Artifacts are never hot-reloaded.
	go watchConfig(*configPath)

	// 5. Start HTTP server
	serverConfig := qhttp.DefaultServerConfig()
	if config.Http.Port > 0 {
		serverConfig.Port = config.Http.Port
	}
	if config.Http.TimeoutSeconds > 0 {
		serverConfig.Timeout = secondsToDuration(config.Http.TimeoutSeconds)
	}
	if config.Http.MaxUploadMB > 0 {
		serverConfig.MaxUploadBytes = config.Http.MaxUploadMB << 20
	}
	server := qhttp.NewServer(serverConfig)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.L.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.L.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.L.Error("server forced to shutdown", zap.Error(err))
	}
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// watchConfig re-reads the config on file changes and applies the log level.
func watchConfig(path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.L.Warn("config watch disabled", zap.Error(err))
		return
	}
	defer watcher.Close()

	// Watch the directory; editors often replace the file on save.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logger.L.Warn("config watch disabled", zap.Error(err))
		return
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			config, err := loadConfig(path)
			if err != nil {
				logger.L.Warn("config reload failed", zap.Error(err))
				continue
			}
			logger.SetLevel(config.Log.Level)
			logger.L.Info("log level updated", zap.String("level", config.Log.Level))

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.L.Warn("config watch error", zap.Error(err))
		}
	}
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
