package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/mselser95/mm-oracle/internal/app"
	"github.com/mselser95/mm-oracle/pkg/config"
	"go.uber.org/zap"
)

// loadEnv loads .env when present. A missing file is not an error.
func loadEnv() {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: load .env: %v\n", err)
	}
}

// loadCLI loads configuration and a stderr logger for one-shot commands.
func loadCLI() (*config.Config, *zap.Logger, error) {
	loadEnv()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewCLILogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, logger, nil
}

// newCLIApp builds the application for a one-shot command. Callers must
// Close it.
func newCLIApp() (*app.App, *zap.Logger, error) {
	cfg, logger, err := loadCLI()
	if err != nil {
		return nil, nil, err
	}

	application, err := app.New(cfg, logger, nil)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("create app: %w", err)
	}

	return application, logger, nil
}

// parseTimeFlag accepts RFC3339 or ms epoch. Empty returns fallback.
func parseTimeFlag(value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}

	ms, err := strconv.ParseInt(value, 10, 64)
	if err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or ms epoch", value)
	}
	return t.UTC(), nil
}

// readDocumentArg returns value, or the contents of the file it names when
// prefixed with @.
func readDocumentArg(value string) (string, error) {
	if !strings.HasPrefix(value, "@") {
		return value, nil
	}

	data, err := os.ReadFile(strings.TrimPrefix(value, "@"))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.TrimPrefix(value, "@"), err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
