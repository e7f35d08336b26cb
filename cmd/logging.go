package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-inventory/config"
)

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Logging.Level, err)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)

	switch strings.ToLower(cfg.Logging.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: expected json or text", cfg.Logging.Format)
	}
	return nil
}
