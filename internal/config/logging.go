package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

const defaultLogFile = "logs/dispatchcore.log"

// SetupLogging points the standard library logger at stdout and a log
// file, creating the file's directory if needed.
func SetupLogging(traceLevel string) error {
	file := getenv("LOG_FILE", defaultLogFile)

	dir := filepath.Dir(file)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	log.SetOutput(io.MultiWriter(os.Stdout, f))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("[config] logging initialized at trace_level=%s", traceLevel)
	return nil
}
