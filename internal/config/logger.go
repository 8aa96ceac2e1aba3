package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"unicode/utf8"
)

const logFlags = log.LstdFlags | log.Lmicroseconds | log.LUTC

var (
	logger     *log.Logger
	initLogger sync.Once
)

// GetLogger returns the process logger, writing UTC timestamps to stdout.
func GetLogger() *log.Logger {
	initLogger.Do(func() {
		logger = NewLogger(os.Stdout)
	})
	return logger
}

func NewLogger(w io.Writer) *log.Logger {
	return log.New(w, "", logFlags)
}

// Truncate shortens b to at most max bytes without splitting a UTF-8
// sequence, noting how many bytes were dropped.
func Truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	cut := max
	for cut > 0 && cut < len(b) && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return fmt.Sprintf("%s...(+%d bytes)", b[:cut], len(b)-cut)
}
