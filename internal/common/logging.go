package common

import (
	"io"
	"log"
	"os"
)

var (
	logger = log.New(os.Stderr, "[ccsdsgate] ", log.LstdFlags|log.Lmicroseconds)
)

// SetLogOutput redirects the package logger, typically to a rotating file
// writer set up by the CLI.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

func Logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}
