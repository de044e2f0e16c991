// logger.go
package main

import (
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Leveled logging helpers over the standard logger. LOG_LEVEL=debug turns on
// the debug lines; everything else always prints.

func debugEnabled() bool {
	return strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug")
}

func LogDebug(format string, args ...interface{}) {
	if debugEnabled() {
		log.Printf("🔍 "+format, args...)
	}
}

func LogInfo(format string, args ...interface{}) {
	log.Printf("ℹ️ "+format, args...)
}

func LogWarn(format string, args ...interface{}) {
	log.Printf("⚠️ "+format, args...)
}

func LogError(format string, args ...interface{}) {
	log.Printf("❌ "+format, args...)
}

// generateRequestID returns a short ID for correlating the logs of one
// webhook delivery across async processing.
func generateRequestID() string {
	return uuid.NewString()[:8]
}
