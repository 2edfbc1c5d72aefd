package utils

import (
	"log/slog"
	"os"
	"strings"
)

var QuitChan = make(chan os.Signal, 1)

func Shutdown(reason string) {
	slog.Error("🚨 " + reason)
	os.Exit(1)
}

// CleanKey trims slashes and whitespace so a caller-supplied key segment
// cannot escape the configured path template.
func CleanKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.ReplaceAll(key, "..", "")
	return strings.Trim(key, "/")
}
