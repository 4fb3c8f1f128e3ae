// Package main is an alert hook that shows a desktop notification.
// It uses notify-send on Linux and AppleScript on macOS.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request is the alert read from stdin.
type Request struct {
	Event      string   `json:"event"`
	Source     string   `json:"source"`
	Severity   string   `json:"severity"`
	Score      float64  `json:"score"`
	Indicators []string `json:"indicators"`
	Timestamp  string   `json:"timestamp"`
}

// Response is written to stdout.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}
	writeResponse(notify(title(req), body(req)))
}

func title(req Request) string {
	return fmt.Sprintf("riskcam: %s risk", req.Severity)
}

func body(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Score %.3f from %s", req.Score, req.Source)
	if len(req.Indicators) > 0 {
		fmt.Fprintf(&b, "\nIndicators: %s", strings.Join(req.Indicators, ", "))
	}
	if req.Timestamp != "" {
		fmt.Fprintf(&b, "\nAt %s", req.Timestamp)
	}
	return b.String()
}

func notify(title, body string) error {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q sound name \"Sosumi\"", body, title)
		return exec.Command("osascript", "-e", script).Run()
	case "linux":
		return exec.Command("notify-send", "--urgency=critical", title, body).Run()
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
