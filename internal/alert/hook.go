package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/ayusman/riskcam/internal/logger"
	"github.com/ayusman/riskcam/internal/render"
)

// EventRiskAlert is the event name sent to hooks.
const EventRiskAlert = "risk_alert"

// hookWaitDelay bounds how long output pipes may stay open after a hook is killed.
const hookWaitDelay = time.Second

// HookManifest describes a hook installed in a hooks directory.
type HookManifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`
}

// Hook is an external command run for every alert.
type Hook struct {
	Manifest   HookManifest
	Path       string   // working directory
	Executable string   // absolute path or name on PATH
	Args       []string // extra arguments
}

// HookRequest is written to the hook's stdin as JSON.
type HookRequest struct {
	Event      string   `json:"event"`
	Source     string   `json:"source"`
	Severity   string   `json:"severity"`
	Score      float64  `json:"score"`
	Indicators []string `json:"indicators"`
	Timestamp  string   `json:"timestamp"`
	Image      string   `json:"image,omitempty"`
}

// HookResponse is read back from the hook's stdout. Empty output counts as success.
type HookResponse struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewHookRequest builds the request for an alert.
func NewHookRequest(a render.Alert, withImage bool) *HookRequest {
	ts := a.Timestamp
	if ts == "" {
		ts = a.At.UTC().Format(time.RFC3339)
	}
	req := &HookRequest{
		Event:      EventRiskAlert,
		Source:     a.Source,
		Severity:   a.Severity.String(),
		Score:      a.Score,
		Indicators: a.Indicators,
		Timestamp:  ts,
	}
	if req.Indicators == nil {
		req.Indicators = []string{}
	}
	if withImage && a.Frame != nil {
		req.Image = a.Frame.DataURL()
	}
	return req
}

// Executor runs hooks with a timeout.
type Executor struct {
	timeoutMs int
}

// NewExecutor creates a new Executor with the specified timeout in milliseconds.
func NewExecutor(timeoutMs int) *Executor {
	return &Executor{
		timeoutMs: timeoutMs,
	}
}

// Execute runs a hook with the given request and returns the response.
// The request is sent as JSON on stdin and stdout is parsed as a HookResponse.
func (e *Executor) Execute(hook *Hook, req *HookRequest) (*HookResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(e.timeoutMs)*time.Millisecond)
	defer cancel()

	cmd := exec.CommandContext(ctx, hook.Executable, hook.Args...)
	cmd.Dir = hook.Path
	cmd.WaitDelay = hookWaitDelay

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("hook execution timeout after %dms", e.timeoutMs)
	}

	if err != nil {
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("hook execution failed: %w, stderr: %s", err, s)
		}
		return nil, fmt.Errorf("hook execution failed: %w", err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return &HookResponse{Success: true}, nil
	}

	var response HookResponse
	if err := json.Unmarshal(out, &response); err != nil {
		return nil, fmt.Errorf("failed to parse hook response: %w, stdout: %s", err, stdout.String())
	}
	return &response, nil
}

// Hooks runs every configured hook for each alert.
type Hooks struct {
	executor  *Executor
	hooks     []*Hook
	withImage bool
}

// NewHooks creates a notifier for hooks. It returns nil when hooks is empty.
func NewHooks(executor *Executor, hooks []*Hook, withImage bool) *Hooks {
	if len(hooks) == 0 {
		return nil
	}
	return &Hooks{executor: executor, hooks: hooks, withImage: withImage}
}

// List returns the configured hooks.
func (h *Hooks) List() []*Hook {
	return h.hooks
}

// Notify implements render.Notifier.
func (h *Hooks) Notify(a render.Alert) {
	req := NewHookRequest(a, h.withImage)
	for _, hook := range h.hooks {
		resp, err := h.executor.Execute(hook, req)
		if err != nil {
			logger.Warn("Hook", "%s: %v", hook.Manifest.Name, err)
			continue
		}
		if !resp.Success {
			logger.Warn("Hook", "%s reported failure: %s", hook.Manifest.Name, resp.Error)
			continue
		}
		logger.Debug("Hook", "%s ok", hook.Manifest.Name)
	}
}

// CommandHook wraps a command line from configuration as a Hook.
func CommandHook(argv []string) (*Hook, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("empty hook command")
	}
	return &Hook{
		Manifest:   HookManifest{Name: filepath.Base(argv[0]), Executable: argv[0]},
		Executable: argv[0],
		Args:       argv[1:],
	}, nil
}

// DiscoverHooks scans dir for subdirectories holding a hook.json manifest.
// A missing directory yields no hooks. Unreadable manifests are skipped.
func DiscoverHooks(dir string) ([]*Hook, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var hooks []*Hook
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		hookPath := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(filepath.Join(hookPath, "hook.json"))
		if err != nil {
			continue
		}

		var manifest HookManifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			logger.Warn("Hook", "skipping %s: invalid manifest: %v", entry.Name(), err)
			continue
		}
		if manifest.Executable == "" {
			continue
		}
		if manifest.Name == "" {
			manifest.Name = entry.Name()
		}

		hooks = append(hooks, &Hook{
			Manifest:   manifest,
			Path:       hookPath,
			Executable: filepath.Join(hookPath, manifest.Executable),
		})
	}

	sort.Slice(hooks, func(i, j int) bool { return hooks[i].Manifest.Name < hooks[j].Manifest.Name })
	return hooks, nil
}
