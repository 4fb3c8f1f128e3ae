// Package tray provides a system tray toggle for riskcam scan mode.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle func(start bool)
	onOpen   func()
	onQuit   func()
	running  bool
	state    string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuState     *systray.MenuItem
	menuLastAlert *systray.MenuItem
}

// New creates a new Tray instance showing a stopped monitor.
func New() *Tray {
	return &Tray{state: "idle"}
}

// OnToggle sets the callback invoked with the requested running state.
func (t *Tray) OnToggle(fn func(start bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnOpen sets the callback for the "Open monitor" menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray loop started by Run.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("riskcam")
	systray.SetTooltip("riskcam risk monitor")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running), "Start or stop automatic scanning")
	t.menuState = systray.AddMenuItem(stateTitle(t.state), "Monitor state")
	t.menuState.Disable()
	systray.AddSeparator()

	t.menuLastAlert = systray.AddMenuItem(alertTitle("", 0), "Last HIGH classification")
	t.menuLastAlert.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Monitor...", "Open the monitor in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit riskcam")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// handleToggle requests the opposite of the current running state. The menu
// follows SetState rather than the click, so a failed start shows as stopped.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	start := !t.running
	callback := t.onToggle
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(start)
	}
}

// handleOpen handles the open menu item click.
func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetState shows the controller state. Any state but idle counts as running.
func (t *Tray) SetState(state string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = state
	t.running = state != "idle"

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(t.running))
	}
	if t.menuState != nil {
		t.menuState.SetTitle(stateTitle(state))
	}
}

// SetLastAlert updates the last alert display in the menu.
func (t *Tray) SetLastAlert(when string, score float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastAlert != nil {
		t.menuLastAlert.SetTitle(alertTitle(when, score))
	}
}

// IsRunning reports whether the last state shown was not idle.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

func toggleTitle(running bool) string {
	if running {
		return "■ Stop Monitoring"
	}
	return "▶ Start Monitoring"
}

func stateTitle(state string) string {
	return "State: " + state
}

func alertTitle(when string, score float64) string {
	if when == "" {
		return "Last alert: none"
	}
	return fmt.Sprintf("Last alert: %s (%.3f)", when, score)
}
