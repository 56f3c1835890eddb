// Package tray provides a macOS system tray interface for the Strikepoint
// impact detection backend.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the macOS system tray application.
type Tray struct {
	onToggle      func(enabled bool)
	onDebugToggle func(enabled bool)
	onResetRound  func()
	onQuit        func()
	enabled       bool
	debug         bool
	hits          int
	mu            sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuDebug    *systray.MenuItem
	menuLastHit  *systray.MenuItem
	menuHitCount *systray.MenuItem
}

// New creates a new Tray instance with detection enabled by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when detection is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnDebugToggle sets the callback function to be called when the debug
// overlay is toggled.
func (t *Tray) OnDebugToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDebugToggle = fn
}

// OnResetRound sets the callback function to be called when the reset round
// menu item is clicked.
func (t *Tray) OnResetRound(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onResetRound = fn
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

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Strikepoint")
	systray.SetTooltip("Strikepoint Impact Detection")

	t.menuToggle = systray.AddMenuItem("● Detection on", "Toggle impact detection")
	t.menuDebug = systray.AddMenuItem("Debug overlay: off", "Toggle the debug video overlay")
	systray.AddSeparator()

	t.menuLastHit = systray.AddMenuItem("Last hit: none", "Last detected hit")
	t.menuLastHit.Disable()
	t.menuHitCount = systray.AddMenuItem("Hits this round: 0", "Hits in the current round")
	t.menuHitCount.Disable()
	systray.AddSeparator()

	menuReset := systray.AddMenuItem("Reset Round", "Clear tracks and handled objects")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Strikepoint")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuDebug.ClickedCh:
				t.handleDebugToggle()
			case <-menuReset.ClickedCh:
				t.handleResetRound()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
}

// handleToggle handles the detection toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if enabled {
		t.menuToggle.SetTitle("● Detection on")
	} else {
		t.menuToggle.SetTitle("○ Detection off")
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleDebugToggle handles the debug overlay menu item click.
func (t *Tray) handleDebugToggle() {
	t.mu.Lock()
	t.debug = !t.debug
	debug := t.debug

	if debug {
		t.menuDebug.SetTitle("Debug overlay: on")
	} else {
		t.menuDebug.SetTitle("Debug overlay: off")
	}

	callback := t.onDebugToggle
	t.mu.Unlock()

	if callback != nil {
		callback(debug)
	}
}

// handleResetRound handles the reset round menu item click.
func (t *Tray) handleResetRound() {
	t.mu.RLock()
	callback := t.onResetRound
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	t.mu.Lock()
	t.hits = 0
	t.mu.Unlock()
	t.setHitCount(0)
	t.SetLastHit("")
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

// SetLastHit updates the last hit display in the menu.
func (t *Tray) SetLastHit(desc string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastHit != nil {
		if desc == "" {
			t.menuLastHit.SetTitle("Last hit: none")
		} else {
			t.menuLastHit.SetTitle("Last hit: " + desc)
		}
	}
}

// AddHit increments the per-round hit counter and updates the last hit
// display.
func (t *Tray) AddHit(desc string) {
	t.mu.Lock()
	t.hits++
	n := t.hits
	t.mu.Unlock()

	t.setHitCount(n)
	t.SetLastHit(desc)
}

func (t *Tray) setHitCount(n int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuHitCount != nil {
		t.menuHitCount.SetTitle(fmt.Sprintf("Hits this round: %d", n))
	}
}

// IsEnabled returns the current detection enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
