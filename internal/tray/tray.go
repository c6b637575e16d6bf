// Package tray provides an optional system tray icon for the fingerdrive viewer.
package tray

import (
	"sync"

	"github.com/ayusman/fingerdrive/internal/gesture"
	"github.com/getlantern/systray"
)

// Tray shows the last motion and lets the user open the viewer or quit.
type Tray struct {
	onOpen func()
	onQuit func()
	mu     sync.RWMutex

	last    gesture.Motion
	hasLast bool

	menuMotion *systray.MenuItem
}

// New creates a Tray with no callbacks.
func New() *Tray {
	return &Tray{}
}

// OnOpen sets the callback for the "Open Viewer" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback for the "Quit" item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray. It blocks until Quit is called and must run on the
// main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("fingerdrive")
	systray.SetTooltip("fingerdrive gesture control")

	t.mu.Lock()
	t.menuMotion = systray.AddMenuItem(MotionTitle(t.last, t.hasLast), "Last detected motion")
	t.menuMotion.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Viewer", "Open the video stream in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Stop fingerdrive")

	go func() {
		for {
			select {
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastMotion updates the motion item. Repeated motions are ignored.
func (t *Tray) SetLastMotion(m gesture.Motion) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasLast && t.last == m {
		return
	}
	t.last = m
	t.hasLast = true

	if t.menuMotion != nil {
		t.menuMotion.SetTitle(MotionTitle(m, true))
	}
}

// LastMotion returns the most recent motion and whether one was seen.
func (t *Tray) LastMotion() (gesture.Motion, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last, t.hasLast
}

// MotionTitle is the label of the motion item.
func MotionTitle(m gesture.Motion, ok bool) string {
	if !ok {
		return "Motion: none yet"
	}
	return "Motion: " + m.String()
}
