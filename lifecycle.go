package connectx

import "sync"

type appState int

const (
	appNew appState = iota
	appRunning
	appPaused
)

// Lifecycle emits one tracking event per host application state transition:
// open, pause and resume. Repeated notifications for the state the app is
// already in emit nothing.
type Lifecycle struct {
	tracker Tracker

	mu    sync.Mutex
	state appState
}

// NewLifecycle returns a Lifecycle for an application that has not opened yet.
func NewLifecycle(t Tracker) *Lifecycle {
	return &Lifecycle{tracker: t}
}

// Open records the application start.
func (l *Lifecycle) Open() error {
	return l.transition(appNew, appRunning, EventOpenApp)
}

// Pause records the application moving to the background.
func (l *Lifecycle) Pause() error {
	return l.transition(appRunning, appPaused, EventAppPause)
}

// Resume records the application returning to the foreground.
func (l *Lifecycle) Resume() error {
	return l.transition(appPaused, appRunning, EventAppResume)
}

func (l *Lifecycle) transition(from, to appState, event string) error {
	l.mu.Lock()
	if l.state != from {
		l.mu.Unlock()
		return nil
	}
	l.state = to
	l.mu.Unlock()

	return l.tracker.Track(TrackingEvent{Name: event})
}

// Toggle tracks the visibility of a named panel, such as a form. It emits
// "open <name>" and "close <name>" only when visibility actually changes,
// and "submit <name>" when a visible panel is submitted.
type Toggle struct {
	tracker    Tracker
	name       string
	attributes map[string]any

	mu      sync.Mutex
	visible bool
}

// NewToggle returns a hidden panel. attrs are attached to its open and close events.
func NewToggle(t Tracker, name string, attrs map[string]any) *Toggle {
	return &Toggle{tracker: t, name: name, attributes: attrs}
}

// Visible reports whether the panel is shown.
func (p *Toggle) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Set shows or hides the panel.
func (p *Toggle) Set(visible bool) error {
	p.mu.Lock()
	changed := p.visible != visible
	p.visible = visible
	p.mu.Unlock()

	if !changed {
		return nil
	}
	return p.emit(visible)
}

// Flip inverts the panel's visibility.
func (p *Toggle) Flip() error {
	p.mu.Lock()
	p.visible = !p.visible
	visible := p.visible
	p.mu.Unlock()

	return p.emit(visible)
}

func (p *Toggle) emit(visible bool) error {
	name := "close " + p.name
	if visible {
		name = "open " + p.name
	}
	return p.tracker.Track(TrackingEvent{Name: name, Attributes: p.attributes})
}

// Submit records a submission and hides the panel without a close event.
// A hidden panel cannot be submitted, so Submit on it emits nothing.
func (p *Toggle) Submit() error {
	p.mu.Lock()
	if !p.visible {
		p.mu.Unlock()
		return nil
	}
	p.visible = false
	p.mu.Unlock()
	return p.tracker.Track(TrackingEvent{Name: "submit " + p.name})
}
