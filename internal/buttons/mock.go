package buttons

import "time"

// MockSource lets tests and mock-mode callers inject line transitions
// programmatically instead of reading real GPIO hardware.
type MockSource struct {
	events chan LineEvent
	now    func() time.Time
}

func NewMockSource() *MockSource {
	return &MockSource{events: make(chan LineEvent, 16), now: time.Now}
}

func (m *MockSource) Events() <-chan LineEvent { return m.events }

// Press and Release inject a transition at the current time. Tests with
// a fakeClock should set m.now before calling these.
func (m *MockSource) Press(line Line) {
	m.events <- LineEvent{Line: line, Pressed: true, At: m.now()}
}

func (m *MockSource) Release(line Line) {
	m.events <- LineEvent{Line: line, Pressed: false, At: m.now()}
}

// PressAndHold injects a full press/release pair separated by dur,
// without sleeping — useful for deterministic hold-threshold tests.
func (m *MockSource) PressAndHold(line Line, dur time.Duration) {
	start := m.now()
	m.events <- LineEvent{Line: line, Pressed: true, At: start}
	m.events <- LineEvent{Line: line, Pressed: false, At: start.Add(dur)}
}

func (m *MockSource) Close() { close(m.events) }
