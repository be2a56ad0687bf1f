package core

import "sync"

// Key code definitions
type KeyCode uint16

const (
	KEY_SPACE  KeyCode = 0x20
	KEY_ESCAPE KeyCode = 0x1B
	KEY_F1     KeyCode = 0x70
	KEY_F2     KeyCode = 0x71
	KEY_F3     KeyCode = 0x72
	KEY_F4     KeyCode = 0x73
	KEY_F5     KeyCode = 0x74
	KEY_F11    KeyCode = 0x7A
	KEY_F12    KeyCode = 0x7B
	KEYS_MAX_KEYS KeyCode = 0x100
)

// Keyboard state structure
type KeyboardState struct {
	Keys [256]bool
}

// Input holds the current and previous keyboard state. Keys are written by
// the platform callbacks and read by the game loop.
type Input struct {
	mu       sync.Mutex
	current  KeyboardState
	previous KeyboardState
	events   *EventBus
}

func NewInput(events *EventBus) *Input {
	return &Input{events: events}
}

// Update copies the current state to the previous one. Call it once per
// frame after the frame consumed the input.
func (in *Input) Update() {
	in.mu.Lock()
	in.previous = in.current
	in.mu.Unlock()
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.current.Keys[key&0xff]
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.previous.Keys[key&0xff]
}

// Pressed reports a key that went down since the last Update.
func (in *Input) Pressed(key KeyCode) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.current.Keys[key&0xff] && !in.previous.Keys[key&0xff]
}

func (in *Input) ProcessKey(key KeyCode, pressed bool) {
	in.mu.Lock()
	// Only handle this if the state actually changed.
	changed := in.current.Keys[key&0xff] != pressed
	in.current.Keys[key&0xff] = pressed
	in.mu.Unlock()
	if !changed || in.events == nil {
		return
	}

	code := EVENT_CODE_KEY_RELEASED
	if pressed {
		code = EVENT_CODE_KEY_PRESSED
	}
	var data EventContext
	data.Data.U16[0] = uint16(key)
	in.events.Fire(code, in, data)
}
