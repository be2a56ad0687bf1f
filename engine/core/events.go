package core

import "sync"

type EventContext struct {
	Data struct {
		U64 [2]uint64
		F64 [2]float64
		U32 [4]uint32
		U16 [8]uint16
		S   string
	}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed.
	/* Context usage:
	 * u16 key_code = data.U16[0];
	 */
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released.
	/* Context usage:
	 * u16 key_code = data.U16[0];
	 */
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// The swap chain resolution changed.
	/* Context usage:
	 * u32 width = data.U32[0];
	 * u32 height = data.U32[1];
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// The native device was lost. Fired once per device.
	/* Context usage:
	 * u32 native code = data.U32[0];
	 * string reason = data.S;
	 */
	EVENT_CODE_DEVICE_LOST SystemEventCode = 0x09

	// A watched asset changed on disk.
	/* Context usage:
	 * string path = data.S;
	 */
	EVENT_CODE_ASSET_CHANGED SystemEventCode = 0x0A

	// A requested screenshot was written.
	/* Context usage:
	 * string path = data.S;
	 */
	EVENT_CODE_SCREENSHOT_SAVED SystemEventCode = 0x0B

	// The OS resized the window framebuffer.
	/* Context usage:
	 * u32 width = data.U32[0];
	 * u32 height = data.U32[1];
	 */
	EVENT_CODE_WINDOW_RESIZED SystemEventCode = 0x0C

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listener interface{}, data EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus dispatches events to registered listeners. Events can be fired
// from any goroutine; callbacks run on the firing goroutine.
type EventBus struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[SystemEventCode][]*registeredEvent),
	}
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listener/callback combos will not be registered again and will cause this to return false.
 */
func (b *EventBus) Register(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	if code < 0 || code >= MAX_MESSAGE_CODES || onEvent == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.registered[code] {
		if e.listener == listener {
			LogWarn("event %d: listener already registered", code)
			return false
		}
	}
	b.registered[code] = append(b.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

// Unregister removes the registration of listener for code.
func (b *EventBus) Unregister(code SystemEventCode, listener interface{}) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	events := b.registered[code]
	for i, e := range events {
		if e.listener == listener {
			b.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	// Not found.
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 */
func (b *EventBus) Fire(code SystemEventCode, sender interface{}, context EventContext) bool {
	b.mu.RLock()
	events := append([]*registeredEvent(nil), b.registered[code]...)
	b.mu.RUnlock()
	for _, e := range events {
		if e.callback(code, sender, e.listener, context) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}
