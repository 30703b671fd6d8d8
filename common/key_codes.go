package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyB   = 66  // B key (ASCII), toggles bloom
	KeyC   = 67  // C key (ASCII), toggles the G-buffer debug view
	KeyD   = 68  // D key (ASCII), toggles depth of field
	KeyO   = 79  // O key (ASCII), toggles ambient occlusion
	KeyR   = 82  // R key (ASCII), toggles screen-space reflections
	KeyP   = 80  // P key (ASCII), captures the presented frame
	KeyEsc = 256 // Escape key (GLFW)
)
