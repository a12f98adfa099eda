package signal

// Canonical host signal names. The terminal host emits the first-use
// signals as the corresponding events arrive; the harness emits the
// lifecycle signals at the matching points of its startup sequence.
const (
	// FirstInput fires on the first user keystroke.
	FirstInput = "input.first"
	// FirstFile fires when the first file is opened.
	FirstFile = "file.first"
	// FirstBuffer fires when the first buffer is shown.
	FirstBuffer = "buffer.first"
	// ModeChanged fires after a major-mode change.
	ModeChanged = "mode.changed"
	// StartupComplete fires once baseline startup has finished.
	StartupComplete = "startup.complete"
	// UIReady fires after final window setup.
	UIReady = "ui.ready"
	// ConfigChanged fires when the watched config file is rewritten.
	ConfigChanged = "config.changed"
	// Quit fires when the host is shutting down.
	Quit = "host.quit"
)
