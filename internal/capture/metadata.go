package capture

import "math"

// Surface display names for the raw values reported by platforms.
const (
	surfaceMonitor = "monitor"
	surfaceWindow  = "window"
	surfaceBrowser = "browser"
)

// ExtractMetadata maps a stream's primary video track to a normalized
// description. Absent fields degrade to nil rather than failing; a stream
// with no video track yields all-nil fields and the "Unknown" label.
func ExtractMetadata(s Stream) *StreamMetadata {
	track := s.VideoTrack()
	if track == nil {
		return &StreamMetadata{Label: "Unknown"}
	}

	settings := track.Settings()
	meta := &StreamMetadata{Label: track.Label()}
	if meta.Label == "" {
		meta.Label = "Screen"
	}

	switch raw := settings.DisplaySurface; raw {
	case "":
		// Unreported, leave nil.
	case surfaceMonitor:
		meta.Surface = strptr("Entire Screen")
	case surfaceWindow:
		meta.Surface = strptr("Window")
	case surfaceBrowser:
		meta.Surface = strptr("Tab")
	default:
		meta.Surface = strptr(raw)
	}

	if settings.Width > 0 {
		meta.Width = intptr(settings.Width)
	}
	if settings.Height > 0 {
		meta.Height = intptr(settings.Height)
	}
	if settings.FrameRate > 0 {
		meta.FrameRate = intptr(int(math.Round(settings.FrameRate)))
	}

	return meta
}

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }
