// Package quality derives a display-quality band from stream metadata.
package quality

import "screencheck/internal/capture"

// Assessment is a coarse quality band for the active capture.
type Assessment struct {
	Label string `json:"label"` // e.g. "1080p Full HD"
	Level string `json:"level"` // Ultra | High | Medium | Low | Auto
}

// Assess bands a capture by pixel count and frame rate. Unknown dimensions
// yield the Auto level. An unreported frame rate is assumed to be 30.
func Assess(meta *capture.StreamMetadata) Assessment {
	if meta == nil || meta.Width == nil || meta.Height == nil {
		return Assessment{Label: "Unknown", Level: "Auto"}
	}

	pixels := *meta.Width * *meta.Height
	frameRate := 30
	if meta.FrameRate != nil && *meta.FrameRate > 0 {
		frameRate = *meta.FrameRate
	}

	switch {
	case pixels >= 3840*2160 && frameRate >= 30:
		return Assessment{Label: "4K Ultra HD", Level: "Ultra"}
	case pixels >= 2560*1440 && frameRate >= 30:
		return Assessment{Label: "2K QHD", Level: "High"}
	case pixels >= 1920*1080 && frameRate >= 25:
		return Assessment{Label: "1080p Full HD", Level: "High"}
	case pixels >= 1280*720 && frameRate >= 25:
		return Assessment{Label: "720p HD", Level: "Medium"}
	case pixels >= 854*480:
		return Assessment{Label: "480p SD", Level: "Medium"}
	default:
		return Assessment{Label: "360p SD", Level: "Low"}
	}
}
