package logging

import "strings"

// FormatSubject builds the layer/stage subject string used in console output.
func FormatSubject(layer, stage string) string {
	layer = strings.TrimSpace(layer)
	stage = strings.TrimSpace(stage)
	switch {
	case layer != "" && stage != "":
		return "Layer " + layer + " (" + stage + ")"
	case layer != "":
		return "Layer " + layer
	default:
		return stage
	}
}
