// Package badge describes the small status pills shown next to records.
package badge

type Tone string

const (
	ToneDefault     Tone = "default"
	ToneSecondary   Tone = "secondary"
	ToneWarning     Tone = "warning"
	ToneDestructive Tone = "destructive"
	ToneSuccess     Tone = "success"
	ToneOutline     Tone = "outline"
)

// Badge is a label and the tone it renders in.
type Badge struct {
	Label string `json:"label"`
	Tone  Tone   `json:"tone"`
}

func New(label string, tone Tone) *Badge {
	return &Badge{Label: label, Tone: tone}
}
