// Package led drives a board status LED from relay events.
package led

// Pattern is what the status LED shows.
type Pattern string

const (
	PatternOff   Pattern = "off"
	PatternSolid Pattern = "solid"
	PatternBlink Pattern = "blink"
)

// Controller sets the pattern of one LED.
type Controller interface {
	Set(p Pattern) error
	Name() string
}
