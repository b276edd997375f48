package relay

import (
	"fmt"

	"github.com/smazurov/relaynode/internal/hardware"
)

// ID is the ordinal of a relay within its layout. It doubles as the bit
// position: relay n lives in word n/8 at bit n%8.
type ID int

// Definition describes one relay.
type Definition struct {
	Key  string `json:"id"`            // stable lower-case identifier used in URLs
	Name string `json:"name"`          // human readable name
	Pin  int    `json:"pin,omitempty"` // BCM line for directly wired layouts
}

// Layout is a closed, densely ordered set of relays and how they are wired.
type Layout struct {
	Name   string
	Kind   hardware.Kind
	relays []Definition
	byKey  map[string]ID
}

// NewLayout builds a layout from definitions in ordinal order.
func NewLayout(name string, kind hardware.Kind, defs []Definition) (*Layout, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("layout %s: no relays", name)
	}
	l := &Layout{
		Name:   name,
		Kind:   kind,
		relays: append([]Definition(nil), defs...),
		byKey:  make(map[string]ID, len(defs)),
	}
	for i, d := range defs {
		if _, dup := l.byKey[d.Key]; dup {
			return nil, fmt.Errorf("layout %s: duplicate relay id %q", name, d.Key)
		}
		l.byKey[d.Key] = ID(i)
	}
	return l, nil
}

// Len returns the number of relays.
func (l *Layout) Len() int { return len(l.relays) }

// Words returns the number of control words needed to address every relay.
func (l *Layout) Words() int { return (len(l.relays) + WordBits - 1) / WordBits }

// Valid reports whether id belongs to the layout.
func (l *Layout) Valid(id ID) bool { return id >= 0 && int(id) < len(l.relays) }

// IDs returns every relay id in ordinal order.
func (l *Layout) IDs() []ID {
	ids := make([]ID, len(l.relays))
	for i := range ids {
		ids[i] = ID(i)
	}
	return ids
}

// Definition returns the definition of id.
func (l *Layout) Definition(id ID) (Definition, error) {
	if !l.Valid(id) {
		return Definition{}, fmt.Errorf("%w: %d", ErrUnknownRelay, id)
	}
	return l.relays[id], nil
}

// Key returns the stable identifier of id, or "" if id is invalid.
func (l *Layout) Key(id ID) string {
	if !l.Valid(id) {
		return ""
	}
	return l.relays[id].Key
}

// Lookup resolves a stable identifier.
func (l *Layout) Lookup(key string) (ID, bool) {
	id, ok := l.byKey[key]
	return id, ok
}

// Definitions returns a copy of every definition in ordinal order.
func (l *Layout) Definitions() []Definition {
	return append([]Definition(nil), l.relays...)
}

// Pins returns the GPIO line of every relay in ordinal order.
func (l *Layout) Pins() []int {
	pins := make([]int, len(l.relays))
	for i, d := range l.relays {
		pins[i] = d.Pin
	}
	return pins
}

// GPIOLayout is the directly wired eight relay garden installation.
func GPIOLayout() *Layout {
	l, _ := NewLayout("gpio", hardware.KindGPIO, []Definition{
		{Key: "fence_lighting", Name: "Fence lighting", Pin: 17},
		{Key: "path_lighting", Name: "Path lighting", Pin: 27},
		{Key: "right_corner_spotlight", Name: "Right corner spotlight", Pin: 22},
		{Key: "left_corner_spotlight", Name: "Left corner spotlight", Pin: 10},
		{Key: "house_spotlight", Name: "House spotlight", Pin: 24},
		{Key: "house_lighting", Name: "House lighting", Pin: 25},
		{Key: "garage_lighting", Name: "Garage lighting", Pin: 8},
		{Key: "free", Name: "Free", Pin: 7},
	})
	return l
}

var numberWords = []string{
	"one", "two", "three", "four", "five", "six", "seven", "eight",
	"nine", "ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
}

// ExpanderLayout is the sixteen relay board behind two I2C expanders.
func ExpanderLayout() *Layout {
	defs := make([]Definition, len(numberWords))
	for i, w := range numberWords {
		defs[i] = Definition{Key: w, Name: fmt.Sprintf("Relay %d", i+1)}
	}
	l, _ := NewLayout("expander", hardware.KindExpander, defs)
	return l
}

// LayoutByName returns a built-in layout.
func LayoutByName(name string) (*Layout, error) {
	switch name {
	case "gpio":
		return GPIOLayout(), nil
	case "expander":
		return ExpanderLayout(), nil
	default:
		return nil, fmt.Errorf("unknown relay layout %q (want gpio or expander)", name)
	}
}
