// Package instrument maps General MIDI program numbers to sound groups.
package instrument

import (
	"fmt"
	"sort"
)

// PercussionProgram is the pseudo-program reserved for the percussion channel.
const PercussionProgram = 128

// MaxProgram is the highest key a table may hold.
const MaxProgram = PercussionProgram

var defaultTable = map[int]string{
	0:                 "piano",
	24:                "guitar",
	32:                "bass",
	40:                "violin",
	48:                "string",
	56:                "trumpet",
	60:                "french_horn",
	64:                "sax",
	73:                "flute",
	75:                "panpipe",
	80:                "square_lead",
	118:               "synth_drum",
	PercussionProgram: "drum_kit",
}

// DefaultTable returns a copy of the built-in program table.
func DefaultTable() map[int]string {
	return copyTable(defaultTable)
}

// Resolver looks up sound groups. A Resolver is immutable and safe for
// concurrent use.
type Resolver struct {
	table map[int]string
}

// Default returns a resolver over the built-in table.
func Default() *Resolver {
	return &Resolver{table: DefaultTable()}
}

// NewResolver returns a resolver over a copy of table.
func NewResolver(table map[int]string) (*Resolver, error) {
	if err := Validate(table); err != nil {
		return nil, err
	}
	return &Resolver{table: copyTable(table)}, nil
}

// Resolve returns the group for program. ok is false when the program is
// unmapped, which is distinct from a program mapped to "".
func (r *Resolver) Resolve(program int) (group string, ok bool) {
	group, ok = r.table[program]
	return group, ok
}

// Table returns a copy of the resolver's table.
func (r *Resolver) Table() map[int]string {
	return copyTable(r.table)
}

// Programs returns the mapped programs in ascending order.
func (r *Resolver) Programs() []int {
	out := make([]int, 0, len(r.table))
	for p := range r.table {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// Validate checks that every key is a program number or PercussionProgram.
func Validate(table map[int]string) error {
	for p := range table {
		if p < 0 || p > MaxProgram {
			return fmt.Errorf("program %d out of range 0-%d", p, MaxProgram)
		}
	}
	return nil
}

func copyTable(table map[int]string) map[int]string {
	out := make(map[int]string, len(table))
	for k, v := range table {
		out[k] = v
	}
	return out
}
