// internal/dsp/variant.go
package dsp

import (
	"fmt"
	"sort"
)

// CoreSpec names one DSP core, its mailbox register and its firmware.
type CoreSpec struct {
	Name     string
	Mailbox  uint16
	Firmware string
}

// Variant is a chip family and its default cores.
type Variant struct {
	Chip  string
	Cores []CoreSpec
}

var variants = map[string]Variant{
	"nau8310": {
		Chip: "nau8310",
		Cores: []CoreSpec{
			{Name: "dsp", Mailbox: 0xF000, Firmware: "Nuvoton/NAU83G10.kcs.bin"},
		},
	},
	"nau8360": {
		Chip: "nau8360",
		Cores: []CoreSpec{
			{Name: "left", Mailbox: 0xF000, Firmware: "Nuvoton/NAU83G60.kcs.bin.l"},
			{Name: "right", Mailbox: 0xF002, Firmware: "Nuvoton/NAU83G60.kcs.bin.r"},
		},
	},
}

// LookupVariant returns the defaults of a chip family.
func LookupVariant(chip string) (Variant, error) {
	v, ok := variants[chip]
	if !ok {
		return Variant{}, fmt.Errorf("dsp: unknown chip %q", chip)
	}
	v.Cores = append([]CoreSpec(nil), v.Cores...)
	return v, nil
}

// Chips lists the supported chip families.
func Chips() []string {
	out := make([]string, 0, len(variants))
	for k := range variants {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
