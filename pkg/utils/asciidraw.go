package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrOverlappingFields = errors.New("overlapping frame fields")

type AsciiFrameField struct {
	// Name of the field
	Name string

	// Units within the frame the field begins from
	Begin int

	// Field width
	Width int
}

// The last unit within the frame used by this field
func (f *AsciiFrameField) TopUnit() int {
	return f.PastTopUnit() - 1
}

// The first unit within the frame used by the next field
func (f *AsciiFrameField) PastTopUnit() int {
	return f.Begin + f.Width
}

type AsciiFrameUnitLayout uint

const (
	// Units increase left to right
	AsciiFrameUnitLayout_LeftToRight AsciiFrameUnitLayout = iota
	// Units increase right to left
	AsciiFrameUnitLayout_RightToLeft
)

// Sorts fields by position and fills the holes between them with "(unused)" fields
func fillAsciiFrameGaps(fields []AsciiFrameField, frameWidth int) ([]AsciiFrameField, error) {
	sorted := append([]AsciiFrameField(nil), fields...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Begin < sorted[j].Begin })

	result := make([]AsciiFrameField, 0, len(sorted)+1)
	current := 0

	for _, field := range sorted {
		if field.Begin < current {
			return nil, MakeError(ErrOverlappingFields, "field '%v' begins at %v but previous field ends at %v", field.Name, field.Begin, current)
		}

		if field.Begin > current {
			result = append(result, AsciiFrameField{Name: "(unused)", Begin: current, Width: field.Begin - current})
		}

		result = append(result, field)
		current = field.PastTopUnit()
	}

	if current < frameWidth {
		result = append(result, AsciiFrameField{Name: "(unused)", Begin: current, Width: frameWidth - current})
	}

	return result, nil
}

// Writes text centered in a cell of the given width, padded with filler
func centered(text string, width int, filler string) string {
	pad := width - len(text)
	if pad <= 0 {
		return text
	}

	left := pad / 2
	return strings.Repeat(filler, left) + text + strings.Repeat(filler, pad-left)
}

// Prints an ascii diagram of a binary frame composed of contiguous fields of different unit lenghts
func AsciiFrame(fields []AsciiFrameField, frameWidth int, unit string, layout AsciiFrameUnitLayout, leftpad int) (string, error) {
	allFields, err := fillAsciiFrameGaps(fields, frameWidth)
	if err != nil {
		return "", err
	}

	if layout == AsciiFrameUnitLayout_RightToLeft {
		for i, j := 0, len(allFields)-1; i < j; i, j = i+1, j-1 {
			allFields[i], allFields[j] = allFields[j], allFields[i]
		}
	}

	pad := strings.Repeat(" ", leftpad)
	rows := [5]strings.Builder{}
	for i := range rows {
		rows[i].WriteString(pad)
	}

	for _, field := range allFields {
		index := fmt.Sprint(field.Begin)
		if layout == AsciiFrameUnitLayout_RightToLeft {
			index = fmt.Sprint(field.TopUnit())
		}

		name := " " + field.Name + " "
		width := fmt.Sprintf(" %v %v ", field.Width, unit)
		cell := Max([]int{len(index), len(name), len(width) + 4})

		rows[0].WriteString(index + strings.Repeat(" ", cell-len(index)+1))
		rows[1].WriteString("+" + strings.Repeat("-", cell))
		rows[2].WriteString("|" + centered(name, cell, " "))
		rows[3].WriteString("+" + strings.Repeat("-", cell))
		rows[4].WriteString(" <-" + centered(width, cell-4, "-") + "->")
	}

	if layout == AsciiFrameUnitLayout_LeftToRight {
		rows[0].WriteString(fmt.Sprint(allFields[len(allFields)-1].TopUnit()))
	} else {
		rows[0].WriteString("0")
	}
	rows[1].WriteString("+")
	rows[2].WriteString("|")
	rows[3].WriteString("+")

	var result strings.Builder
	for i := range rows {
		result.WriteString(rows[i].String())
		result.WriteString("\n")
	}

	return result.String(), nil
}

// Returns the biggest item of a sequence
func Max(input []int) int {
	max := input[0]

	for _, item := range input {
		if item > max {
			max = item
		}
	}

	return max
}
