package asm

import (
	"errors"
	"sort"
	"strings"

	"github.com/Manu343726/rspdiff/pkg/utils"
)

var ErrUnknownMask = errors.New("unknown mask name")

// Named bit masks over instruction fields, usable as mutable-bits masks in case tables
var namedMasks = map[string]uint32{
	"none":          0,
	"all":           0xffffffff,
	"opcode":        utils.FieldMask[uint32](OpcodeBit, OpcodeWidth),
	"rs":            utils.FieldMask[uint32](RsBit, RsWidth),
	"rt":            utils.FieldMask[uint32](RtBit, RtWidth),
	"rd":            utils.FieldMask[uint32](RdBit, RdWidth),
	"sa":            utils.FieldMask[uint32](SaBit, SaWidth),
	"funct":         utils.FieldMask[uint32](FunctBit, FunctWidth),
	"imm":           utils.FieldMask[uint32](ImmBit, ImmWidth),
	"target":        utils.FieldMask[uint32](TargetBit, TargetWidth),
	"cop0-function": utils.FieldMask[uint32](Cop0FunctionBit, Cop0FunctionWidth),
	"cop0-arg":      utils.FieldMask[uint32](Cop0ArgBit, Cop0ArgWidth),
	"vec-element":   utils.FieldMask[uint32](VecElementBit, VecElementWidth),
	"vec-vt":        utils.FieldMask[uint32](VecVtBit, 5),
	"vec-vs":        utils.FieldMask[uint32](VecVsBit, 5),
	"vec-vd":        utils.FieldMask[uint32](VecVdBit, 5),
	"vec-offset":    utils.FieldMask[uint32](VecOffsetBit, VecOffsetWidth),
}

// Cop0ArgMask selects the argument bits of a CO=1 COP0 instruction
var Cop0ArgMask = namedMasks["cop0-arg"]

// Mask returns a named mask
func Mask(name string) (uint32, error) {
	mask, ok := namedMasks[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, utils.MakeError(ErrUnknownMask, "'%v'", name)
	}

	return mask, nil
}

// MaskNames returns all known mask names, sorted
func MaskNames() []string {
	names := make([]string, 0, len(namedMasks))
	for name := range namedMasks {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}
