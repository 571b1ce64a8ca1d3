package harness

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Manu343726/rspdiff/pkg/hw/rsp"
	"github.com/Manu343726/rspdiff/pkg/utils"
)

// Field classes of the register region
const (
	ClassGPR  = "gpr"
	ClassVPR  = "vpr"
	ClassACC  = "acc"
	ClassCOP0 = "cop0"
	ClassCOP2 = "cop2"
)

// Classes lists the field classes in layout order
var Classes = []string{ClassGPR, ClassVPR, ClassACC, ClassCOP0, ClassCOP2}

// FieldRange names the snapshot bytes [Start, End)
type FieldRange struct {
	Start   int
	End     int
	Class   string
	Name    string
	Ignored bool
}

func (f FieldRange) Size() int {
	return f.End - f.Start
}

// Layout partitions the register region (everything before the program counter) into named fields
var Layout = buildLayout()

func buildLayout() []FieldRange {
	fields := make([]FieldRange, 0, rsp.NumGPRs+rsp.NumVPRs+rsp.NumAccumulatorSlices+rsp.NumCop0Registers+rsp.NumCop2ControlRegister)

	add := func(start, size int, class, name string) {
		fields = append(fields, FieldRange{Start: start, End: start + size, Class: class, Name: fmt.Sprintf("%s[%s]", class, name)})
	}

	for i := 0; i < rsp.NumGPRs; i++ {
		add(rsp.GPROffset+i*4, 4, ClassGPR, strconv.Itoa(i))
	}

	for i := 0; i < rsp.NumVPRs; i++ {
		add(rsp.VPROffset+i*rsp.VectorLanes*2, rsp.VectorLanes*2, ClassVPR, strconv.Itoa(i))
	}

	for s := rsp.AccumulatorHigh; s <= rsp.AccumulatorLow; s++ {
		add(rsp.AccumulatorOffset+int(s)*rsp.VectorLanes*2, rsp.VectorLanes*2, ClassACC, s.String())
	}

	for r := rsp.Cop0Register(0); r < rsp.NumCop0Registers; r++ {
		add(rsp.Cop0Offset+int(r)*4, 4, ClassCOP0, r.String())
	}

	for r := rsp.Cop2VCO; r <= rsp.Cop2VCE; r++ {
		add(rsp.Cop2Offset+int(r)*4, 4, ClassCOP2, r.String())
	}

	return fields
}

// IgnoreList selects fields whose differences are expected and never count as failures.
// Entries select whole classes ("cop0") or single fields ("cop0[DP_CLOCK]", "vpr[3]").
type IgnoreList struct {
	classes map[string]bool
	fields  map[string]bool
}

// DefaultIgnoreEntries are the COP0 words that change while the coprocessor sits idle
var DefaultIgnoreEntries = []string{"SEMAPHORE", "DP_CLOCK", "DP_PIPE_BUSY"}

func NewIgnoreList() IgnoreList {
	return IgnoreList{
		classes: make(map[string]bool),
		fields:  make(map[string]bool),
	}
}

// DefaultIgnoreList returns the ignore-list for the volatile COP0 words
func DefaultIgnoreList() IgnoreList {
	list, err := ParseIgnoreList(DefaultIgnoreEntries)
	if err != nil {
		panic(err)
	}

	return list
}

// ParseIgnoreList builds an ignore-list from entries accepted by IgnoreList.Add
func ParseIgnoreList(entries []string) (IgnoreList, error) {
	list := NewIgnoreList()

	for _, entry := range entries {
		if err := list.Add(entry); err != nil {
			return IgnoreList{}, err
		}
	}

	return list, nil
}

// Add adds an entry to the list. Accepted forms: a class name, a field name ("gpr[3]",
// "acc[hi]", "cop0[SEMAPHORE]"), a COP0 register name with or without the COP0_ prefix,
// or a bare GPR index.
func (l *IgnoreList) Add(entry string) error {
	if l.classes == nil {
		*l = NewIgnoreList()
	}

	name := strings.TrimSpace(entry)
	lower := strings.ToLower(name)

	for _, class := range Classes {
		if lower == class {
			l.classes[class] = true
			return nil
		}
	}

	for _, field := range Layout {
		if strings.EqualFold(field.Name, name) {
			l.fields[field.Name] = true
			return nil
		}
	}

	if reg, err := rsp.Cop0RegisterByName(name); err == nil {
		l.fields[fmt.Sprintf("%s[%s]", ClassCOP0, reg)] = true
		return nil
	}

	if index, err := strconv.Atoi(name); err == nil && index >= 0 && index < rsp.NumGPRs {
		l.fields[fmt.Sprintf("%s[%d]", ClassGPR, index)] = true
		return nil
	}

	return utils.MakeError(ErrUnknownField, "'%s'", entry)
}

// Matches reports whether the list selects the field
func (l IgnoreList) Matches(field FieldRange) bool {
	return l.classes[field.Class] || l.fields[field.Name]
}

// Entries returns the selected classes and fields, sorted
func (l IgnoreList) Entries() []string {
	entries := make([]string, 0, len(l.classes)+len(l.fields))

	for class := range l.classes {
		entries = append(entries, class)
	}
	for field := range l.fields {
		entries = append(entries, field)
	}

	sort.Strings(entries)
	return entries
}

func (l IgnoreList) String() string {
	return strings.Join(l.Entries(), ",")
}

// FieldTable maps every register region offset to its field
type FieldTable struct {
	fields   []FieldRange
	byOffset [rsp.RegisterRegionSize]uint16
}

func NewFieldTable(ignore IgnoreList) *FieldTable {
	table := &FieldTable{
		fields: make([]FieldRange, len(Layout)),
	}

	for i, field := range Layout {
		field.Ignored = ignore.Matches(field)
		table.fields[i] = field

		for offset := field.Start; offset < field.End; offset++ {
			table.byOffset[offset] = uint16(i)
		}
	}

	return table
}

// Lookup returns the field covering a register region offset
func (t *FieldTable) Lookup(offset int) FieldRange {
	return t.fields[t.byOffset[offset]]
}

func (t *FieldTable) Fields() []FieldRange {
	return t.fields
}

// Ignored returns the fields the table ignores
func (t *FieldTable) Ignored() []FieldRange {
	var ignored []FieldRange

	for _, field := range t.fields {
		if field.Ignored {
			ignored = append(ignored, field)
		}
	}

	return ignored
}

// FieldDiff describes one field with at least one differing byte
type FieldDiff struct {
	Name    string `json:"name"`
	Class   string `json:"class"`
	Offset  int    `json:"offset"`
	Bytes   int    `json:"bytes"`
	Ignored bool   `json:"ignored,omitempty"`
	Before  string `json:"before"`
	After   string `json:"after"`
}

// Cop0Row is one line of the COP0 before/after table
type Cop0Row struct {
	Register string `json:"register"`
	Index    int    `json:"index"`
	Before   uint32 `json:"before"`
	After    uint32 `json:"after"`
	Ignored  bool   `json:"ignored,omitempty"`
}

func (r Cop0Row) Changed() bool {
	return r.Before != r.After
}

// DiffReport classifies the differences between two snapshots
type DiffReport struct {
	// Differing bytes outside ignored fields
	DiffCount int `json:"diff_count"`
	// Differing bytes inside ignored fields
	IgnoredCount int `json:"ignored_count"`
	// Non ignored differing bytes per field class
	ByClass map[string]int `json:"by_class,omitempty"`
	Fields  []FieldDiff    `json:"fields,omitempty"`
	// Full COP0 table, only present when a non ignored COP0 word changed
	Cop0 []Cop0Row `json:"cop0,omitempty"`
}

// Diff compares the register regions of two snapshots byte by byte
func (t *FieldTable) Diff(before, after *rsp.Snapshot) *DiffReport {
	report := &DiffReport{
		ByClass: make(map[string]int),
	}

	a, b := before.RegisterRegion(), after.RegisterRegion()
	hits := make(map[uint16]int)
	order := make([]uint16, 0)
	cop0Changed := false

	for offset := range a {
		if a[offset] == b[offset] {
			continue
		}

		index := t.byOffset[offset]
		field := t.fields[index]

		if _, seen := hits[index]; !seen {
			order = append(order, index)
		}
		hits[index]++

		if field.Ignored {
			report.IgnoredCount++
			continue
		}

		report.DiffCount++
		report.ByClass[field.Class]++

		if field.Class == ClassCOP0 {
			cop0Changed = true
		}
	}

	for _, index := range order {
		field := t.fields[index]
		report.Fields = append(report.Fields, FieldDiff{
			Name:    field.Name,
			Class:   field.Class,
			Offset:  field.Start,
			Bytes:   hits[index],
			Ignored: field.Ignored,
			Before:  hex.EncodeToString(a[field.Start:field.End]),
			After:   hex.EncodeToString(b[field.Start:field.End]),
		})
	}

	if cop0Changed {
		for r := rsp.Cop0Register(0); r < rsp.NumCop0Registers; r++ {
			field := t.Lookup(rsp.Cop0Offset + int(r)*4)
			report.Cop0 = append(report.Cop0, Cop0Row{
				Register: r.String(),
				Index:    int(r),
				Before:   before.Cop0(r),
				After:    after.Cop0(r),
				Ignored:  field.Ignored,
			})
		}
	}

	return report
}

// Passed reports whether the trial produced no genuine side effects
func (r *DiffReport) Passed() bool {
	return r.DiffCount == 0
}
