package store

import (
	"strings"
	"time"
)

// InspectionType is the frequency tier of an inspection run.
type InspectionType string

const (
	InspectionDaily    InspectionType = "daily"
	InspectionPeriodic InspectionType = "periodic"
)

// ParseInspectionType converts a string into a known InspectionType.
func ParseInspectionType(value string) (InspectionType, bool) {
	normalized := InspectionType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case InspectionDaily, InspectionPeriodic:
		return normalized, true
	}
	return "", false
}

// SpecType tags an analyte bound with the inspection tier that covers it.
type SpecType string

const (
	SpecDaily    SpecType = "daily"
	SpecPeriodic SpecType = "periodic"
	SpecInactive SpecType = "inactive"
)

// Category separates incoming-material specs from blended-product specs.
type Category string

const (
	CategoryIncoming Category = "incoming"
	CategoryBlended  Category = "blended"
)

// ParseCategory converts a string into a known Category, defaulting to incoming.
func ParseCategory(value string) Category {
	if Category(strings.ToLower(strings.TrimSpace(value))) == CategoryBlended {
		return CategoryBlended
	}
	return CategoryIncoming
}

// Verdict is a per-item or aggregate pass/fail judgment. The zero value
// means no verdict has been recorded yet.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// Bound holds the specification limits for one analyte. Nil limits are
// open-ended on that side.
type Bound struct {
	Min  *float64
	Max  *float64
	Type SpecType
}

// Active reports whether the bound participates in inspections at all.
func (b Bound) Active() bool {
	return b.Type != SpecInactive && b.Type != "" && (b.Min != nil || b.Max != nil)
}

// PowderSpec is the per-powder specification row. Bounds is fully
// populated for every analyte; absent analytes carry a zero Bound.
type PowderSpec struct {
	ID               int64
	PowderName       string
	Bounds           map[Analyte]Bound
	ParticleSizeType SpecType
	Category         Category
}

// ParticleSizeBucket is one mesh-size specification line for a powder.
type ParticleSizeBucket struct {
	ID         int64
	PowderName string
	MeshSize   string
	Min        float64
	Max        float64
}

// InspectionProgress tracks a partially completed inspection for one
// (powder, lot). TotalItems is frozen at creation; CompletedItems grows
// one item name at a time.
type InspectionProgress struct {
	ID             int64
	PowderName     string
	LotNumber      string
	InspectionType InspectionType
	Inspector      string
	StartTime      time.Time
	CompletedItems []string
	TotalItems     []string
	Progress       string
	Category       Category
}

// HasCompleted reports whether the item name is already recorded.
func (p *InspectionProgress) HasCompleted(item string) bool {
	for _, name := range p.CompletedItems {
		if name == item {
			return true
		}
	}
	return false
}

// Measurement holds replicate values and the judgment for one analyte.
// Raw carries the submitted replicate values for direct analytes, or
// the derived per-replicate values for weight-pair analytes, whose
// submitted pairs live in RawPairs.
type Measurement struct {
	Raw      [3]*float64
	RawPairs [3][2]*float64
	Average  *float64
	Verdict  Verdict
}

// ParticleResult is one mesh bucket's outcome within a result record.
type ParticleResult struct {
	MeshSize string
	Value1   *float64
	Value2   *float64
	Average  *float64
	Verdict  Verdict
}

// InspectionResult is the wide per-(powder, lot) result record.
// Scalars only contains analytes that have been written. A non-nil
// FinalizedAt guards the record against re-finalization.
type InspectionResult struct {
	ID              int64
	PowderName      string
	LotNumber       string
	Inspector       string
	InspectionType  InspectionType
	InspectionTime  time.Time
	Category        Category
	Scalars         map[Analyte]Measurement
	ParticleResults []ParticleResult
	ParticleVerdict Verdict
	FinalResult     Verdict
	FinalizedAt     *time.Time
}

// Finalized reports whether the aggregate verdict has been locked in.
func (r *InspectionResult) Finalized() bool {
	return r.FinalizedAt != nil
}

// Recipe is one ingredient line of a product's blending specification.
type Recipe struct {
	ID               int64
	ProductName      string
	ProductCode      string
	PowderName       string
	Ratio            float64
	TargetWeight     *float64
	TolerancePercent float64
	IsMain           bool
	IsActive         bool
	CreatedBy        string
}

// WorkStatus is the lifecycle state of a blending work.
type WorkStatus string

const (
	WorkInProgress WorkStatus = "in_progress"
	WorkCompleted  WorkStatus = "completed"
)

// BlendingWork is one production batch.
type BlendingWork struct {
	ID                int64
	WorkOrder         string
	ProductName       string
	ProductCode       string
	BatchLot          string
	TargetTotalWeight float64
	ActualTotalWeight float64
	Operator          string
	Status            WorkStatus
	StartTime         time.Time
	EndTime           *time.Time
	// MainPowderWeights optionally overrides per-main-ingredient
	// targets; non-main targets derive from the sum of main actuals.
	MainPowderWeights map[string]float64
}

// MaterialInput records one validated raw-material consumption event.
// MaterialLots lists every sub-lot consumed in the event.
type MaterialInput struct {
	ID              int64
	BlendingWorkID  int64
	PowderName      string
	MaterialLots    []string
	TargetWeight    float64
	ActualWeight    float64
	WeightDeviation float64
	IsValid         bool
	InputTime       time.Time
	InputBy         string
}
