package inspection

import (
	"errors"

	"powderlab/internal/store"
)

// Item is one required inspection step, derived fresh from the powder
// specification and never persisted.
type Item struct {
	Name           string
	DisplayName    string
	Unit           string
	Min            *float64
	Max            *float64
	Type           store.SpecType
	IsParticleSize bool
	IsWeightBased  bool
	// Buckets carries the full mesh specification for the
	// particle-size composite item.
	Buckets []store.ParticleSizeBucket
}

// typeIncluded applies the tier rule: daily inspections cover only
// daily-tagged analytes; periodic inspections cover daily and periodic.
func typeIncluded(specType store.SpecType, inspectionType store.InspectionType) bool {
	switch inspectionType {
	case store.InspectionDaily:
		return specType == store.SpecDaily
	case store.InspectionPeriodic:
		return specType == store.SpecDaily || specType == store.SpecPeriodic
	}
	return false
}

// ResolveItems derives the ordered required-item list for one powder
// and inspection type. An unknown powder yields an empty list, not an
// error. The resolution runs inside the caller's transaction so a
// concurrent spec edit cannot split the snapshot.
func ResolveItems(tx *store.Tx, powderName string, inspectionType store.InspectionType) ([]Item, error) {
	spec, err := tx.GetPowderSpec(powderName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var items []Item
	for _, info := range store.Analytes {
		bound := spec.Bounds[info.Analyte]
		if !bound.Active() || !typeIncluded(bound.Type, inspectionType) {
			continue
		}
		items = append(items, Item{
			Name:          info.ItemName,
			DisplayName:   info.DisplayName,
			Unit:          info.Unit,
			Min:           bound.Min,
			Max:           bound.Max,
			Type:          bound.Type,
			IsWeightBased: info.Kind == store.KindWeightPair,
		})
	}

	if typeIncluded(spec.ParticleSizeType, inspectionType) {
		buckets, err := tx.ListParticleBuckets(powderName)
		if err != nil {
			return nil, err
		}
		if len(buckets) > 0 {
			items = append(items, Item{
				Name:           store.ItemNameParticleSize,
				DisplayName:    "입도",
				Unit:           "%",
				Type:           spec.ParticleSizeType,
				IsParticleSize: true,
				Buckets:        buckets,
			})
		}
	}
	return items, nil
}

// itemNames projects the resolved items into the frozen snapshot form
// stored on the progress row.
func itemNames(items []Item) []string {
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	return names
}
