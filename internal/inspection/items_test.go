package inspection

import (
	"context"
	"testing"

	"powderlab/internal/store"
	"powderlab/internal/testsupport"
)

func seedResolverSpec(t *testing.T, st *store.Store) {
	t.Helper()
	testsupport.SeedPowderSpec(t, st, &store.PowderSpec{
		PowderName: "Fe-100",
		Bounds: map[store.Analyte]store.Bound{
			store.AnalyteFlowRate:       {Min: testsupport.FloatPtr(25), Max: testsupport.FloatPtr(35), Type: store.SpecDaily},
			store.AnalyteMoisture:       {Max: testsupport.FloatPtr(0.5), Type: store.SpecPeriodic},
			store.AnalyteAsh:            {Max: testsupport.FloatPtr(1), Type: store.SpecInactive},
			store.AnalyteSinterStrength: {Type: store.SpecDaily},
		},
		ParticleSizeType: store.SpecPeriodic,
	})
	testsupport.SeedParticleBuckets(t, st,
		store.ParticleSizeBucket{PowderName: "Fe-100", MeshSize: "+100", Min: 0, Max: 5},
	)
}

func resolve(t *testing.T, st *store.Store, powder string, inspectionType store.InspectionType) []Item {
	t.Helper()
	var items []Item
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		var err error
		items, err = ResolveItems(tx, powder, inspectionType)
		return err
	})
	if err != nil {
		t.Fatalf("resolve items: %v", err)
	}
	return items
}

func TestResolveItemsTierRules(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	seedResolverSpec(t, st)

	daily := resolve(t, st, "Fe-100", store.InspectionDaily)
	if len(daily) != 1 || daily[0].Name != "FlowRate" {
		t.Fatalf("daily should include only FlowRate, got %+v", daily)
	}

	periodic := resolve(t, st, "Fe-100", store.InspectionPeriodic)
	names := map[string]bool{}
	for _, item := range periodic {
		names[item.Name] = true
	}
	for _, want := range []string{"FlowRate", "Moisture", store.ItemNameParticleSize} {
		if !names[want] {
			t.Errorf("periodic missing %s", want)
		}
	}
	if names["Ash"] {
		t.Error("inactive analyte should never be included")
	}
	if names["SinterStrength"] {
		t.Error("analyte with no bounds should never be included")
	}
}

func TestResolveItemsDailySubsetOfPeriodic(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	seedResolverSpec(t, st)

	daily := resolve(t, st, "Fe-100", store.InspectionDaily)
	periodic := map[string]bool{}
	for _, item := range resolve(t, st, "Fe-100", store.InspectionPeriodic) {
		periodic[item.Name] = true
	}
	for _, item := range daily {
		if !periodic[item.Name] {
			t.Errorf("daily item %s missing from periodic set", item.Name)
		}
	}
}

func TestResolveItemsUnknownPowder(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)

	items := resolve(t, st, "ghost", store.InspectionDaily)
	if len(items) != 0 {
		t.Errorf("unknown powder should resolve no items, got %d", len(items))
	}
}

func TestResolveItemsParticleRequiresBuckets(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	testsupport.SeedPowderSpec(t, st, &store.PowderSpec{
		PowderName: "Cu-200",
		Bounds: map[store.Analyte]store.Bound{
			store.AnalyteFlowRate: {Min: testsupport.FloatPtr(1), Type: store.SpecDaily},
		},
		ParticleSizeType: store.SpecDaily,
	})

	// particle_size_type is tagged but no buckets exist.
	for _, item := range resolve(t, st, "Cu-200", store.InspectionDaily) {
		if item.IsParticleSize {
			t.Error("particle item requires at least one bucket spec")
		}
	}
}

func TestResolveItemsCarriesBuckets(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	seedResolverSpec(t, st)

	for _, item := range resolve(t, st, "Fe-100", store.InspectionPeriodic) {
		if item.IsParticleSize {
			if len(item.Buckets) != 1 || item.Buckets[0].MeshSize != "+100" {
				t.Errorf("particle item should carry bucket specs, got %+v", item.Buckets)
			}
			return
		}
	}
	t.Fatal("particle item not resolved")
}
