package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"powderlab/internal/store"
	"powderlab/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		_, err := tx.PowderNames(store.CategoryIncoming)
		return err
	})
	if err != nil {
		t.Fatalf("query fresh schema: %v", err)
	}
}

func TestWithTxDoesNotRetryBusinessErrors(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)

	sentinel := errors.New("validation failed")
	calls := 0
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one attempt, got %d", calls)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)

	spec := &store.PowderSpec{
		PowderName: "Fe-100",
		Bounds: map[store.Analyte]store.Bound{
			store.AnalyteFlowRate: {Min: testsupport.FloatPtr(20), Max: testsupport.FloatPtr(40), Type: store.SpecDaily},
		},
	}
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		if err := tx.UpsertPowderSpec(spec); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	err = st.WithTx(context.Background(), func(tx *store.Tx) error {
		_, err := tx.GetPowderSpec("Fe-100")
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after rollback, got %v", err)
	}
}

func TestPowderSpecRoundTrip(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)

	testsupport.SeedPowderSpec(t, st, &store.PowderSpec{
		PowderName: "Cu-200",
		Bounds: map[store.Analyte]store.Bound{
			store.AnalyteFlowRate: {Min: testsupport.FloatPtr(25), Max: testsupport.FloatPtr(35), Type: store.SpecDaily},
			store.AnalyteMoisture: {Max: testsupport.FloatPtr(0.5), Type: store.SpecPeriodic},
		},
		ParticleSizeType: store.SpecPeriodic,
		Category:         store.CategoryIncoming,
	})
	testsupport.SeedParticleBuckets(t, st,
		store.ParticleSizeBucket{PowderName: "Cu-200", MeshSize: "+100", Min: 0, Max: 5},
		store.ParticleSizeBucket{PowderName: "Cu-200", MeshSize: "-325", Min: 10, Max: 30},
	)

	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		spec, err := tx.GetPowderSpec("Cu-200")
		if err != nil {
			return err
		}
		flow := spec.Bounds[store.AnalyteFlowRate]
		if !flow.Active() || *flow.Min != 25 || *flow.Max != 35 {
			t.Errorf("unexpected flow rate bound: %+v", flow)
		}
		moisture := spec.Bounds[store.AnalyteMoisture]
		if moisture.Min != nil || *moisture.Max != 0.5 || moisture.Type != store.SpecPeriodic {
			t.Errorf("unexpected moisture bound: %+v", moisture)
		}
		if ash := spec.Bounds[store.AnalyteAsh]; ash.Active() {
			t.Errorf("expected inactive ash bound, got %+v", ash)
		}

		buckets, err := tx.ListParticleBuckets("Cu-200")
		if err != nil {
			return err
		}
		if len(buckets) != 2 {
			t.Fatalf("expected 2 buckets, got %d", len(buckets))
		}
		if buckets[0].MeshSize != "+100" || buckets[1].Max != 30 {
			t.Errorf("unexpected buckets: %+v", buckets)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
}

func TestPowderSpecNormalizesName(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)

	// Decomposed Hangul in the seed, precomposed in the lookup.
	testsupport.SeedPowderSpec(t, st, &store.PowderSpec{
		PowderName: "철분말",
		Bounds: map[store.Analyte]store.Bound{
			store.AnalyteFlowRate: {Min: testsupport.FloatPtr(1), Type: store.SpecDaily},
		},
	})

	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		_, err := tx.GetPowderSpec("철분말")
		return err
	})
	if err != nil {
		t.Fatalf("normalized lookup failed: %v", err)
	}
}

func TestProgressLifecycle(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	ctx := context.Background()

	progress := &store.InspectionProgress{
		PowderName:     "Fe-100",
		LotNumber:      "LOT-001",
		InspectionType: store.InspectionDaily,
		Inspector:      "kim",
		StartTime:      time.Now(),
		CompletedItems: []string{},
		TotalItems:     []string{"FlowRate", "Moisture"},
		Progress:       "0/2",
		Category:       store.CategoryIncoming,
	}

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.CreateProgress(progress); err != nil {
			return err
		}
		loaded, err := tx.GetProgress("Fe-100", "LOT-001")
		if err != nil {
			return err
		}
		if loaded.Progress != "0/2" || len(loaded.TotalItems) != 2 {
			t.Errorf("unexpected progress: %+v", loaded)
		}
		if loaded.HasCompleted("FlowRate") {
			t.Error("fresh progress should have no completed items")
		}

		loaded.CompletedItems = append(loaded.CompletedItems, "FlowRate")
		loaded.Progress = "1/2"
		if err := tx.UpdateProgressItems(loaded); err != nil {
			return err
		}
		reloaded, err := tx.GetProgress("Fe-100", "LOT-001")
		if err != nil {
			return err
		}
		if !reloaded.HasCompleted("FlowRate") || reloaded.Progress != "1/2" {
			t.Errorf("update not persisted: %+v", reloaded)
		}

		if err := tx.DeleteProgress("Fe-100", "LOT-001"); err != nil {
			return err
		}
		if _, err := tx.GetProgress("Fe-100", "LOT-001"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("progress lifecycle: %v", err)
	}
}

func TestResultScalarAndParticlePersistence(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	ctx := context.Background()

	var resultID int64
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		result := &store.InspectionResult{
			PowderName:     "Fe-100",
			LotNumber:      "LOT-002",
			Inspector:      "lee",
			InspectionType: store.InspectionPeriodic,
			InspectionTime: time.Now(),
			Category:       store.CategoryIncoming,
		}
		if err := tx.CreateResult(result); err != nil {
			return err
		}
		resultID = result.ID

		flow := store.Measurement{
			Raw:     [3]*float64{testsupport.FloatPtr(30), testsupport.FloatPtr(31), nil},
			Average: testsupport.FloatPtr(30.5),
			Verdict: store.VerdictPass,
		}
		if err := tx.UpdateScalar(resultID, store.AnalyteFlowRate, flow); err != nil {
			return err
		}

		density := store.Measurement{
			RawPairs: [3][2]*float64{{testsupport.FloatPtr(100), testsupport.FloatPtr(175)}},
			Raw:      [3]*float64{testsupport.FloatPtr(3.0)},
			Average:  testsupport.FloatPtr(3.0),
			Verdict:  store.VerdictPass,
		}
		if err := tx.UpdateScalar(resultID, store.AnalyteApparentDensity, density); err != nil {
			return err
		}

		particles := []store.ParticleResult{
			{MeshSize: "+100", Value1: testsupport.FloatPtr(2), Value2: testsupport.FloatPtr(4), Average: testsupport.FloatPtr(3), Verdict: store.VerdictPass},
			{MeshSize: "-325", Value1: testsupport.FloatPtr(40), Average: testsupport.FloatPtr(40), Verdict: store.VerdictFail},
		}
		return tx.ReplaceParticleResults(resultID, particles, store.VerdictFail)
	})
	if err != nil {
		t.Fatalf("build result: %v", err)
	}

	err = st.WithTx(ctx, func(tx *store.Tx) error {
		result, err := tx.GetResult("Fe-100", "LOT-002")
		if err != nil {
			return err
		}
		flow, ok := result.Scalars[store.AnalyteFlowRate]
		if !ok || *flow.Average != 30.5 || flow.Verdict != store.VerdictPass {
			t.Errorf("unexpected flow rate: %+v", flow)
		}
		if flow.Raw[2] != nil {
			t.Error("third replicate should remain nil")
		}
		density := result.Scalars[store.AnalyteApparentDensity]
		if density.RawPairs[0][1] == nil || *density.RawPairs[0][1] != 175 {
			t.Errorf("pair weights not persisted: %+v", density)
		}
		if _, ok := result.Scalars[store.AnalyteMoisture]; ok {
			t.Error("unwritten analyte should not appear in Scalars")
		}
		if len(result.ParticleResults) != 2 || result.ParticleVerdict != store.VerdictFail {
			t.Errorf("unexpected particle results: %+v", result.ParticleResults)
		}
		if result.Finalized() {
			t.Error("result should not be finalized yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
}

func TestFinalizeResultOnlyOnce(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	ctx := context.Background()

	var resultID int64
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		result := &store.InspectionResult{
			PowderName:     "Fe-100",
			LotNumber:      "LOT-003",
			InspectionType: store.InspectionDaily,
			InspectionTime: time.Now(),
		}
		if err := tx.CreateResult(result); err != nil {
			return err
		}
		resultID = result.ID
		return tx.FinalizeResult(resultID, store.VerdictPass, time.Now())
	})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	err = st.WithTx(ctx, func(tx *store.Tx) error {
		return tx.FinalizeResult(resultID, store.VerdictFail, time.Now())
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on re-finalize, got %v", err)
	}

	err = st.WithTx(ctx, func(tx *store.Tx) error {
		result, err := tx.GetResultByID(resultID)
		if err != nil {
			return err
		}
		if result.FinalResult != store.VerdictPass || !result.Finalized() {
			t.Errorf("verdict should be untouched: %+v", result)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
}

func TestSearchResultsFilters(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		for i, lot := range []string{"LOT-A", "LOT-B", "LOT-C"} {
			result := &store.InspectionResult{
				PowderName:     "Fe-100",
				LotNumber:      lot,
				InspectionType: store.InspectionDaily,
				InspectionTime: base.Add(time.Duration(i) * 24 * time.Hour),
			}
			if err := tx.CreateResult(result); err != nil {
				return err
			}
			if lot == "LOT-B" {
				if err := tx.FinalizeResult(result.ID, store.VerdictPass, base); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed results: %v", err)
	}

	err = st.WithTx(ctx, func(tx *store.Tx) error {
		all, err := tx.SearchResults(store.ResultFilter{PowderName: "Fe-100"})
		if err != nil {
			return err
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 results, got %d", len(all))
		}
		if all[0].LotNumber != "LOT-C" {
			t.Errorf("expected newest first, got %s", all[0].LotNumber)
		}

		since := base.Add(36 * time.Hour)
		recent, err := tx.SearchResults(store.ResultFilter{Since: &since})
		if err != nil {
			return err
		}
		if len(recent) != 1 || recent[0].LotNumber != "LOT-C" {
			t.Errorf("unexpected date filter results: %d", len(recent))
		}

		finalized, err := tx.SearchResults(store.ResultFilter{Finalized: true})
		if err != nil {
			return err
		}
		if len(finalized) != 1 || finalized[0].LotNumber != "LOT-B" {
			t.Errorf("unexpected finalized filter results: %d", len(finalized))
		}

		partial, err := tx.SearchResults(store.ResultFilter{LotNumber: "OT-A"})
		if err != nil {
			return err
		}
		if len(partial) != 1 || partial[0].LotNumber != "LOT-A" {
			t.Errorf("unexpected lot substring results: %d", len(partial))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
}

func TestBlendingWorkAndInputs(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		seq, err := tx.NextBatchLotSequence("BATCH-20260828-")
		if err != nil {
			return err
		}
		if seq != 1 {
			t.Errorf("expected first sequence, got %d", seq)
		}

		work := &store.BlendingWork{
			WorkOrder:         "WO-1",
			ProductName:       "MIX-1",
			BatchLot:          "BATCH-20260828-001",
			TargetTotalWeight: 100,
			Status:            store.WorkInProgress,
			StartTime:         time.Now(),
			MainPowderWeights: map[string]float64{"Fe-100": 70},
		}
		if err := tx.CreateBlendingWork(work); err != nil {
			return err
		}

		input := &store.MaterialInput{
			BlendingWorkID:  work.ID,
			PowderName:      "Fe-100",
			MaterialLots:    []string{"LOT-1", "LOT-2"},
			TargetWeight:    70,
			ActualWeight:    72.8,
			WeightDeviation: 4.0,
			IsValid:         true,
			InputTime:       time.Now(),
			InputBy:         "park",
		}
		if err := tx.CreateMaterialInput(input); err != nil {
			return err
		}

		total, err := tx.SumValidInputWeights(work.ID)
		if err != nil {
			return err
		}
		if total != 72.8 {
			t.Errorf("expected sum 72.8, got %v", total)
		}

		byLot, err := tx.FindInputsByMaterialLot("Fe-100", "LOT-2")
		if err != nil {
			return err
		}
		if len(byLot) != 1 || byLot[0].ID != input.ID {
			t.Fatalf("expected input found by sub-lot, got %d rows", len(byLot))
		}
		if len(byLot[0].MaterialLots) != 2 {
			t.Errorf("expected both sub-lots decoded, got %v", byLot[0].MaterialLots)
		}

		seq, err = tx.NextBatchLotSequence("BATCH-20260828-")
		if err != nil {
			return err
		}
		if seq != 2 {
			t.Errorf("expected second sequence, got %d", seq)
		}

		loaded, err := tx.GetBlendingWorkByBatchLot("BATCH-20260828-001")
		if err != nil {
			return err
		}
		if loaded.MainPowderWeights["Fe-100"] != 70 {
			t.Errorf("main powder weights not persisted: %+v", loaded.MainPowderWeights)
		}

		if err := tx.CompleteBlendingWork(work.ID, time.Now()); err != nil {
			return err
		}
		if err := tx.CompleteBlendingWork(work.ID, time.Now()); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound on double completion, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("blending lifecycle: %v", err)
	}
}

func TestConcurrentWritersEventuallySucceed(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryBudget(10, 5, 50))
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	const writers = 8
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			errs <- st.WithTx(ctx, func(tx *store.Tx) error {
				result := &store.InspectionResult{
					PowderName:     "Fe-100",
					LotNumber:      "LOT-W" + string(rune('0'+n)),
					InspectionType: store.InspectionDaily,
					InspectionTime: time.Now(),
				}
				return tx.CreateResult(result)
			})
		}(i)
	}
	for i := 0; i < writers; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent write: %v", err)
		}
	}

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		results, err := tx.SearchResults(store.ResultFilter{PowderName: "Fe-100"})
		if err != nil {
			return err
		}
		if len(results) != writers {
			t.Errorf("expected %d results, got %d", writers, len(results))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
}
