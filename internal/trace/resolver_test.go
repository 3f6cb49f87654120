package trace

import (
	"context"
	"errors"
	"testing"
	"time"

	"powderlab/internal/logging"
	"powderlab/internal/store"
	"powderlab/internal/testsupport"
)

func seedIncoming(t *testing.T, st *store.Store, powder, lot string) {
	t.Helper()
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		result := &store.InspectionResult{
			PowderName:     powder,
			LotNumber:      lot,
			InspectionType: store.InspectionDaily,
			InspectionTime: time.Now(),
			Category:       store.CategoryIncoming,
		}
		if err := tx.CreateResult(result); err != nil {
			return err
		}
		return tx.FinalizeResult(result.ID, store.VerdictPass, time.Now())
	})
	if err != nil {
		t.Fatalf("seed incoming %s/%s: %v", powder, lot, err)
	}
}

func seedBatch(t *testing.T, st *store.Store, batchLot string, inputs ...*store.MaterialInput) *store.BlendingWork {
	t.Helper()
	work := &store.BlendingWork{
		WorkOrder:         "WO-" + batchLot,
		ProductName:       "MIX-1",
		BatchLot:          batchLot,
		TargetTotalWeight: 100,
		Status:            store.WorkInProgress,
		StartTime:         time.Now(),
	}
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		if err := tx.CreateBlendingWork(work); err != nil {
			return err
		}
		for _, input := range inputs {
			input.BlendingWorkID = work.ID
			input.InputTime = time.Now()
			if err := tx.CreateMaterialInput(input); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed batch %s: %v", batchLot, err)
	}
	return work
}

func TestBackwardJoinsByCompositeKey(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	resolver := NewResolver(st, logging.NewNop())

	seedIncoming(t, st, "Fe-100", "LOT-1")
	// LOT-X has no incoming inspection at all.
	seedBatch(t, st, "BATCH-20260828-001",
		&store.MaterialInput{PowderName: "Fe-100", MaterialLots: []string{"LOT-1"}, TargetWeight: 70, ActualWeight: 70, IsValid: true},
		&store.MaterialInput{PowderName: "Cu-200", MaterialLots: []string{"LOT-X"}, TargetWeight: 30, ActualWeight: 30, IsValid: true},
	)

	trace, err := resolver.Backward(context.Background(), "BATCH-20260828-001")
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	if len(trace.Materials) != 2 {
		t.Fatalf("expected 2 materials, got %d", len(trace.Materials))
	}
	resolved := trace.Materials[0]
	if resolved.Lots[0].Inspection == nil || resolved.Lots[0].Inspection.PowderName != "Fe-100" {
		t.Errorf("LOT-1 should resolve its incoming inspection")
	}
	unresolved := trace.Materials[1]
	if unresolved.Lots[0].Inspection != nil {
		t.Errorf("LOT-X has no inspection and must report nil, got %+v", unresolved.Lots[0].Inspection)
	}
}

func TestBackwardDoesNotMatchAcrossPowders(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	resolver := NewResolver(st, logging.NewNop())

	// The same lot number exists under a different powder; the join is
	// by (powder, lot), so it must not resolve.
	seedIncoming(t, st, "Cu-200", "SHARED")
	seedBatch(t, st, "BATCH-20260828-001",
		&store.MaterialInput{PowderName: "Fe-100", MaterialLots: []string{"SHARED"}, TargetWeight: 70, ActualWeight: 70, IsValid: true},
	)

	trace, err := resolver.Backward(context.Background(), "BATCH-20260828-001")
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	if trace.Materials[0].Lots[0].Inspection != nil {
		t.Error("composite key join must not resolve a different powder's lot")
	}
}

func TestForwardFindsConsumingBatches(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	resolver := NewResolver(st, logging.NewNop())

	seedIncoming(t, st, "Fe-100", "LOT-1")
	seedBatch(t, st, "BATCH-A",
		&store.MaterialInput{PowderName: "Fe-100", MaterialLots: []string{"LOT-1", "LOT-2"}, TargetWeight: 70, ActualWeight: 70, IsValid: true},
	)
	seedBatch(t, st, "BATCH-B",
		&store.MaterialInput{PowderName: "Fe-100", MaterialLots: []string{"LOT-1"}, TargetWeight: 70, ActualWeight: 70, IsValid: true},
	)
	seedBatch(t, st, "BATCH-C",
		&store.MaterialInput{PowderName: "Fe-100", MaterialLots: []string{"LOT-9"}, TargetWeight: 70, ActualWeight: 70, IsValid: true},
	)

	trace, err := resolver.Forward(context.Background(), "Fe-100", "LOT-1")
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if trace.Inspection == nil {
		t.Error("incoming inspection should resolve")
	}
	if len(trace.Batches) != 2 {
		t.Fatalf("expected 2 consuming batches, got %d", len(trace.Batches))
	}
	lots := map[string]bool{}
	for _, batch := range trace.Batches {
		lots[batch.Work.BatchLot] = true
	}
	if !lots["BATCH-A"] || !lots["BATCH-B"] {
		t.Errorf("unexpected batches: %v", lots)
	}
}

func TestForwardWithoutPowderIsLotOnly(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	resolver := NewResolver(st, logging.NewNop())

	seedBatch(t, st, "BATCH-A",
		&store.MaterialInput{PowderName: "Fe-100", MaterialLots: []string{"SHARED"}, TargetWeight: 70, ActualWeight: 70, IsValid: true},
	)
	seedBatch(t, st, "BATCH-B",
		&store.MaterialInput{PowderName: "Cu-200", MaterialLots: []string{"SHARED"}, TargetWeight: 30, ActualWeight: 30, IsValid: true},
	)

	trace, err := resolver.Forward(context.Background(), "", "SHARED")
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if len(trace.Batches) != 2 {
		t.Errorf("lot-only matching should span powders, got %d batches", len(trace.Batches))
	}
	if trace.Inspection != nil {
		t.Error("lot-only queries carry no inspection join")
	}
}

func TestSearchClassifiesQueries(t *testing.T) {
	st := testsupport.MustOpenStore(t, nil)
	resolver := NewResolver(st, logging.NewNop())

	seedIncoming(t, st, "Fe-100", "LOT-1")
	seedBatch(t, st, "BATCH-A",
		&store.MaterialInput{PowderName: "Fe-100", MaterialLots: []string{"LOT-1"}, TargetWeight: 70, ActualWeight: 70, IsValid: true},
	)

	backward, err := resolver.Search(context.Background(), "BATCH-A")
	if err != nil {
		t.Fatalf("search batch: %v", err)
	}
	if backward.Direction != DirectionBackward || backward.Backward == nil {
		t.Errorf("expected backward classification, got %+v", backward)
	}

	forward, err := resolver.Search(context.Background(), "LOT-1")
	if err != nil {
		t.Fatalf("search lot: %v", err)
	}
	if forward.Direction != DirectionForward || len(forward.Forward.Batches) != 1 {
		t.Errorf("expected forward classification, got %+v", forward)
	}

	if _, err := resolver.Search(context.Background(), "nothing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
