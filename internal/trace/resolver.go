// Package trace answers bidirectional traceability queries between
// finished batches and the raw-material lots they consumed.
package trace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"powderlab/internal/logging"
	"powderlab/internal/store"
	"powderlab/internal/textutil"
)

// ErrNotFound is returned when neither direction matches the query.
var ErrNotFound = errors.New("trace: no matching batch or material lot")

// LotInspection pairs one consumed sub-lot with its finalized incoming
// inspection. Inspection is nil when no matching record exists; the
// entry is reported rather than dropped.
type LotInspection struct {
	LotNumber  string
	Inspection *store.InspectionResult
}

// MaterialEntry is one consumption event inside a backward trace.
type MaterialEntry struct {
	Input *store.MaterialInput
	Lots  []LotInspection
}

// BackwardTrace walks from a batch to its raw materials.
type BackwardTrace struct {
	Work      *store.BlendingWork
	Materials []MaterialEntry
}

// BatchUse is one batch that consumed the queried material lot.
type BatchUse struct {
	Input *store.MaterialInput
	Work  *store.BlendingWork
}

// ForwardTrace walks from a raw-material lot to the batches that
// consumed it. With no powder name the lot match is by number alone
// and may span unrelated powders that happen to share it; Inspection
// is then left nil.
type ForwardTrace struct {
	PowderName string
	LotNumber  string
	Inspection *store.InspectionResult
	Batches    []BatchUse
}

// Direction classifies a free-form trace query.
type Direction string

const (
	DirectionBackward Direction = "backward"
	DirectionForward  Direction = "forward"
)

// Result is the answer to a free-form trace query.
type Result struct {
	Direction Direction
	Backward  *BackwardTrace
	Forward   *ForwardTrace
}

// Resolver runs trace queries against the shared store.
type Resolver struct {
	store  *store.Store
	logger *slog.Logger
}

// NewResolver wires the trace resolver to its store.
func NewResolver(st *store.Store, logger *slog.Logger) *Resolver {
	return &Resolver{store: st, logger: logging.WithComponent(logger, "trace")}
}

// Backward resolves a batch lot to its consumed materials, joining
// each sub-lot to its finalized incoming inspection by the composite
// (powder, lot) key.
func (r *Resolver) Backward(ctx context.Context, batchLot string) (*BackwardTrace, error) {
	batchLot = textutil.NormalizeKey(batchLot)
	var result *BackwardTrace
	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		work, err := tx.GetBlendingWorkByBatchLot(batchLot)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("batch lot %q: %w", batchLot, ErrNotFound)
			}
			return err
		}
		inputs, err := tx.ListMaterialInputs(work.ID)
		if err != nil {
			return err
		}

		trace := &BackwardTrace{Work: work}
		for _, input := range inputs {
			entry := MaterialEntry{Input: input}
			for _, lot := range input.MaterialLots {
				inspection, err := finalizedIncoming(tx, input.PowderName, lot)
				if err != nil {
					return err
				}
				entry.Lots = append(entry.Lots, LotInspection{LotNumber: lot, Inspection: inspection})
			}
			trace.Materials = append(trace.Materials, entry)
		}
		result = trace
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("backward trace",
		slog.String(logging.FieldBatchLot, batchLot),
		slog.Int("materials", len(result.Materials)),
	)
	return result, nil
}

// Forward resolves a material lot to every batch that consumed it.
// The powder name keys the incoming-inspection join; without it the
// match degrades to lot number alone and may be ambiguous.
func (r *Resolver) Forward(ctx context.Context, powderName, lotNumber string) (*ForwardTrace, error) {
	powderName = textutil.NormalizeKey(powderName)
	lotNumber = textutil.NormalizeKey(lotNumber)
	if lotNumber == "" {
		return nil, fmt.Errorf("trace: lot number is required")
	}

	var result *ForwardTrace
	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		trace := &ForwardTrace{PowderName: powderName, LotNumber: lotNumber}

		if powderName != "" {
			inspection, err := finalizedIncoming(tx, powderName, lotNumber)
			if err != nil {
				return err
			}
			trace.Inspection = inspection
		}

		inputs, err := tx.FindInputsByMaterialLot(powderName, lotNumber)
		if err != nil {
			return err
		}
		for _, input := range inputs {
			work, err := tx.GetBlendingWork(input.BlendingWorkID)
			if err != nil {
				return err
			}
			trace.Batches = append(trace.Batches, BatchUse{Input: input, Work: work})
		}

		if trace.Inspection == nil && len(trace.Batches) == 0 {
			return fmt.Errorf("material lot %s/%s: %w", powderName, lotNumber, ErrNotFound)
		}
		result = trace
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("forward trace",
		slog.String(logging.FieldPowder, powderName),
		slog.String(logging.FieldLot, lotNumber),
		slog.Int("batches", len(result.Batches)),
	)
	return result, nil
}

// Search classifies a bare identifier: a known batch lot traces
// backward, anything else is treated as a material lot and traces
// forward without a powder name.
func (r *Resolver) Search(ctx context.Context, query string) (*Result, error) {
	backward, err := r.Backward(ctx, query)
	if err == nil {
		return &Result{Direction: DirectionBackward, Backward: backward}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	forward, err := r.Forward(ctx, "", query)
	if err != nil {
		return nil, err
	}
	return &Result{Direction: DirectionForward, Forward: forward}, nil
}

func finalizedIncoming(tx *store.Tx, powderName, lotNumber string) (*store.InspectionResult, error) {
	result, err := tx.GetResult(powderName, lotNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !result.Finalized() || result.Category != store.CategoryIncoming {
		return nil, nil
	}
	return result, nil
}
