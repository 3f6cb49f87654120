package inspection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"powderlab/internal/logging"
	"powderlab/internal/store"
	"powderlab/internal/textutil"
)

// defaultInspector seeds result rows created outside any progress context.
const defaultInspector = "unassigned"

// Service runs complete inspection operations, each as one store
// transaction so a lock conflict retries the whole operation.
type Service struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the inspection engine to its store.
func NewService(st *store.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logging.WithComponent(logger, "inspection"),
		now:    time.Now,
	}
}

// BeginState classifies the outcome of a begin request.
type BeginState string

const (
	// BeginNew means a fresh progress row was created.
	BeginNew BeginState = "new"
	// BeginInProgress means an inspection is already underway.
	BeginInProgress BeginState = "in_progress"
	// BeginCompleted means a finalized result already exists.
	BeginCompleted BeginState = "completed"
)

// BeginRequest starts or resumes an inspection.
type BeginRequest struct {
	PowderName     string
	LotNumber      string
	InspectionType store.InspectionType
	Inspector      string
}

// BeginResponse reports the inspection state after a begin request.
// Items is freshly resolved and therefore informational for resumed
// inspections, whose binding snapshot lives on the progress row.
type BeginResponse struct {
	State    BeginState
	Items    []Item
	Progress *store.InspectionProgress
	Result   *store.InspectionResult
}

// Begin starts a new inspection or reports the state of an existing one.
func (s *Service) Begin(ctx context.Context, req BeginRequest) (*BeginResponse, error) {
	req.PowderName = textutil.NormalizeKey(req.PowderName)
	req.LotNumber = textutil.NormalizeKey(req.LotNumber)
	if req.PowderName == "" || req.LotNumber == "" {
		return nil, fmt.Errorf("%w: powder name and lot number are required", ErrValidation)
	}
	if req.InspectionType != store.InspectionDaily && req.InspectionType != store.InspectionPeriodic {
		return nil, fmt.Errorf("%w: unknown inspection type %q", ErrValidation, req.InspectionType)
	}

	var resp *BeginResponse
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		items, err := ResolveItems(tx, req.PowderName, req.InspectionType)
		if err != nil {
			return err
		}

		progress, err := tx.GetProgress(req.PowderName, req.LotNumber)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if progress != nil {
			resp = &BeginResponse{State: BeginInProgress, Items: items, Progress: progress}
			return nil
		}

		result, err := tx.GetResult(req.PowderName, req.LotNumber)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if result != nil && result.Finalized() {
			resp = &BeginResponse{State: BeginCompleted, Items: items, Result: result}
			return nil
		}

		if len(items) == 0 {
			return fmt.Errorf("%w: powder %q, type %s", ErrNoItems, req.PowderName, req.InspectionType)
		}

		spec, err := tx.GetPowderSpec(req.PowderName)
		if err != nil {
			return err
		}
		names := itemNames(items)
		fresh := &store.InspectionProgress{
			PowderName:     req.PowderName,
			LotNumber:      req.LotNumber,
			InspectionType: req.InspectionType,
			Inspector:      req.Inspector,
			StartTime:      s.now(),
			CompletedItems: []string{},
			TotalItems:     names,
			Progress:       fmt.Sprintf("0/%d", len(names)),
			Category:       spec.Category,
		}
		if err := tx.CreateProgress(fresh); err != nil {
			return err
		}
		resp = &BeginResponse{State: BeginNew, Items: items, Progress: fresh}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("inspection begin",
		slog.String(logging.FieldPowder, req.PowderName),
		slog.String(logging.FieldLot, req.LotNumber),
		slog.String("state", string(resp.State)),
	)
	return resp, nil
}

// ItemRequest submits replicate measurements for one scalar item.
// Direct analytes use Values; weight-based analytes use Pairs.
type ItemRequest struct {
	PowderName string
	LotNumber  string
	ItemName   string
	Inspector  string
	Values     []string
	Pairs      [][2]string
}

// ItemOutcome reports the evaluation and progress effect of a submission.
type ItemOutcome struct {
	Average   *float64
	Verdict   store.Verdict
	Progress  string
	Completed bool
}

// SubmitItem evaluates and records one scalar item submission.
func (s *Service) SubmitItem(ctx context.Context, req ItemRequest) (*ItemOutcome, error) {
	req.PowderName = textutil.NormalizeKey(req.PowderName)
	req.LotNumber = textutil.NormalizeKey(req.LotNumber)
	if req.PowderName == "" || req.LotNumber == "" || req.ItemName == "" {
		return nil, fmt.Errorf("%w: powder name, lot number and item name are required", ErrValidation)
	}
	info, ok := store.AnalyteByItem(req.ItemName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown item %q", ErrValidation, req.ItemName)
	}

	var outcome *ItemOutcome
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		measurement, err := evaluateScalar(info, req.Values, req.Pairs)
		if err != nil {
			return err
		}

		progress, err := tx.GetProgress(req.PowderName, req.LotNumber)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		result, err := tx.GetResult(req.PowderName, req.LotNumber)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		// Without an active inspection or a prior result there is no
		// specification context; the submission passes through.
		measurement.Verdict = store.VerdictPass
		inspectionType, hasContext := contextType(progress, result)
		if hasContext {
			spec, err := tx.GetPowderSpec(req.PowderName)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if spec != nil {
				bound := spec.Bounds[info.Analyte]
				if bound.Active() && typeIncluded(bound.Type, inspectionType) {
					measurement.Verdict = judge(*measurement.Average, bound)
				}
			}
		}

		if result == nil {
			result = newResultFromProgress(req.PowderName, req.LotNumber, req.Inspector, progress, s.now())
			if err := tx.CreateResult(result); err != nil {
				return err
			}
		}
		if err := tx.UpdateScalar(result.ID, info.Analyte, measurement); err != nil {
			return err
		}

		progressLabel, completed, err := s.recordCompletion(tx, progress, result.ID, req.ItemName)
		if err != nil {
			return err
		}
		outcome = &ItemOutcome{
			Average:   measurement.Average,
			Verdict:   measurement.Verdict,
			Progress:  progressLabel,
			Completed: completed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item recorded",
		slog.String(logging.FieldPowder, req.PowderName),
		slog.String(logging.FieldLot, req.LotNumber),
		slog.String(logging.FieldItem, req.ItemName),
		slog.String("verdict", string(outcome.Verdict)),
	)
	return outcome, nil
}

// ParticleRequest submits the particle-size composite for an inspection.
type ParticleRequest struct {
	PowderName string
	LotNumber  string
	Inspector  string
	Buckets    []ParticleSubmission
}

// ParticleOutcome reports per-bucket judgments and the composite verdict.
type ParticleOutcome struct {
	Results   []store.ParticleResult
	Verdict   store.Verdict
	Progress  string
	Completed bool
}

// SubmitParticleSize evaluates and records the particle-size composite.
// Every bucket the specification defines is judged; buckets missing
// from the payload fail closed.
func (s *Service) SubmitParticleSize(ctx context.Context, req ParticleRequest) (*ParticleOutcome, error) {
	req.PowderName = textutil.NormalizeKey(req.PowderName)
	req.LotNumber = textutil.NormalizeKey(req.LotNumber)
	if req.PowderName == "" || req.LotNumber == "" {
		return nil, fmt.Errorf("%w: powder name and lot number are required", ErrValidation)
	}

	var outcome *ParticleOutcome
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		buckets, err := tx.ListParticleBuckets(req.PowderName)
		if err != nil {
			return err
		}
		if len(buckets) == 0 {
			return fmt.Errorf("%w: no particle size specification for %q", ErrValidation, req.PowderName)
		}

		results, verdict, err := evaluateParticle(buckets, req.Buckets)
		if err != nil {
			return err
		}

		progress, err := tx.GetProgress(req.PowderName, req.LotNumber)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		result, err := tx.GetResult(req.PowderName, req.LotNumber)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if result == nil {
			result = newResultFromProgress(req.PowderName, req.LotNumber, req.Inspector, progress, s.now())
			if err := tx.CreateResult(result); err != nil {
				return err
			}
		}
		if err := tx.ReplaceParticleResults(result.ID, results, verdict); err != nil {
			return err
		}

		progressLabel, completed, err := s.recordCompletion(tx, progress, result.ID, store.ItemNameParticleSize)
		if err != nil {
			return err
		}
		outcome = &ParticleOutcome{
			Results:   results,
			Verdict:   verdict,
			Progress:  progressLabel,
			Completed: completed,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("particle size recorded",
		slog.String(logging.FieldPowder, req.PowderName),
		slog.String(logging.FieldLot, req.LotNumber),
		slog.String("verdict", string(outcome.Verdict)),
	)
	return outcome, nil
}

// recordCompletion appends the item to the progress row, retiring the
// row and finalizing the result when the snapshot is exhausted. With
// no progress row it falls back to direct finalization of the result.
func (s *Service) recordCompletion(tx *store.Tx, progress *store.InspectionProgress, resultID int64, itemName string) (string, bool, error) {
	if progress == nil {
		if err := s.finalize(tx, resultID); err != nil {
			return "", false, err
		}
		return "", true, nil
	}

	if !progress.HasCompleted(itemName) {
		progress.CompletedItems = append(progress.CompletedItems, itemName)
		progress.Progress = fmt.Sprintf("%d/%d", len(progress.CompletedItems), len(progress.TotalItems))
		if err := tx.UpdateProgressItems(progress); err != nil {
			return "", false, err
		}
	}

	if len(progress.CompletedItems) < len(progress.TotalItems) {
		return progress.Progress, false, nil
	}

	if err := s.finalize(tx, resultID); err != nil {
		return "", false, err
	}
	if err := tx.DeleteProgress(progress.PowderName, progress.LotNumber); err != nil {
		return "", false, err
	}
	return progress.Progress, true, nil
}

// finalize computes and stamps the aggregate verdict. An already
// finalized result is left untouched.
func (s *Service) finalize(tx *store.Tx, resultID int64) error {
	result, err := tx.GetResultByID(resultID)
	if err != nil {
		return err
	}
	if result.Finalized() {
		return nil
	}
	verdict := aggregateVerdict(result)
	if err := tx.FinalizeResult(resultID, verdict, s.now()); err != nil {
		return err
	}
	s.logger.Info("inspection finalized",
		slog.String(logging.FieldPowder, result.PowderName),
		slog.String(logging.FieldLot, result.LotNumber),
		slog.String("final_result", string(verdict)),
	)
	return nil
}

func contextType(progress *store.InspectionProgress, result *store.InspectionResult) (store.InspectionType, bool) {
	if progress != nil {
		return progress.InspectionType, true
	}
	if result != nil {
		return result.InspectionType, true
	}
	return "", false
}

func newResultFromProgress(powderName, lotNumber, inspector string, progress *store.InspectionProgress, now time.Time) *store.InspectionResult {
	result := &store.InspectionResult{
		PowderName:     powderName,
		LotNumber:      lotNumber,
		Inspector:      inspector,
		InspectionType: store.InspectionDaily,
		InspectionTime: now,
		Category:       store.CategoryIncoming,
	}
	if progress != nil {
		result.InspectionType = progress.InspectionType
		result.Category = progress.Category
		if result.Inspector == "" {
			result.Inspector = progress.Inspector
		}
	}
	if result.Inspector == "" {
		result.Inspector = defaultInspector
	}
	return result
}

// Get loads the full result record for one (powder, lot).
func (s *Service) Get(ctx context.Context, powderName, lotNumber string) (*store.InspectionResult, error) {
	var result *store.InspectionResult
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		result, err = tx.GetResult(powderName, lotNumber)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListIncomplete returns every in-flight inspection.
func (s *Service) ListIncomplete(ctx context.Context) ([]*store.InspectionProgress, error) {
	var list []*store.InspectionProgress
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		list, err = tx.ListIncompleteProgress()
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Search returns result records matching the filter.
func (s *Service) Search(ctx context.Context, filter store.ResultFilter) ([]*store.InspectionResult, error) {
	var results []*store.InspectionResult
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		results, err = tx.SearchResults(filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Delete removes a result record and any progress row for the pair.
// Explicit admin action; finalized records are not protected from it.
func (s *Service) Delete(ctx context.Context, powderName, lotNumber string) error {
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteProgress(powderName, lotNumber); err != nil {
			return err
		}
		return tx.DeleteResult(powderName, lotNumber)
	})
	if err != nil {
		return err
	}
	s.logger.Info("inspection deleted",
		slog.String(logging.FieldPowder, powderName),
		slog.String(logging.FieldLot, lotNumber),
	)
	return nil
}
