package blending

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"powderlab/internal/config"
	"powderlab/internal/logging"
	"powderlab/internal/store"
	"powderlab/internal/textutil"
)

// Service runs blending-work lifecycle and material-consumption
// validation, each operation as one store transaction.
type Service struct {
	store            *store.Store
	logger           *slog.Logger
	defaultTolerance float64
	batchLotPrefix   string
	now              func() time.Time
}

// NewService wires the blending engine to its store and config defaults.
func NewService(st *store.Store, cfg *config.Config, logger *slog.Logger) *Service {
	tolerance := 5.0
	prefix := "BATCH"
	if cfg != nil {
		if cfg.Blending.DefaultTolerancePercent > 0 {
			tolerance = cfg.Blending.DefaultTolerancePercent
		}
		if cfg.Blending.BatchLotPrefix != "" {
			prefix = cfg.Blending.BatchLotPrefix
		}
	}
	return &Service{
		store:            st,
		logger:           logging.WithComponent(logger, "blending"),
		defaultTolerance: tolerance,
		batchLotPrefix:   prefix,
		now:              time.Now,
	}
}

// CreateWorkRequest starts a new production batch.
type CreateWorkRequest struct {
	ProductName       string
	ProductCode       string
	Operator          string
	TargetTotalWeight float64
	// MainPowderWeights optionally overrides per-main-ingredient targets.
	MainPowderWeights map[string]float64
}

// CreateWork opens a batch, generating its work order and batch lot.
func (s *Service) CreateWork(ctx context.Context, req CreateWorkRequest) (*store.BlendingWork, error) {
	req.ProductName = textutil.NormalizeKey(req.ProductName)
	if req.ProductName == "" {
		return nil, fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if req.TargetTotalWeight <= 0 {
		return nil, fmt.Errorf("%w: target total weight must be positive", ErrValidation)
	}

	now := s.now()
	var work *store.BlendingWork
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		recipes, err := tx.ActiveRecipes(req.ProductName)
		if err != nil {
			return err
		}
		if len(recipes) == 0 {
			return fmt.Errorf("%w: product %q has no active recipe", ErrValidation, req.ProductName)
		}

		datePrefix := fmt.Sprintf("%s-%s-", s.batchLotPrefix, now.Format("20060102"))
		seq, err := tx.NextBatchLotSequence(datePrefix)
		if err != nil {
			return err
		}

		work = &store.BlendingWork{
			WorkOrder:         fmt.Sprintf("WO-%s", uuid.NewString()),
			ProductName:       req.ProductName,
			ProductCode:       req.ProductCode,
			BatchLot:          fmt.Sprintf("%s%03d", datePrefix, seq),
			TargetTotalWeight: req.TargetTotalWeight,
			Operator:          req.Operator,
			Status:            store.WorkInProgress,
			StartTime:         now,
			MainPowderWeights: req.MainPowderWeights,
		}
		return tx.CreateBlendingWork(work)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("blending work created",
		slog.String("product", work.ProductName),
		slog.String(logging.FieldBatchLot, work.BatchLot),
		slog.String("work_order", work.WorkOrder),
	)
	return work, nil
}

// ConsumeRequest records one raw-material weighing against a batch.
// MaterialLot may name several sub-lots separated by commas; every
// sub-lot must validate or the whole request is rejected.
type ConsumeRequest struct {
	BlendingWorkID int64
	PowderName     string
	MaterialLot    string
	ActualWeight   float64
	// TargetWeight overrides the recipe-derived target when non-nil.
	TargetWeight *float64
	// TolerancePercent overrides the recipe tolerance when non-nil.
	TolerancePercent *float64
	InputBy          string
}

// ConsumeOutcome reports a validated consumption event.
type ConsumeOutcome struct {
	Input           *store.MaterialInput
	TargetWeight    float64
	WeightDeviation float64
}

// ConsumeMaterial validates lot identity and weight tolerance, then
// records the consumption and refreshes the batch's accumulated
// weight. Rejected attempts persist nothing.
func (s *Service) ConsumeMaterial(ctx context.Context, req ConsumeRequest) (*ConsumeOutcome, error) {
	req.PowderName = textutil.NormalizeKey(req.PowderName)
	if req.BlendingWorkID == 0 || req.PowderName == "" {
		return nil, fmt.Errorf("%w: blending work and powder name are required", ErrValidation)
	}
	lots := textutil.SplitLots(req.MaterialLot)

	var outcome *ConsumeOutcome
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		work, err := tx.GetBlendingWork(req.BlendingWorkID)
		if err != nil {
			return err
		}
		if work.Status != store.WorkInProgress {
			return fmt.Errorf("%w: work %s is not in progress", ErrValidation, work.WorkOrder)
		}

		recipes, err := tx.ActiveRecipes(work.ProductName)
		if err != nil {
			return err
		}
		recipe := findRecipe(recipes, req.PowderName)
		if recipe == nil {
			return fmt.Errorf("%w: %q is not an ingredient of %q", ErrValidation, req.PowderName, work.ProductName)
		}

		if err := validateLots(tx, req.PowderName, lots); err != nil {
			return err
		}

		target, err := s.targetWeight(tx, work, recipes, recipe, req.TargetWeight)
		if err != nil {
			return err
		}
		tolerance := s.defaultTolerance
		if recipe.TolerancePercent > 0 {
			tolerance = recipe.TolerancePercent
		}
		if req.TolerancePercent != nil {
			tolerance = *req.TolerancePercent
		}

		deviation, err := checkTolerance(target, req.ActualWeight, tolerance)
		if err != nil {
			return err
		}

		input := &store.MaterialInput{
			BlendingWorkID:  work.ID,
			PowderName:      req.PowderName,
			MaterialLots:    lots,
			TargetWeight:    target,
			ActualWeight:    req.ActualWeight,
			WeightDeviation: deviation,
			IsValid:         true,
			InputTime:       s.now(),
			InputBy:         req.InputBy,
		}
		if err := tx.CreateMaterialInput(input); err != nil {
			return err
		}

		total, err := tx.SumValidInputWeights(work.ID)
		if err != nil {
			return err
		}
		if err := tx.SetActualTotalWeight(work.ID, total); err != nil {
			return err
		}

		outcome = &ConsumeOutcome{Input: input, TargetWeight: target, WeightDeviation: deviation}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("material consumed",
		slog.String(logging.FieldPowder, req.PowderName),
		slog.String("material_lot", req.MaterialLot),
		slog.Float64("deviation_percent", outcome.WeightDeviation),
	)
	return outcome, nil
}

// targetWeight resolves the expected weight for one ingredient. Main
// lines take their per-batch override or their ratio share of the
// nominal target; non-main lines derive proportionally from the sum
// of main-ingredient actuals once those are recorded.
func (s *Service) targetWeight(tx *store.Tx, work *store.BlendingWork, recipes []*store.Recipe, recipe *store.Recipe, override *float64) (float64, error) {
	if override != nil {
		return *override, nil
	}
	if recipe.TargetWeight != nil {
		return *recipe.TargetWeight, nil
	}

	nominal := work.TargetTotalWeight * recipe.Ratio / 100
	if recipe.IsMain {
		if weight, ok := work.MainPowderWeights[recipe.PowderName]; ok {
			return weight, nil
		}
		return nominal, nil
	}

	mains := map[string]bool{}
	var mainRatio float64
	for _, line := range recipes {
		if line.IsMain {
			mains[line.PowderName] = true
			mainRatio += line.Ratio
		}
	}
	if mainRatio == 0 {
		return nominal, nil
	}

	inputs, err := tx.ListMaterialInputs(work.ID)
	if err != nil {
		return 0, err
	}
	var mainActual float64
	for _, input := range inputs {
		if input.IsValid && mains[input.PowderName] {
			mainActual += input.ActualWeight
		}
	}
	if mainActual == 0 {
		return nominal, nil
	}
	return math.Round(mainActual*recipe.Ratio/mainRatio*100) / 100, nil
}

func findRecipe(recipes []*store.Recipe, powderName string) *store.Recipe {
	for _, recipe := range recipes {
		if recipe.PowderName == powderName {
			return recipe
		}
	}
	return nil
}

// CompleteWork closes a batch once every active recipe line has at
// least one valid material input.
func (s *Service) CompleteWork(ctx context.Context, workID int64) (*store.BlendingWork, error) {
	var work *store.BlendingWork
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		work, err = tx.GetBlendingWork(workID)
		if err != nil {
			return err
		}
		if work.Status != store.WorkInProgress {
			return fmt.Errorf("%w: work %s is not in progress", ErrValidation, work.WorkOrder)
		}

		recipes, err := tx.ActiveRecipes(work.ProductName)
		if err != nil {
			return err
		}
		entered, err := tx.InputPowderNames(workID)
		if err != nil {
			return err
		}
		present := map[string]bool{}
		for _, name := range entered {
			present[name] = true
		}
		for _, recipe := range recipes {
			if !present[recipe.PowderName] {
				return fmt.Errorf("%w: %q has no input", ErrIncompleteWork, recipe.PowderName)
			}
		}

		endTime := s.now()
		if err := tx.CompleteBlendingWork(workID, endTime); err != nil {
			return err
		}
		work.Status = store.WorkCompleted
		work.EndTime = &endTime
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("blending work completed",
		slog.String(logging.FieldBatchLot, work.BatchLot),
		slog.Float64("actual_total_weight", work.ActualTotalWeight),
	)
	return work, nil
}

// WorkDetail bundles a batch with its consumption events.
type WorkDetail struct {
	Work   *store.BlendingWork
	Inputs []*store.MaterialInput
}

// GetWork loads one batch and its material inputs.
func (s *Service) GetWork(ctx context.Context, workID int64) (*WorkDetail, error) {
	var detail *WorkDetail
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		work, err := tx.GetBlendingWork(workID)
		if err != nil {
			return err
		}
		inputs, err := tx.ListMaterialInputs(workID)
		if err != nil {
			return err
		}
		detail = &WorkDetail{Work: work, Inputs: inputs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ListWorks returns batches filtered by status; an empty status lists all.
func (s *Service) ListWorks(ctx context.Context, status store.WorkStatus) ([]*store.BlendingWork, error) {
	var works []*store.BlendingWork
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		works, err = tx.ListBlendingWorks(status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return works, nil
}

// ValidateLot checks whether a (powder, lot) pair could be consumed,
// without recording anything. Used by stations to pre-check a label scan.
func (s *Service) ValidateLot(ctx context.Context, powderName, materialLot string) error {
	lots := textutil.SplitLots(materialLot)
	return s.store.WithTx(ctx, func(tx *store.Tx) error {
		return validateLots(tx, textutil.NormalizeKey(powderName), lots)
	})
}
