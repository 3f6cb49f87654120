package api

import (
	"time"

	"powderlab/internal/blending"
	"powderlab/internal/inspection"
	"powderlab/internal/store"
	"powderlab/internal/trace"
)

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format(dateTimeFormat)
}

// FromItems converts resolved inspection items.
func FromItems(items []inspection.Item) []InspectionItem {
	converted := make([]InspectionItem, len(items))
	for i, item := range items {
		converted[i] = InspectionItem{
			Name:           item.Name,
			DisplayName:    item.DisplayName,
			Unit:           item.Unit,
			Min:            item.Min,
			Max:            item.Max,
			Type:           string(item.Type),
			IsParticleSize: item.IsParticleSize,
			IsWeightBased:  item.IsWeightBased,
		}
		for _, bucket := range item.Buckets {
			converted[i].Buckets = append(converted[i].Buckets, ParticleBucket{
				MeshSize: bucket.MeshSize,
				Min:      bucket.Min,
				Max:      bucket.Max,
			})
		}
	}
	return converted
}

// FromProgress converts an in-flight inspection.
func FromProgress(progress *store.InspectionProgress) *InspectionProgress {
	if progress == nil {
		return nil
	}
	return &InspectionProgress{
		PowderName:     progress.PowderName,
		LotNumber:      progress.LotNumber,
		InspectionType: string(progress.InspectionType),
		Inspector:      progress.Inspector,
		StartTime:      formatTime(progress.StartTime),
		CompletedItems: progress.CompletedItems,
		TotalItems:     progress.TotalItems,
		Progress:       progress.Progress,
		Category:       string(progress.Category),
	}
}

// FromResult converts a result record, keying measurements by item name.
func FromResult(result *store.InspectionResult) *InspectionResult {
	if result == nil {
		return nil
	}
	converted := &InspectionResult{
		ID:                 result.ID,
		PowderName:         result.PowderName,
		LotNumber:          result.LotNumber,
		Inspector:          result.Inspector,
		InspectionType:     string(result.InspectionType),
		InspectionTime:     formatTime(result.InspectionTime),
		Category:           string(result.Category),
		Items:              make(map[string]Measurement, len(result.Scalars)),
		ParticleSizeResult: string(result.ParticleVerdict),
		FinalResult:        string(result.FinalResult),
	}
	if result.FinalizedAt != nil {
		converted.FinalizedAt = formatTime(*result.FinalizedAt)
	}

	for analyte, measurement := range result.Scalars {
		info, ok := store.AnalyteInfoFor(analyte)
		if !ok {
			continue
		}
		dto := Measurement{
			Values:  measurement.Raw[:],
			Average: measurement.Average,
			Result:  string(measurement.Verdict),
		}
		if info.Kind == store.KindWeightPair {
			dto.Pairs = [][2]*float64{measurement.RawPairs[0], measurement.RawPairs[1], measurement.RawPairs[2]}
		}
		converted.Items[info.ItemName] = dto
	}

	for _, bucket := range result.ParticleResults {
		converted.ParticleBuckets = append(converted.ParticleBuckets, fromParticleResult(bucket))
	}
	return converted
}

func fromParticleResult(bucket store.ParticleResult) ParticleBucketResult {
	return ParticleBucketResult{
		MeshSize: bucket.MeshSize,
		Value1:   bucket.Value1,
		Value2:   bucket.Value2,
		Average:  bucket.Average,
		Result:   string(bucket.Verdict),
	}
}

// FromParticleResults converts judged mesh buckets.
func FromParticleResults(results []store.ParticleResult) []ParticleBucketResult {
	converted := make([]ParticleBucketResult, len(results))
	for i, bucket := range results {
		converted[i] = fromParticleResult(bucket)
	}
	return converted
}

// FromWork converts a blending batch.
func FromWork(work *store.BlendingWork) BlendingWork {
	converted := BlendingWork{
		ID:                work.ID,
		WorkOrder:         work.WorkOrder,
		ProductName:       work.ProductName,
		ProductCode:       work.ProductCode,
		BatchLot:          work.BatchLot,
		TargetTotalWeight: work.TargetTotalWeight,
		ActualTotalWeight: work.ActualTotalWeight,
		Operator:          work.Operator,
		Status:            string(work.Status),
		StartTime:         formatTime(work.StartTime),
		MainPowderWeights: work.MainPowderWeights,
	}
	if work.EndTime != nil {
		converted.EndTime = formatTime(*work.EndTime)
	}
	return converted
}

// FromMaterialInput converts a consumption event.
func FromMaterialInput(input *store.MaterialInput) MaterialInput {
	return MaterialInput{
		ID:              input.ID,
		BlendingWorkID:  input.BlendingWorkID,
		PowderName:      input.PowderName,
		MaterialLots:    input.MaterialLots,
		TargetWeight:    input.TargetWeight,
		ActualWeight:    input.ActualWeight,
		WeightDeviation: input.WeightDeviation,
		IsValid:         input.IsValid,
		InputTime:       formatTime(input.InputTime),
		InputBy:         input.InputBy,
	}
}

// FromWorkDetail converts a batch with its inputs.
func FromWorkDetail(detail *blending.WorkDetail) WorkDetailResponse {
	resp := WorkDetailResponse{Work: FromWork(detail.Work), Inputs: []MaterialInput{}}
	for _, input := range detail.Inputs {
		resp.Inputs = append(resp.Inputs, FromMaterialInput(input))
	}
	return resp
}

// FromBackwardTrace converts a batch-to-materials trace.
func FromBackwardTrace(backward *trace.BackwardTrace) *BackwardTraceResponse {
	if backward == nil {
		return nil
	}
	resp := &BackwardTraceResponse{Work: FromWork(backward.Work), Materials: []TraceMaterial{}}
	for _, entry := range backward.Materials {
		material := TraceMaterial{Input: FromMaterialInput(entry.Input)}
		for _, lot := range entry.Lots {
			material.Lots = append(material.Lots, LotInspection{
				LotNumber:          lot.LotNumber,
				IncomingInspection: FromResult(lot.Inspection),
			})
		}
		resp.Materials = append(resp.Materials, material)
	}
	return resp
}

// FromForwardTrace converts a material-to-batches trace.
func FromForwardTrace(forward *trace.ForwardTrace) *ForwardTraceResponse {
	if forward == nil {
		return nil
	}
	resp := &ForwardTraceResponse{
		PowderName:         forward.PowderName,
		LotNumber:          forward.LotNumber,
		IncomingInspection: FromResult(forward.Inspection),
		Batches:            []TraceBatch{},
		Ambiguous:          forward.PowderName == "",
	}
	for _, use := range forward.Batches {
		resp.Batches = append(resp.Batches, TraceBatch{
			Input: FromMaterialInput(use.Input),
			Work:  FromWork(use.Work),
		})
	}
	return resp
}

// FromTraceResult converts a classified trace query.
func FromTraceResult(result *trace.Result) TraceSearchResponse {
	return TraceSearchResponse{
		Direction: string(result.Direction),
		Backward:  FromBackwardTrace(result.Backward),
		Forward:   FromForwardTrace(result.Forward),
	}
}
