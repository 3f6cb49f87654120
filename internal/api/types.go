package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// InspectionItem describes one required inspection step.
type InspectionItem struct {
	Name           string           `json:"name"`
	DisplayName    string           `json:"displayName"`
	Unit           string           `json:"unit,omitempty"`
	Min            *float64         `json:"min,omitempty"`
	Max            *float64         `json:"max,omitempty"`
	Type           string           `json:"type"`
	IsParticleSize bool             `json:"isParticleSize,omitempty"`
	IsWeightBased  bool             `json:"isWeightBased,omitempty"`
	Buckets        []ParticleBucket `json:"buckets,omitempty"`
}

// ParticleBucket is one mesh-size bound within a particle-size item.
type ParticleBucket struct {
	MeshSize string  `json:"meshSize"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

// BeginInspectionRequest starts or resumes an inspection.
type BeginInspectionRequest struct {
	PowderName     string `json:"powderName"`
	LotNumber      string `json:"lotNumber"`
	InspectionType string `json:"inspectionType"`
	Inspector      string `json:"inspector,omitempty"`
}

// BeginInspectionResponse reports the inspection state after begin.
type BeginInspectionResponse struct {
	State    string              `json:"state"`
	Items    []InspectionItem    `json:"items"`
	Progress *InspectionProgress `json:"progress,omitempty"`
	Result   *InspectionResult   `json:"result,omitempty"`
}

// InspectionProgress is the transport form of an in-flight inspection.
type InspectionProgress struct {
	PowderName     string   `json:"powderName"`
	LotNumber      string   `json:"lotNumber"`
	InspectionType string   `json:"inspectionType"`
	Inspector      string   `json:"inspector,omitempty"`
	StartTime      string   `json:"startTime"`
	CompletedItems []string `json:"completedItems"`
	TotalItems     []string `json:"totalItems"`
	Progress       string   `json:"progress"`
	Category       string   `json:"category"`
}

// SubmitItemRequest records replicate measurements for one item.
// Values carries direct replicates; Pairs carries weight pairs for
// weight-based analytes.
type SubmitItemRequest struct {
	PowderName string      `json:"powderName"`
	LotNumber  string      `json:"lotNumber"`
	ItemName   string      `json:"itemName"`
	Inspector  string      `json:"inspector,omitempty"`
	Values     []string    `json:"values,omitempty"`
	Pairs      [][2]string `json:"pairs,omitempty"`
}

// SubmitItemResponse reports the evaluation of one submission.
type SubmitItemResponse struct {
	Average   *float64 `json:"average"`
	Result    string   `json:"result"`
	Progress  string   `json:"progress,omitempty"`
	Completed bool     `json:"completed"`
}

// ParticleSizeRequest records the particle-size composite.
type ParticleSizeRequest struct {
	PowderName string                     `json:"powderName"`
	LotNumber  string                     `json:"lotNumber"`
	Inspector  string                     `json:"inspector,omitempty"`
	Buckets    []ParticleBucketSubmission `json:"buckets"`
}

// ParticleBucketSubmission is one submitted mesh bucket.
type ParticleBucketSubmission struct {
	MeshSize string `json:"meshSize"`
	Value1   string `json:"value1,omitempty"`
	Value2   string `json:"value2,omitempty"`
}

// ParticleSizeResponse reports per-bucket and composite judgments.
type ParticleSizeResponse struct {
	Buckets   []ParticleBucketResult `json:"buckets"`
	Result    string                 `json:"result"`
	Progress  string                 `json:"progress,omitempty"`
	Completed bool                   `json:"completed"`
}

// ParticleBucketResult is one judged mesh bucket.
type ParticleBucketResult struct {
	MeshSize string   `json:"meshSize"`
	Value1   *float64 `json:"value1,omitempty"`
	Value2   *float64 `json:"value2,omitempty"`
	Average  *float64 `json:"average,omitempty"`
	Result   string   `json:"result"`
}

// Measurement is the transport form of one analyte's values.
type Measurement struct {
	Values  []*float64    `json:"values"`
	Pairs   [][2]*float64 `json:"pairs,omitempty"`
	Average *float64      `json:"average,omitempty"`
	Result  string        `json:"result,omitempty"`
}

// InspectionResult is the transport form of a result record.
type InspectionResult struct {
	ID                 int64                  `json:"id"`
	PowderName         string                 `json:"powderName"`
	LotNumber          string                 `json:"lotNumber"`
	Inspector          string                 `json:"inspector,omitempty"`
	InspectionType     string                 `json:"inspectionType"`
	InspectionTime     string                 `json:"inspectionTime"`
	Category           string                 `json:"category"`
	Items              map[string]Measurement `json:"items"`
	ParticleBuckets    []ParticleBucketResult `json:"particleBuckets,omitempty"`
	ParticleSizeResult string                 `json:"particleSizeResult,omitempty"`
	FinalResult        string                 `json:"finalResult,omitempty"`
	FinalizedAt        string                 `json:"finalizedAt,omitempty"`
}

// ResultListResponse wraps a result search.
type ResultListResponse struct {
	Results []InspectionResult `json:"results"`
}

// IncompleteListResponse wraps the in-flight inspection listing.
type IncompleteListResponse struct {
	Inspections []InspectionProgress `json:"inspections"`
}

// CreateWorkRequest opens a production batch.
type CreateWorkRequest struct {
	ProductName       string             `json:"productName"`
	ProductCode       string             `json:"productCode,omitempty"`
	Operator          string             `json:"operator,omitempty"`
	TargetTotalWeight float64            `json:"targetTotalWeight"`
	MainPowderWeights map[string]float64 `json:"mainPowderWeights,omitempty"`
}

// BlendingWork is the transport form of a batch.
type BlendingWork struct {
	ID                int64              `json:"id"`
	WorkOrder         string             `json:"workOrder"`
	ProductName       string             `json:"productName"`
	ProductCode       string             `json:"productCode,omitempty"`
	BatchLot          string             `json:"batchLot"`
	TargetTotalWeight float64            `json:"targetTotalWeight"`
	ActualTotalWeight float64            `json:"actualTotalWeight"`
	Operator          string             `json:"operator,omitempty"`
	Status            string             `json:"status"`
	StartTime         string             `json:"startTime"`
	EndTime           string             `json:"endTime,omitempty"`
	MainPowderWeights map[string]float64 `json:"mainPowderWeights,omitempty"`
}

// WorkListResponse wraps a batch listing.
type WorkListResponse struct {
	Works []BlendingWork `json:"works"`
}

// WorkDetailResponse bundles a batch with its material inputs.
type WorkDetailResponse struct {
	Work   BlendingWork    `json:"work"`
	Inputs []MaterialInput `json:"inputs"`
}

// ConsumeMaterialRequest records one raw-material weighing.
type ConsumeMaterialRequest struct {
	BlendingWorkID   int64    `json:"blendingWorkId"`
	PowderName       string   `json:"powderName"`
	MaterialLot      string   `json:"materialLot"`
	ActualWeight     float64  `json:"actualWeight"`
	TargetWeight     *float64 `json:"targetWeight,omitempty"`
	TolerancePercent *float64 `json:"tolerancePercent,omitempty"`
	InputBy          string   `json:"inputBy,omitempty"`
}

// ConsumeMaterialResponse reports the validation outcome.
type ConsumeMaterialResponse struct {
	WeightDeviation   float64 `json:"weightDeviation"`
	IsValid           bool    `json:"isValid"`
	ValidationMessage string  `json:"validationMessage,omitempty"`
	TargetWeight      float64 `json:"targetWeight"`
}

// MaterialInput is the transport form of a consumption event.
type MaterialInput struct {
	ID              int64    `json:"id"`
	BlendingWorkID  int64    `json:"blendingWorkId"`
	PowderName      string   `json:"powderName"`
	MaterialLots    []string `json:"materialLots"`
	TargetWeight    float64  `json:"targetWeight"`
	ActualWeight    float64  `json:"actualWeight"`
	WeightDeviation float64  `json:"weightDeviation"`
	IsValid         bool     `json:"isValid"`
	InputTime       string   `json:"inputTime"`
	InputBy         string   `json:"inputBy,omitempty"`
}

// LotInspection pairs one sub-lot with its incoming inspection, which
// is null when no finalized record matches.
type LotInspection struct {
	LotNumber          string            `json:"lotNumber"`
	IncomingInspection *InspectionResult `json:"incomingInspection"`
}

// TraceMaterial is one consumption event within a backward trace.
type TraceMaterial struct {
	Input MaterialInput   `json:"input"`
	Lots  []LotInspection `json:"lots"`
}

// BackwardTraceResponse answers a batch-lot trace.
type BackwardTraceResponse struct {
	Work      BlendingWork    `json:"work"`
	Materials []TraceMaterial `json:"materials"`
}

// TraceBatch is one batch within a forward trace.
type TraceBatch struct {
	Input MaterialInput `json:"input"`
	Work  BlendingWork  `json:"work"`
}

// ForwardTraceResponse answers a material-lot trace. Ambiguous when no
// powder name was supplied, since lot numbers are only unique per
// powder.
type ForwardTraceResponse struct {
	PowderName         string            `json:"powderName,omitempty"`
	LotNumber          string            `json:"lotNumber"`
	IncomingInspection *InspectionResult `json:"incomingInspection,omitempty"`
	Batches            []TraceBatch      `json:"batches"`
	Ambiguous          bool              `json:"ambiguous,omitempty"`
}

// TraceSearchResponse classifies a free-form trace query.
type TraceSearchResponse struct {
	Direction string                 `json:"direction"`
	Backward  *BackwardTraceResponse `json:"backward,omitempty"`
	Forward   *ForwardTraceResponse  `json:"forward,omitempty"`
}

// LogsResponse carries a slice of daemon log lines plus the offset to
// resume from.
type LogsResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// DaemonStatus reports daemon runtime information.
type DaemonStatus struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	DatabasePath string `json:"databasePath"`
	LockFilePath string `json:"lockFilePath"`
	Version      string `json:"version,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error         string   `json:"error"`
	Deviation     *float64 `json:"deviation,omitempty"`
	CorrelationID string   `json:"correlationId,omitempty"`
}
