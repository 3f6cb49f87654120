package store

// Analyte identifies one measurable quality characteristic. The value
// doubles as the column prefix in the inspection_result table.
type Analyte string

const (
	AnalyteFlowRate        Analyte = "flow_rate"
	AnalyteApparentDensity Analyte = "apparent_density"
	AnalyteCContent        Analyte = "c_content"
	AnalyteCuContent       Analyte = "cu_content"
	AnalyteMoisture        Analyte = "moisture"
	AnalyteAsh             Analyte = "ash"
	AnalyteSinterChange    Analyte = "sinter_change_rate"
	AnalyteSinterStrength  Analyte = "sinter_strength"
	AnalyteFormingStrength Analyte = "forming_strength"
	AnalyteFormingLoad     Analyte = "forming_load"
)

// AnalyteKind distinguishes how replicate values are submitted.
type AnalyteKind int

const (
	// KindDirect analytes submit up to three measured values directly.
	KindDirect AnalyteKind = iota
	// KindWeightPair analytes submit up to three weight pairs from
	// which the per-replicate value is derived.
	KindWeightPair
)

// AnalyteInfo is the static descriptor for one analyte. All row access
// goes through this table; nothing looks fields up by ad hoc strings.
type AnalyteInfo struct {
	Analyte     Analyte
	ItemName    string
	DisplayName string
	Unit        string
	Kind        AnalyteKind
	// PairColumns names the two raw weight columns per replicate for
	// KindWeightPair analytes, e.g. empty_cup/powder_weight.
	PairColumns [2]string
}

// ItemNameParticleSize is the pseudo-item name for the particle-size composite.
const ItemNameParticleSize = "ParticleSize"

// Analytes lists every scalar analyte in specification order.
var Analytes = []AnalyteInfo{
	{Analyte: AnalyteFlowRate, ItemName: "FlowRate", DisplayName: "유동도", Unit: "s/50g", Kind: KindDirect},
	{Analyte: AnalyteApparentDensity, ItemName: "ApparentDensity", DisplayName: "겉보기밀도", Unit: "g/cm³", Kind: KindWeightPair, PairColumns: [2]string{"empty_cup", "powder_weight"}},
	{Analyte: AnalyteCContent, ItemName: "CContent", DisplayName: "C함량", Unit: "%", Kind: KindDirect},
	{Analyte: AnalyteCuContent, ItemName: "CuContent", DisplayName: "Cu함량", Unit: "%", Kind: KindDirect},
	{Analyte: AnalyteMoisture, ItemName: "Moisture", DisplayName: "수분도", Unit: "%", Kind: KindWeightPair, PairColumns: [2]string{"initial_weight", "dried_weight"}},
	{Analyte: AnalyteAsh, ItemName: "Ash", DisplayName: "회분도", Unit: "%", Kind: KindWeightPair, PairColumns: [2]string{"initial_weight", "ash_weight"}},
	{Analyte: AnalyteSinterChange, ItemName: "SinterChangeRate", DisplayName: "소결변화율", Unit: "%", Kind: KindDirect},
	{Analyte: AnalyteSinterStrength, ItemName: "SinterStrength", DisplayName: "소결강도", Unit: "MPa", Kind: KindDirect},
	{Analyte: AnalyteFormingStrength, ItemName: "FormingStrength", DisplayName: "성형강도", Unit: "N", Kind: KindDirect},
	{Analyte: AnalyteFormingLoad, ItemName: "FormingLoad", DisplayName: "성형하중", Unit: "MPa", Kind: KindDirect},
}

var analyteByItem = func() map[string]AnalyteInfo {
	m := make(map[string]AnalyteInfo, len(Analytes))
	for _, info := range Analytes {
		m[info.ItemName] = info
	}
	return m
}()

var analyteByID = func() map[Analyte]AnalyteInfo {
	m := make(map[Analyte]AnalyteInfo, len(Analytes))
	for _, info := range Analytes {
		m[info.Analyte] = info
	}
	return m
}()

// AnalyteByItem resolves an API item name like "FlowRate" to its descriptor.
func AnalyteByItem(item string) (AnalyteInfo, bool) {
	info, ok := analyteByItem[item]
	return info, ok
}

// AnalyteInfoFor resolves an analyte identifier to its descriptor.
func AnalyteInfoFor(analyte Analyte) (AnalyteInfo, bool) {
	info, ok := analyteByID[analyte]
	return info, ok
}

// scalarColumns returns the ordered result-table columns for one
// analyte: raw columns, then average, then result.
func scalarColumns(info AnalyteInfo) []string {
	prefix := string(info.Analyte)
	switch info.Kind {
	case KindWeightPair:
		columns := make([]string, 0, 11)
		for i := 1; i <= 3; i++ {
			columns = append(columns,
				prefix+"_"+info.PairColumns[0]+"_"+itoa(i),
				prefix+"_"+info.PairColumns[1]+"_"+itoa(i),
				prefix+"_"+itoa(i),
			)
		}
		return append(columns, prefix+"_avg", prefix+"_result")
	default:
		return []string{prefix + "_1", prefix + "_2", prefix + "_3", prefix + "_avg", prefix + "_result"}
	}
}

func itoa(i int) string {
	return string(rune('0' + i))
}
