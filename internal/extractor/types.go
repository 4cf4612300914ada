package extractor

// Risk levels of an analysis. RiskUnknown is used whenever the model did not
// supply a recognisable level.
const (
	RiskLow     = "low"
	RiskMedium  = "medium"
	RiskHigh    = "high"
	RiskUnknown = "unknown"
)

// Severities of a single finding.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// DefaultConfidence applies when the model omits a confidence score.
const DefaultConfidence = 0.7

// DistortionFinding is one cognitive distortion detected in an entry.
type DistortionFinding struct {
	Type        string  `json:"type"` // e.g. felaketleştirme, zihin okuma, genelleme
	Sentence    string  `json:"sentence"`
	Explanation string  `json:"explanation"`
	Alternative string  `json:"alternative"`
	Severity    string  `json:"severity"`   // low | medium | high
	Confidence  float64 `json:"confidence"` // 0.0-1.0
}

// AnalysisResult is the envelope returned for every analysed entry.
type AnalysisResult struct {
	Distortions       []DistortionFinding `json:"distortions"`
	RiskLevel         string              `json:"risk_level"` // low | medium | high | unknown
	Recommendations   []string            `json:"recommendations"`
	AnalysisTimestamp string              `json:"analysis_timestamp"`
	UserID            string              `json:"user_id,omitempty"`
}

// DistortionTypes returns the finding types in emission order.
func (r *AnalysisResult) DistortionTypes() []string {
	out := make([]string, 0, len(r.Distortions))
	for _, d := range r.Distortions {
		out = append(out, d.Type)
	}
	return out
}
