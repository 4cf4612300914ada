package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSchemaMismatch is returned when parsed output cannot be mapped onto an
// AnalysisResult at all.
var ErrSchemaMismatch = errors.New("schema mismatch")

var riskLabels = map[string]string{
	"low":      RiskLow,
	"düşük":    RiskLow,
	"dusuk":    RiskLow,
	"medium":   RiskMedium,
	"orta":     RiskMedium,
	"high":     RiskHigh,
	"yüksek":   RiskHigh,
	"yuksek":   RiskHigh,
	"unknown":  RiskUnknown,
	"belirsiz": RiskUnknown,
}

var severityLabels = map[string]string{
	"low":    SeverityLow,
	"düşük":  SeverityLow,
	"dusuk":  SeverityLow,
	"medium": SeverityMedium,
	"orta":   SeverityMedium,
	"high":   SeverityHigh,
	"yüksek": SeverityHigh,
	"yuksek": SeverityHigh,
}

// NormalizeRisk maps English or Turkish risk labels onto the risk enum.
func NormalizeRisk(label string) string {
	if r, ok := riskLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return r
	}
	return RiskUnknown
}

func normalizeSeverity(label string) string {
	if s, ok := severityLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return s
	}
	return SeverityMedium
}

// Parse unmarshals raw JSON and coerces it.
func Parse(raw string) (*AnalysisResult, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return Coerce(v)
}

// Coerce maps a decoded JSON value onto an AnalysisResult, filling defaults
// rather than rejecting. Only a value that is not an object fails.
func Coerce(v any) (*AnalysisResult, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrSchemaMismatch, v)
	}

	res := &AnalysisResult{
		Distortions:     []DistortionFinding{},
		RiskLevel:       RiskUnknown,
		Recommendations: []string{},
	}

	if items, ok := obj["distortions"].([]any); ok {
		for _, item := range items {
			d, ok := item.(map[string]any)
			if !ok {
				continue
			}
			res.Distortions = append(res.Distortions, coerceFinding(d))
		}
	}

	if r, ok := obj["risk_level"].(string); ok {
		res.RiskLevel = NormalizeRisk(r)
	}

	if recs, ok := obj["recommendations"].([]any); ok {
		for _, r := range recs {
			if s, ok := r.(string); ok && strings.TrimSpace(s) != "" {
				res.Recommendations = append(res.Recommendations, s)
			}
		}
	}

	return res, nil
}

func coerceFinding(d map[string]any) DistortionFinding {
	f := DistortionFinding{
		Type:        stringField(d, "type"),
		Sentence:    stringField(d, "sentence"),
		Explanation: stringField(d, "explanation"),
		Alternative: stringField(d, "alternative"),
		Severity:    SeverityMedium,
		Confidence:  DefaultConfidence,
	}
	if s, ok := d["severity"].(string); ok {
		f.Severity = normalizeSeverity(s)
	}
	if c, ok := confidenceField(d["confidence"]); ok {
		f.Confidence = c
	}
	return f
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func confidenceField(v any) (float64, bool) {
	var c float64
	switch x := v.(type) {
	case float64:
		c = x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		c = f
	default:
		return 0, false
	}
	return min(max(c, 0), 1), true
}

// Bind is the strict binding used for structured generation. Unlike Coerce,
// it requires risk_level and the four text fields on every finding, so a
// half-formed response is reported and left to the extraction fallback.
func Bind(raw string) (*AnalysisResult, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrSchemaMismatch, v)
	}
	if _, ok := obj["risk_level"].(string); !ok {
		return nil, fmt.Errorf("%w: risk_level missing", ErrSchemaMismatch)
	}
	if dv, present := obj["distortions"]; present {
		items, ok := dv.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: distortions is not a list", ErrSchemaMismatch)
		}
		for i, item := range items {
			d, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: distortion %d is not an object", ErrSchemaMismatch, i)
			}
			for _, key := range []string{"type", "sentence", "explanation", "alternative"} {
				if _, ok := d[key].(string); !ok {
					return nil, fmt.Errorf("%w: distortion %d missing %s", ErrSchemaMismatch, i, key)
				}
			}
		}
	}
	return Coerce(obj)
}
