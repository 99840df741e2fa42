package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MaxSharedCM is the largest amount of shared DNA accepted by an analysis
const MaxSharedCM = 4000.0

// EndogamyLevel describes how much intermarriage there is in a family
type EndogamyLevel string

const (
	EndogamyNone     EndogamyLevel = "none"
	EndogamyLight    EndogamyLevel = "light"
	EndogamyModerate EndogamyLevel = "moderate"
	EndogamyHigh     EndogamyLevel = "high"
	EndogamyVeryHigh EndogamyLevel = "very_high"
)

// EndogamyLevels lists the known levels from lowest to highest
var EndogamyLevels = []EndogamyLevel{EndogamyNone, EndogamyLight, EndogamyModerate, EndogamyHigh, EndogamyVeryHigh}

var endogamyFactors = map[EndogamyLevel]float64{
	EndogamyNone:     1.0,
	EndogamyLight:    1.2,
	EndogamyModerate: 1.4,
	EndogamyHigh:     1.7,
	EndogamyVeryHigh: 2.0,
}

// Factor returns the divisor applied to shared cM for this level
func (l EndogamyLevel) Factor() (float64, bool) {
	f, ok := endogamyFactors[l]
	return f, ok
}

// ValidationError reports an invalid request field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AnalysisRequest is the input of a shared-DNA analysis.
// generacion accepts a JSON number or string and x_inheritance accepts a
// boolean or a yes/no string, as older clients send both forms.
type AnalysisRequest struct {
	CM             *float64       `json:"cm"`
	Generacion     *int           `json:"generacion,omitempty"`
	Sexo           *string        `json:"sexo,omitempty"`
	XInheritance   *bool          `json:"x_inheritance,omitempty"`
	Segments       *int           `json:"segments,omitempty"`
	LargestSegment *float64       `json:"largest_segment,omitempty"`
	Endogamia      *EndogamyLevel `json:"endogamia,omitempty"`
}

// UnmarshalJSON decodes the lenient wire form of an analysis request
func (r *AnalysisRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		CM             *float64        `json:"cm"`
		Generacion     json.RawMessage `json:"generacion"`
		Sexo           *string         `json:"sexo"`
		XInheritance   json.RawMessage `json:"x_inheritance"`
		Segments       *int            `json:"segments"`
		LargestSegment *float64        `json:"largest_segment"`
		Endogamia      *string         `json:"endogamia"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	generacion, err := decodeGeneration(raw.Generacion)
	if err != nil {
		return err
	}
	xInheritance, err := decodeFlexBool(raw.XInheritance)
	if err != nil {
		return err
	}

	*r = AnalysisRequest{
		CM:             raw.CM,
		Generacion:     generacion,
		Sexo:           raw.Sexo,
		XInheritance:   xInheritance,
		Segments:       raw.Segments,
		LargestSegment: raw.LargestSegment,
	}
	if raw.Endogamia != nil && *raw.Endogamia != "" {
		level := EndogamyLevel(*raw.Endogamia)
		r.Endogamia = &level
	}
	return nil
}

// Validate checks field ranges
func (r *AnalysisRequest) Validate() error {
	if err := validateCM(r.CM, true); err != nil {
		return err
	}
	if r.Generacion != nil && *r.Generacion < 0 {
		return invalid("generacion", "must be non-negative")
	}
	if err := validateSex(r.Sexo); err != nil {
		return err
	}
	if r.Segments != nil && *r.Segments < 0 {
		return invalid("segments", "must be non-negative")
	}
	if r.LargestSegment != nil && (*r.LargestSegment < 0 || math.IsNaN(*r.LargestSegment)) {
		return invalid("largest_segment", "must be non-negative")
	}
	if r.Endogamia != nil {
		if _, ok := r.Endogamia.Factor(); !ok {
			return invalid("endogamia", "unknown level %q", string(*r.Endogamia))
		}
	}
	return nil
}

// CalculationRequest is the input of the curve-based probability calculation
type CalculationRequest struct {
	CM           *float64 `json:"cm"`
	Generacion   *int     `json:"generacion,omitempty"`
	Sexo         *string  `json:"sexo,omitempty"`
	XInheritance *bool    `json:"x_inheritance,omitempty"`
}

// Validate checks field ranges
func (r *CalculationRequest) Validate() error {
	if err := validateCM(r.CM, false); err != nil {
		return err
	}
	if r.Generacion != nil && *r.Generacion < 0 {
		return invalid("generacion", "must be non-negative")
	}
	return validateSex(r.Sexo)
}

func validateCM(cm *float64, capped bool) error {
	if cm == nil {
		return invalid("cm", "field required")
	}
	if math.IsNaN(*cm) || *cm <= 0 {
		return invalid("cm", "must be greater than 0")
	}
	if capped && *cm > MaxSharedCM {
		return invalid("cm", "must not exceed %.0f", MaxSharedCM)
	}
	return nil
}

func validateSex(sexo *string) error {
	if sexo == nil || isSex(*sexo) {
		return nil
	}
	return invalid("sexo", "must be either M or F")
}

func decodeGeneration(raw json.RawMessage) (*int, error) {
	if isNull(raw) {
		return nil, nil
	}
	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, invalid("generacion", "invalid value")
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
	} else {
		text = string(raw)
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil, invalid("generacion", "must be an integer, got %s", text)
	}
	return &n, nil
}

func decodeFlexBool(raw json.RawMessage) (*bool, error) {
	if isNull(raw) {
		return nil, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return &b, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, invalid("x_inheritance", "must be a boolean")
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "":
		return nil, nil
	case "true", "yes", "si", "sí", "1":
		b = true
	case "false", "no", "0":
		b = false
	default:
		return nil, invalid("x_inheritance", "must be a boolean, got %q", text)
	}
	return &b, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// AnalysisResult is one ranked candidate relationship
type AnalysisResult struct {
	Relationship
	AdjustedProb float64 `json:"adjustedProb"`
	XPlausible   bool    `json:"xPlausible"`
	AgePlausible bool    `json:"agePlausible"`
}

// CalculationResult is one relationship with its curve-based probability
type CalculationResult struct {
	Code         string  `json:"code"`
	Nombre       string  `json:"nombre"`
	Abreviado    string  `json:"abreviado"`
	PromedioCM   float64 `json:"promedio_cm"`
	MinCM        float64 `json:"min_cm"`
	MaxCM        float64 `json:"max_cm"`
	Probabilidad float64 `json:"probabilidad"`
}

// CurveHistogram is the probability curve of a relationship scaled for charts
type CurveHistogram struct {
	Bins   []float64 `json:"bins"`
	Counts []int     `json:"counts"`
}

// Analysis is a stored analysis request together with its best match
type Analysis struct {
	ID             string    `json:"id" db:"id"`
	CMValue        float64   `json:"cm_value" db:"cm_value"`
	Generation     *int      `json:"generation,omitempty" db:"generation"`
	Sex            *string   `json:"sex,omitempty" db:"sex"`
	XInheritance   *bool     `json:"x_inheritance,omitempty" db:"x_inheritance"`
	Segments       *int      `json:"segments,omitempty" db:"segments"`
	LargestSegment *float64  `json:"largest_segment,omitempty" db:"largest_segment"`
	EndogamyLevel  *string   `json:"endogamy_level,omitempty" db:"endogamy_level"`
	TopCode        *string   `json:"top_code,omitempty" db:"top_code"`
	TopProbability *float64  `json:"top_probability,omitempty" db:"top_probability"`
	Subject        string    `json:"subject,omitempty" db:"subject"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
