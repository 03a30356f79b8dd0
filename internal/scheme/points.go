package scheme

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Points is a mark value stored as a whole number of hundredths so that sums
// of fractional marks stay exact.
type Points int64

const (
	pointsScale     = 100
	maxPointsDigits = 12
)

// ParsePoints reads a decimal mark such as "2", "-1", "+0.5" or "1.25".
// At most two fractional digits are accepted.
func ParsePoints(text string) (Points, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, fmt.Errorf("points value is empty")
	}
	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || !allDigits(whole) {
		return 0, fmt.Errorf("invalid points value %q", text)
	}
	if hasDot && (frac == "" || !allDigits(frac)) {
		return 0, fmt.Errorf("invalid points value %q", text)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("points value %q has more than two decimal places", text)
	}
	if len(whole) > maxPointsDigits {
		return 0, fmt.Errorf("points value %q is too large", text)
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid points value %q: %w", text, err)
	}
	var f int64
	if frac != "" {
		for len(frac) < 2 {
			frac += "0"
		}
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid points value %q: %w", text, err)
		}
	}
	value := w*pointsScale + f
	if negative {
		value = -value
	}
	return Points(value), nil
}

// WholePoints converts an integer mark.
func WholePoints(n int64) Points {
	return Points(n * pointsScale)
}

// String renders the value without trailing zeros: 2, -0.5, 1.25.
func (p Points) String() string {
	v := int64(p)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole, frac := v/pointsScale, v%pointsScale
	if frac == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	if frac%10 == 0 {
		return fmt.Sprintf("%s%d.%d", sign, whole, frac/10)
	}
	return fmt.Sprintf("%s%d.%02d", sign, whole, frac)
}

// Float returns the value as a float for display and serialization.
func (p Points) Float() float64 {
	return float64(p) / pointsScale
}

// UnmarshalYAML accepts a scalar number.
func (p *Points) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return fmt.Errorf("line %d: points must be a number", node.Line)
	}
	parsed, err := ParsePoints(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*p = parsed
	return nil
}

// MarshalYAML emits an integer when the value is whole.
func (p Points) MarshalYAML() (any, error) {
	if int64(p)%pointsScale == 0 {
		return int64(p) / pointsScale, nil
	}
	return p.Float(), nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
