// Package scheme models a marking rubric: an ordered list of criteria, each
// offering mutually exclusive choices worth a fixed number of points.
//
// Rubrics are written in YAML:
//
//	title: Lab 03
//	criteria:
//	  - prompt: Compiles
//	    context: make 2>&1
//	    choices:
//	      - label: "yes"
//	        points: 2
//	      - label: "no"
//	        points: 0
//
// A criterion may carry a context command (run in the marking work directory
// and shown in a side pane) or free-form notes. Unknown keys are rejected.
package scheme

import "strings"

// Scheme is the parsed rubric. Criteria are kept in marking order.
type Scheme struct {
	Title    string
	Criteria []Criterion
}

// Criterion is one gradable aspect of the submission.
type Criterion struct {
	Prompt  string
	Context string
	Notes   string
	Choices []Choice
}

// Choice is one outcome for a criterion.
type Choice struct {
	Label       string
	Description string
	Points      Points
}

// Len returns the number of criteria.
func (s *Scheme) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Criteria)
}

// Criterion returns the criterion at idx.
func (s *Scheme) Criterion(idx int) (Criterion, bool) {
	if s == nil || idx < 0 || idx >= len(s.Criteria) {
		return Criterion{}, false
	}
	return s.Criteria[idx], true
}

// MaxTotal sums the best choice of every criterion.
func (s *Scheme) MaxTotal() Points {
	if s == nil {
		return 0
	}
	var total Points
	for _, c := range s.Criteria {
		best := c.Choices[0].Points
		for _, ch := range c.Choices[1:] {
			if ch.Points > best {
				best = ch.Points
			}
		}
		total += best
	}
	return total
}

// HasContext reports whether the criterion wants a context pane.
func (c Criterion) HasContext() bool {
	return strings.TrimSpace(c.Context) != "" || strings.TrimSpace(c.Notes) != ""
}
