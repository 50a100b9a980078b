package risk

import "strings"

type Status string

const (
	StatusPass   Status = "Pass"
	StatusAtRisk Status = "At Risk"
)

const (
	IssueSelfPaced = "Self-paced"
	IssuePhysical  = "Physical session"
	IssueConnect   = "Connect session"
)

type rule struct {
	reason string
	fails  func(fraction float64, connect, physical int, th Thresholds) bool
}

// Evaluated in this order; the order is the order of the issue text.
var rules = []rule{
	{IssueSelfPaced, func(fraction float64, _, _ int, th Thresholds) bool { return fraction < th.SelfPaced }},
	{IssuePhysical, func(_ float64, _, physical int, th Thresholds) bool { return physical < th.Physical }},
	{IssueConnect, func(_ float64, connect, _ int, th Thresholds) bool { return connect < th.Connect }},
}

// Classify flags a student At Risk when any single check fails. The issue
// lists every failing check, joined with ", ", and is empty on Pass.
func Classify(fraction float64, connect, physical int, th Thresholds) (Status, string) {
	var issues []string
	for _, r := range rules {
		if r.fails(fraction, connect, physical, th) {
			issues = append(issues, r.reason)
		}
	}
	if len(issues) == 0 {
		return StatusPass, ""
	}
	return StatusAtRisk, strings.Join(issues, ", ")
}
