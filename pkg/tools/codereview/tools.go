package codereview

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// Tool names as referenced by graph definitions.
const (
	ToolExtractFunctions    = "extract_functions"
	ToolCheckComplexity     = "check_complexity"
	ToolDetectIssues        = "detect_issues"
	ToolSuggestImprovements = "suggest_improvements"
)

// Loop defaults, overridable through the "threshold" and "max_iterations" state keys.
const (
	DefaultThreshold     = 0.8
	DefaultMaxIterations = 5
	MaxLineLength        = 100
)

var functionPattern = regexp.MustCompile(`(?m)(?:def|func)\s+(?:\([^)]*\)\s*)?([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)

var branchingTokens = []string{" if ", " for ", " while ", " and ", " or "}

// input is the typed view of the state keys the tools read.
type input struct {
	Code            string   `mapstructure:"code"`
	Issues          []string `mapstructure:"issues"`
	ComplexityScore float64  `mapstructure:"complexity_score"`
	Iteration       int      `mapstructure:"iteration"`
	Threshold       float64  `mapstructure:"threshold"`
	MaxIterations   int      `mapstructure:"max_iterations"`
}

// decode reads the state leniently: numbers may arrive as float64 from JSON
// and lists as []any.
func decode(state domain.State) (input, error) {
	in := input{
		Threshold:     DefaultThreshold,
		MaxIterations: DefaultMaxIterations,
	}
	if err := mapstructure.WeakDecode(map[string]any(state), &in); err != nil {
		return in, fmt.Errorf("invalid review state: %w", err)
	}
	return in, nil
}

// ExtractFunctions lists function names declared in "code" and counts the
// review iteration.
func ExtractFunctions(_ context.Context, state domain.State) (domain.State, error) {
	in, err := decode(state)
	if err != nil {
		return nil, err
	}

	functions := []string{}
	for _, m := range functionPattern.FindAllStringSubmatch(in.Code, -1) {
		functions = append(functions, m[1])
	}
	state["functions"] = functions

	if _, ok := state["issues"]; !ok {
		state["issues"] = []string{}
	}
	if _, ok := state["quality_score"]; !ok {
		state["quality_score"] = 0.0
	}
	state["iteration"] = in.Iteration + 1
	return state, nil
}

// CheckComplexity scores the code by non-blank lines plus weighted branching keywords.
func CheckComplexity(_ context.Context, state domain.State) (domain.State, error) {
	in, err := decode(state)
	if err != nil {
		return nil, err
	}

	lines := 0
	for _, line := range strings.Split(in.Code, "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	branches := 0
	for _, tok := range branchingTokens {
		branches += strings.Count(in.Code, tok)
	}

	state["complexity_score"] = lines + 2*branches
	return state, nil
}

// DetectIssues flags long lines and TODO markers. Issues are recomputed on
// every pass so repeated iterations do not accumulate duplicates.
func DetectIssues(_ context.Context, state domain.State) (domain.State, error) {
	in, err := decode(state)
	if err != nil {
		return nil, err
	}

	issues := []string{}
	if in.Code != "" {
		for i, line := range strings.Split(in.Code, "\n") {
			line = strings.TrimRight(line, "\r")
			if utf8.RuneCountInString(line) > MaxLineLength {
				issues = append(issues, fmt.Sprintf("Line %d: line too long", i+1))
			}
			if strings.Contains(line, "TODO") {
				issues = append(issues, fmt.Sprintf("Line %d: contains TODO", i+1))
			}
		}
	}

	state["issues"] = issues
	state["anomaly_count"] = len(issues)
	return state, nil
}

// SuggestImprovements derives suggestions and a quality score, then loops
// back to extraction through the override until the score reaches the
// threshold or the iteration cap is hit.
func SuggestImprovements(_ context.Context, state domain.State) (domain.State, error) {
	in, err := decode(state)
	if err != nil {
		return nil, err
	}

	var suggestions []string
	if in.ComplexityScore > 50 {
		suggestions = append(suggestions, "Consider splitting large functions into smaller ones.")
	}
	if len(in.Issues) > 0 {
		suggestions = append(suggestions, "Fix the listed issues, especially long lines and TODOs.")
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, "Code looks reasonably clean.")
	}

	penalty := math.Min(in.ComplexityScore/100.0, 0.7) + math.Min(float64(len(in.Issues))*0.05, 0.3)
	score := math.Round(math.Max(0, 1.0-penalty)*1000) / 1000

	state["suggestions"] = suggestions
	state["quality_score"] = score

	iteration := in.Iteration
	if iteration < 1 {
		iteration = 1
	}
	if score < in.Threshold && iteration < in.MaxIterations {
		state.SetNext(NodeExtract)
	} else {
		state.Stop()
	}
	return state, nil
}
