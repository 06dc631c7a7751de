// Package classify turns a free-text task description into a structured
// TaskDescriptor. Classification is a pure function over a fixed keyword
// lexicon: no I/O, no randomness, no dependency on the rest of the runtime,
// so repeated calls on the same input are byte-identical.
package classify

import (
	"math"
	"strings"
)

// Complexity is the coarse difficulty bucket of a task.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityMedium   Complexity = "medium"
	ComplexityComplex  Complexity = "complex"
	ComplexityCritical Complexity = "critical"
)

// Pattern is the shape of reasoning the task is expected to need.
type Pattern string

const (
	PatternSingleShot     Pattern = "single-shot"
	PatternMultiStep      Pattern = "multi-step"
	PatternIterative      Pattern = "iterative"
	PatternChainOfThought Pattern = "chain-of-thought"
)

// Constraints narrow which models the router may choose.
type Constraints struct {
	MaxCost              float64
	MaxLatencyMs         int
	MinQuality           float64
	PreferredModel       string
	RequiredCapabilities []string
}

// TaskDescriptor is the immutable classification output. Once emitted it is
// never mutated by any downstream component.
type TaskDescriptor struct {
	Text                string
	Type                string
	Complexity          Complexity
	Pattern             Pattern
	InputTokenEstimate  int
	OutputTokenEstimate int
	RequiresThinking    bool
	IsCode              bool
	Priority            int
	Confidence          float64
	Constraints         *Constraints
}

// the 13 type buckets, ordered from most to least specific so tie-breaking
// prefers the earlier (more specific) bucket when match counts are equal.
var typeBuckets = []struct {
	name     string
	keywords []string
}{
	{"debugging", []string{"bug", "fix", "error", "broken", "crash", "traceback", "stack trace", "not working", "fails"}},
	{"code-review", []string{"review", "pull request", "pr feedback", "code review", "lgtm"}},
	{"refactoring", []string{"refactor", "clean up", "restructure", "simplify code", "rename", "extract"}},
	{"code-generation", []string{"implement", "write code", "write a function", "create a class", "build a", "generate code"}},
	{"architecture", []string{"architecture", "design a system", "microservices", "scalable", "system design", "infrastructure"}},
	{"data-extraction", []string{"extract", "parse", "scrape", "pull data", "structured data"}},
	{"translation", []string{"translate", "translation", "localize", "localization"}},
	{"summarization", []string{"summarize", "summary", "tl;dr", "condense"}},
	{"documentation", []string{"document", "docstring", "jsdoc", "readme", "comment the", "add comments"}},
	{"classification", []string{"classify", "categorize", "label", "tag this"}},
	{"research", []string{"research", "investigate", "compare options", "survey of", "literature"}},
	{"analysis", []string{"analyze", "analysis", "evaluate", "assess"}},
	{"simple-task", []string{}},
}

var criticalMarkers = []string{"production", "mission-critical", "mission critical"}

var highComplexityMarkers = []string{
	"architecture", "scalable", "distributed", "concurrent", "security", "migration", "comprehensive", "detailed",
}

var lowComplexityMarkers = []string{
	"quick", "simple", "small", "tiny", "trivial", "brief",
}

var reasoningKeywords = []string{
	"think step by step", "step by step", "reason through", "chain of thought", "explain your reasoning",
}

var iterativeKeywords = []string{"iterate", "iteratively", "refine", "keep improving", "repeat until"}
var multiStepKeywords = []string{"then", "next", "after that", "followed by"}

var sentinelSteps = []string{"then", "next", "after that", "followed by", "finally"}

// Classify turns a free-text task description into a TaskDescriptor.
// context is accepted but currently unused; host-supplied context (prior
// turns, repo metadata) can extend the lexicon inputs later without
// changing callers.
func Classify(task string, context string) TaskDescriptor {
	trimmed := strings.TrimSpace(task)
	if trimmed == "" {
		return TaskDescriptor{
			Text: task, Type: "simple-task", Complexity: ComplexitySimple,
			Pattern: PatternSingleShot, Confidence: 0.3, Priority: 3,
			InputTokenEstimate: 500, OutputTokenEstimate: 500,
		}
	}

	lower := strings.ToLower(trimmed)

	taskType, matchCount := classifyType(lower)
	complexity := classifyComplexity(lower, trimmed)
	pattern := classifyPattern(lower)
	isCode := taskType == "code-generation" || taskType == "debugging" || taskType == "refactoring" || taskType == "code-review"

	inputTokens := int(math.Ceil(float64(len(trimmed))/4.0)) + 500

	outputTokens := 1000
	switch {
	case strings.Contains(lower, "brief"):
		outputTokens = 500
	case strings.Contains(lower, "comprehensive") || strings.Contains(lower, "detailed"):
		outputTokens = 2000
	case isCode:
		outputTokens = 1500
	}
	if len(trimmed) > 500 {
		outputTokens = int(float64(outputTokens) * 1.5)
	}

	requiresThinking := complexity == ComplexityComplex || complexity == ComplexityCritical
	if !requiresThinking {
		for _, k := range reasoningKeywords {
			if strings.Contains(lower, k) {
				requiresThinking = true
				break
			}
		}
	}

	confidence := 0.3 + 0.1*float64(matchCount)
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.3 {
		confidence = 0.3
	}

	return TaskDescriptor{
		Text:                task,
		Type:                taskType,
		Complexity:          complexity,
		Pattern:             pattern,
		InputTokenEstimate:  inputTokens,
		OutputTokenEstimate: outputTokens,
		RequiresThinking:    requiresThinking,
		IsCode:              isCode,
		Priority:            3,
		Confidence:          confidence,
	}
}

// ClassifyMany is the batch form.
func ClassifyMany(tasks []string, context string) []TaskDescriptor {
	out := make([]TaskDescriptor, len(tasks))
	for i, t := range tasks {
		out[i] = Classify(t, context)
	}
	return out
}

func classifyType(lower string) (string, int) {
	bestName := "simple-task"
	bestCount := 0
	for _, bucket := range typeBuckets {
		count := 0
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			bestName = bucket.name
		}
	}
	return bestName, bestCount
}

func classifyComplexity(lower, original string) Complexity {
	for _, m := range criticalMarkers {
		if strings.Contains(lower, m) {
			return ComplexityCritical
		}
	}

	highCount, lowCount := 0, 0
	for _, m := range highComplexityMarkers {
		if strings.Contains(lower, m) {
			highCount++
		}
	}
	for _, m := range lowComplexityMarkers {
		if strings.Contains(lower, m) {
			lowCount++
		}
	}
	if highCount > lowCount && highCount > 0 {
		return ComplexityComplex
	}
	if lowCount > highCount && lowCount > 0 {
		return ComplexitySimple
	}

	if len(original) > 500 {
		return ComplexityComplex
	}
	if len(original) < 100 {
		return ComplexitySimple
	}

	steps := countSteps(lower)
	if steps > 5 {
		return ComplexityComplex
	}
	if steps > 2 {
		return ComplexityMedium
	}
	return ComplexityMedium
}

func countSteps(lower string) int {
	count := 0
	for _, s := range sentinelSteps {
		count += strings.Count(lower, s)
	}
	for _, line := range strings.Split(lower, "\n") {
		t := strings.TrimSpace(line)
		if len(t) > 1 && t[0] >= '1' && t[0] <= '9' && (t[1] == '.' || t[1] == ')') {
			count++
		}
	}
	return count
}

func classifyPattern(lower string) Pattern {
	for _, k := range iterativeKeywords {
		if strings.Contains(lower, k) {
			return PatternIterative
		}
	}
	for _, k := range reasoningKeywords {
		if strings.Contains(lower, k) {
			return PatternChainOfThought
		}
	}
	for _, k := range multiStepKeywords {
		if strings.Contains(lower, k) {
			return PatternMultiStep
		}
	}
	return PatternSingleShot
}
