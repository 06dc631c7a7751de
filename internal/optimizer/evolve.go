package optimizer

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Mutation names one of the table-driven prompt transforms. Each operator is
// a pure (prompt, systemPrompt) -> (prompt, systemPrompt) function, never a
// type hierarchy.
type Mutation string

const (
	MutationClarify          Mutation = "clarify"
	MutationExpand           Mutation = "expand"
	MutationSimplify         Mutation = "simplify"
	MutationReframe          Mutation = "reframe"
	MutationAddConstraint    Mutation = "add_constraint"
	MutationRemoveConstraint Mutation = "remove_constraint"
)

// Target is which half of the prompt a mutation applies to.
type Target string

const (
	TargetSystem Target = "system"
	TargetUser   Target = "user"
	TargetBoth   Target = "both"
)

// FailureMode summarizes one bucket of recent failures, as fed in by the
// tracker/expander.
type FailureMode struct {
	ErrorType string
	Count     int
}

// failureToMutation maps an error-type bucket to the mutation/target pair
// applied when evolving past that failure mode.
var failureToMutation = map[string]struct {
	mutation Mutation
	target   Target
}{
	"timeout":      {MutationAddConstraint, TargetSystem},
	"validation":   {MutationClarify, TargetUser},
	"capability":   {MutationExpand, TargetBoth},
	"rate_limit":   {MutationAddConstraint, TargetSystem},
	"ambiguous":    {MutationClarify, TargetUser},
	"over_verbose": {MutationSimplify, TargetBoth},
}

// mutationOperators are pure transforms keyed by Mutation. Each receives and
// returns (prompt, systemPrompt).
var mutationOperators = map[Mutation]func(prompt, system string) (string, string){
	MutationClarify: func(prompt, system string) (string, string) {
		return prompt + "\n\nBe explicit about any assumptions before proceeding.", system
	},
	MutationExpand: func(prompt, system string) (string, string) {
		return prompt + "\n\nConsider edge cases and less common inputs.", system + "\nYou may use any available tool capability to complete the task."
	},
	MutationSimplify: func(prompt, system string) (string, string) {
		return prompt, system + "\nRespond as concisely as possible."
	},
	MutationReframe: func(prompt, system string) (string, string) {
		return "Restate the goal in your own words, then: " + prompt, system
	},
	MutationAddConstraint: func(prompt, system string) (string, string) {
		return prompt, system + "\nStay within the originally stated scope; do not expand beyond it without asking."
	},
	MutationRemoveConstraint: func(prompt, system string) (string, string) {
		return prompt, system
	},
}

// Evolve inspects the current active variant and the most frequent recent
// failure modes, producing a new testing variant whose parent is the active
// one. The caller supplies failureModes (already bucketed by error type over
// the recent window) since failure history belongs to the tracker, not the
// optimizer.
func (o *Optimizer) Evolve(agentID string, failureModes []FailureMode) (*PromptVariant, error) {
	active, ok := o.Active(agentID)
	if !ok {
		return nil, errNoActiveVariant(agentID)
	}

	sort.Slice(failureModes, func(i, j int) bool { return failureModes[i].Count > failureModes[j].Count })

	prompt := active.PromptBody
	system := active.SystemPrompt
	var reasons []string
	applied := 0
	for _, fm := range failureModes {
		mapping, ok := failureToMutation[fm.ErrorType]
		if !ok {
			continue
		}
		op, ok := mutationOperators[mapping.mutation]
		if !ok {
			continue
		}
		prompt, system = op(prompt, system)
		reasons = append(reasons, string(mapping.mutation)+" applied for "+fm.ErrorType+" failures")
		applied++
		if applied >= 2 {
			break
		}
	}
	if applied == 0 {
		prompt, system = mutationOperators[MutationReframe](prompt, system)
		reasons = append(reasons, "reframe applied as default evolution strategy")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	next := &PromptVariant{
		ID: uuid.NewString(), AgentID: agentID, Version: active.Version + 1,
		PromptBody: prompt, SystemPrompt: system, CreatedAt: time.Now().UTC(),
		ParentVariantID: active.ID, MutationType: MutationEvolutionary,
		MutationReason: joinReasons(reasons), Status: StatusTesting,
	}
	o.variants[agentID][next.ID] = next
	o.order[agentID] = append(o.order[agentID], next.ID)
	return next, nil
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}

type noActiveVariantError struct{ agentID string }

func (e noActiveVariantError) Error() string {
	return "optimizer: agent " + e.agentID + " has no active variant to evolve from"
}

func errNoActiveVariant(agentID string) error { return noActiveVariantError{agentID: agentID} }
