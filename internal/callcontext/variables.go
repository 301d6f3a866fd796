// Package callcontext resolves, stores and expires the per-call variables
// used to personalise the agent prompt.
package callcontext

import "maps"

// Variable names substituted into the prompt template.
const (
	VarName                = "name"
	VarInterests           = "interests"
	VarMedication          = "medication"
	VarRecentConversations = "recent_conversations"
	VarRelevantNews        = "relevant_news"
)

// Placeholder values used when the context service has nothing for a field.
const (
	DefaultName                = "there"
	DefaultInterests           = "No interests"
	DefaultMedication          = "No medications"
	DefaultRecentConversations = "No previous call data"
	DefaultRelevantNews        = "No relevant news"
)

// Variables maps a variable name to its rendered text.
type Variables map[string]string

// Defaults returns a fresh set with every known variable at its placeholder.
func Defaults() Variables {
	return Variables{
		VarName:                DefaultName,
		VarInterests:           DefaultInterests,
		VarMedication:          DefaultMedication,
		VarRecentConversations: DefaultRecentConversations,
		VarRelevantNews:        DefaultRelevantNews,
	}
}

// WithDefaults returns a copy of v where every known variable that is
// missing or empty carries its placeholder. Extra keys are preserved.
func (v Variables) WithDefaults() Variables {
	out := Defaults()
	for k, val := range v {
		if val == "" {
			continue
		}
		out[k] = val
	}
	return out
}

// Name returns the callee's name, or DefaultName.
func (v Variables) Name() string {
	if name := v[VarName]; name != "" {
		return name
	}
	return DefaultName
}

// Clone returns a shallow copy.
func (v Variables) Clone() Variables {
	if v == nil {
		return Variables{}
	}
	return maps.Clone(v)
}
