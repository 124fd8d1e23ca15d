package storyfile

import "strings"

// Override is the per-event exception policy.
type Override struct {
	// Family forces the event family when set.
	Family Family
	// StagePrefixes are extra stage id prefixes belonging to the event,
	// for events whose stage ids do not start with the event id.
	StagePrefixes []string
	// TokenPrefix replaces the "<eventID>_" prefix of parsed stage tokens
	// so they match the stage ids under StagePrefixes.
	TokenPrefix string
}

// Policy maps event ids to their override. The zero value has no overrides.
type Policy struct {
	Events map[string]Override
}

// DefaultPolicy returns the known event exceptions.
func DefaultPolicy() Policy {
	return Policy{Events: map[string]Override{
		"act3d0": {StagePrefixes: []string{"a003_"}, TokenPrefix: "a003_"},
		"act4d0": {Family: FamilyTypeAct4d0, StagePrefixes: []string{"a004_"}},
		"act6d5": {Family: FamilyTypeAct4d0},
		"act7d5": {Family: FamilyTypeAct4d0},
	}}
}

// For returns the override for an event, or the zero Override.
func (p Policy) For(eventID string) Override {
	if p.Events == nil {
		return Override{}
	}
	return p.Events[eventID]
}

// Merge returns a new policy with other's entries layered over p's.
func (p Policy) Merge(other Policy) Policy {
	out := Policy{Events: make(map[string]Override, len(p.Events)+len(other.Events))}
	for id, o := range p.Events {
		out.Events[id] = o
	}
	for id, o := range other.Events {
		out.Events[id] = o
	}
	return out
}

// rewriteToken applies the event's token prefix rewrite, if any.
func (o Override) rewriteToken(eventID, token string) string {
	if o.TokenPrefix == "" {
		return token
	}
	if rest, ok := strings.CutPrefix(token, eventID+"_"); ok {
		return o.TokenPrefix + rest
	}
	return token
}
