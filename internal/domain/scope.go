package domain

// Scope is the (profile, project, session?) tag triple attached to every
// memory. Profile and project always resolve to a value; session may be
// unset.
type Scope struct {
	Profile string  `json:"profile"`
	Project string  `json:"project"`
	Session *string `json:"session,omitempty"`
}

const (
	DefaultProfile = "default"
	DefaultProject = "default"
)

type ScopeMode string

const (
	ScopeStrict ScopeMode = "strict"
	ScopeBroad  ScopeMode = "broad"
)

func ValidScopeMode(m string) bool {
	switch ScopeMode(m) {
	case ScopeStrict, ScopeBroad:
		return true
	}
	return false
}

// ScopeInput is a partially-specified scope as received at the API boundary.
type ScopeInput struct {
	Profile string  `json:"profile,omitempty"`
	Project string  `json:"project,omitempty"`
	Session *string `json:"session,omitempty"`
}

// ResolveScope merges an explicit scope over a context scope. A fully
// specified explicit pair wins outright; otherwise explicit fields override
// context fields and defaults fill the rest. Session propagates from
// explicit, then context, then stays unset.
func ResolveScope(explicit, context *ScopeInput) Scope {
	s := Scope{Profile: DefaultProfile, Project: DefaultProject}

	if explicit != nil && explicit.Profile != "" && explicit.Project != "" {
		s.Profile = explicit.Profile
		s.Project = explicit.Project
		s.Session = sessionOf(explicit, context)
		return s
	}

	if context != nil {
		if context.Profile != "" {
			s.Profile = context.Profile
		}
		if context.Project != "" {
			s.Project = context.Project
		}
	}
	if explicit != nil {
		if explicit.Profile != "" {
			s.Profile = explicit.Profile
		}
		if explicit.Project != "" {
			s.Project = explicit.Project
		}
	}
	s.Session = sessionOf(explicit, context)
	return s
}

func sessionOf(explicit, context *ScopeInput) *string {
	if explicit != nil && explicit.Session != nil {
		return explicit.Session
	}
	if context != nil && context.Session != nil {
		return context.Session
	}
	return nil
}

// ScopeMatches reports whether a memory's scope tags pass the filter under
// the given mode. Broad mode admits everything. In strict mode a memory with
// both fields null matches any filter (legacy data); otherwise each non-null
// field must equal the filter's.
func ScopeMatches(profile, project *string, filter Scope, mode ScopeMode) bool {
	if mode == ScopeBroad {
		return true
	}
	if profile == nil && project == nil {
		return true
	}
	if profile != nil && *profile != filter.Profile {
		return false
	}
	if project != nil && *project != filter.Project {
		return false
	}
	return true
}

// DeriveScopeTagsFromContext renders a scope as queryable tags.
func DeriveScopeTagsFromContext(s Scope) []string {
	tags := []string{"profile:" + s.Profile, "project:" + s.Project}
	if s.Session != nil && *s.Session != "" {
		tags = append(tags, "session:"+*s.Session)
	}
	return tags
}
