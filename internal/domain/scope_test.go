package domain

import (
	"testing"
)

func strPtr(s string) *string { return &s }

func TestResolveScopeDefaults(t *testing.T) {
	s := ResolveScope(nil, nil)
	if s.Profile != "default" || s.Project != "default" {
		t.Errorf("defaults = %s/%s, want default/default", s.Profile, s.Project)
	}
	if s.Session != nil {
		t.Errorf("session = %v, want unset", s.Session)
	}
}

func TestResolveScopeExplicitPairWins(t *testing.T) {
	explicit := &ScopeInput{Profile: "alice", Project: "atlas"}
	context := &ScopeInput{Profile: "bob", Project: "borealis", Session: strPtr("ctx-sess")}

	s := ResolveScope(explicit, context)
	if s.Profile != "alice" || s.Project != "atlas" {
		t.Errorf("resolved = %s/%s, want alice/atlas", s.Profile, s.Project)
	}
	// Session still propagates from context when explicit has none.
	if s.Session == nil || *s.Session != "ctx-sess" {
		t.Errorf("session = %v, want ctx-sess", s.Session)
	}
}

func TestResolveScopeMergesPartialExplicit(t *testing.T) {
	explicit := &ScopeInput{Profile: "alice"}
	context := &ScopeInput{Project: "borealis"}

	s := ResolveScope(explicit, context)
	if s.Profile != "alice" {
		t.Errorf("profile = %s, want alice", s.Profile)
	}
	if s.Project != "borealis" {
		t.Errorf("project = %s, want borealis (from context)", s.Project)
	}
}

func TestResolveScopeSessionPrecedence(t *testing.T) {
	explicit := &ScopeInput{Profile: "a", Project: "b", Session: strPtr("explicit-sess")}
	context := &ScopeInput{Session: strPtr("ctx-sess")}

	s := ResolveScope(explicit, context)
	if s.Session == nil || *s.Session != "explicit-sess" {
		t.Errorf("session = %v, want explicit-sess", s.Session)
	}
}

func TestScopeMatchesBroad(t *testing.T) {
	filter := Scope{Profile: "alice", Project: "A"}
	if !ScopeMatches(strPtr("bob"), strPtr("Z"), filter, ScopeBroad) {
		t.Error("broad mode must match everything")
	}
}

func TestScopeMatchesStrict(t *testing.T) {
	filter := Scope{Profile: "alice", Project: "A"}

	cases := []struct {
		name    string
		profile *string
		project *string
		want    bool
	}{
		{"exact match", strPtr("alice"), strPtr("A"), true},
		{"legacy null-null matches", nil, nil, true},
		{"null profile, matching project", nil, strPtr("A"), true},
		{"matching profile, null project", strPtr("alice"), nil, true},
		{"wrong project", strPtr("alice"), strPtr("B"), false},
		{"wrong profile", strPtr("bob"), strPtr("A"), false},
		{"both wrong", strPtr("bob"), strPtr("B"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScopeMatches(tc.profile, tc.project, filter, ScopeStrict); got != tc.want {
				t.Errorf("ScopeMatches = %v, want %v", got, tc.want)
			}
		})
	}
}

// Cross-project bleed: a memory disagreeing with the filter on both
// populated fields never matches in strict mode.
func TestScopeMatchesNoCrossProjectBleed(t *testing.T) {
	filter := Scope{Profile: "alice", Project: "A"}
	profiles := []string{"bob", "carol", "dave"}
	projects := []string{"B", "C", "D"}

	for _, profile := range profiles {
		for _, project := range projects {
			if ScopeMatches(strPtr(profile), strPtr(project), filter, ScopeStrict) {
				t.Errorf("bleed: %s/%s matched filter %s/%s", profile, project, filter.Profile, filter.Project)
			}
		}
	}
}

func TestDeriveScopeTagsFromContext(t *testing.T) {
	s := Scope{Profile: "alice", Project: "atlas", Session: strPtr("s9")}
	tags := DeriveScopeTagsFromContext(s)
	want := []string{"profile:alice", "project:atlas", "session:s9"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, tags[i], want[i])
		}
	}

	noSession := DeriveScopeTagsFromContext(Scope{Profile: "p", Project: "q"})
	if len(noSession) != 2 {
		t.Errorf("sessionless tags = %v, want 2 entries", noSession)
	}
}

func TestScopeFunctionsDeterministic(t *testing.T) {
	explicit := &ScopeInput{Profile: "alice", Session: strPtr("s")}
	context := &ScopeInput{Project: "atlas"}

	first := ResolveScope(explicit, context)
	firstTags := DeriveScopeTagsFromContext(first)
	for i := 0; i < 50; i++ {
		again := ResolveScope(explicit, context)
		if again.Profile != first.Profile || again.Project != first.Project {
			t.Fatalf("ResolveScope unstable on iteration %d", i)
		}
		tags := DeriveScopeTagsFromContext(again)
		for j := range firstTags {
			if tags[j] != firstTags[j] {
				t.Fatalf("DeriveScopeTagsFromContext unstable on iteration %d", i)
			}
		}
	}
}

func TestCanonicalEntityName(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"  Alice  ", "alice"},
		{"Acme   Corp", "acme corp"},
		{"ALICE", "alice"},
		{"3.50", "3.5"},
		{"42", "42"},
		{"42.0", "42"},
	}
	for _, tc := range cases {
		if got := CanonicalEntityName(tc.raw); got != tc.want {
			t.Errorf("CanonicalEntityName(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
