package participant_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/absmach/fedtree/job"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
	"github.com/absmach/fedtree/pkg/participant"
)

func server(id string) job.Participant { return job.Participant{UserID: id, Role: job.RoleServer} }
func client(id string) job.Participant { return job.Participant{UserID: id, Role: job.RoleClient} }

func TestResolve(t *testing.T) {
	participants := []job.Participant{client("a"), server("s"), client("b"), client("c")}

	tests := []struct {
		self  string
		role  job.Role
		index int
	}{
		{self: "a", role: job.RoleClient, index: 0},
		{self: "s", role: job.RoleServer, index: participant.NoIndex},
		{self: "b", role: job.RoleClient, index: 1},
		{self: "c", role: job.RoleClient, index: 2},
	}

	for _, tt := range tests {
		v, err := participant.Resolve(participants, tt.self)
		if err != nil {
			t.Fatalf("Resolve(%q): unexpected error: %v", tt.self, err)
		}
		if v.Role != tt.role || v.Index != tt.index {
			t.Errorf("Resolve(%q) = (%s, %d), want (%s, %d)", tt.self, v.Role, v.Index, tt.role, tt.index)
		}
	}

	first, err := participant.FirstClient(participants)
	if err != nil {
		t.Fatalf("FirstClient: unexpected error: %v", err)
	}
	if first.UserID != "a" {
		t.Errorf("FirstClient = %q, want a", first.UserID)
	}
}

func TestResolveAllIndicesAreContiguous(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for k := 1; k <= 12; k++ {
		participants := []job.Participant{server("s")}
		for i := range k {
			participants = append(participants, client(string(rune('a'+i))))
		}
		rng.Shuffle(len(participants), func(i, j int) {
			participants[i], participants[j] = participants[j], participants[i]
		})

		views, err := participant.ResolveAll(participants)
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}

		seen := make(map[int]bool)
		for _, v := range views {
			if v.Role != job.RoleClient {
				continue
			}
			if v.Index < 0 || v.Index >= k {
				t.Fatalf("k=%d: index %d out of range", k, v.Index)
			}
			if seen[v.Index] {
				t.Fatalf("k=%d: duplicate index %d", k, v.Index)
			}
			seen[v.Index] = true

			self, err := participant.Resolve(participants, v.UserID)
			if err != nil || self.Index != v.Index {
				t.Fatalf("k=%d: Resolve(%q) = %d, %v; ResolveAll = %d", k, v.UserID, self.Index, err, v.Index)
			}
		}
		if len(seen) != k {
			t.Fatalf("k=%d: got %d distinct indices", k, len(seen))
		}
	}
}

func TestResolveTopologyErrors(t *testing.T) {
	tests := []struct {
		name         string
		participants []job.Participant
		self         string
	}{
		{name: "no server", participants: []job.Participant{client("a"), client("b")}, self: "a"},
		{name: "two servers", participants: []job.Participant{server("s1"), server("s2"), client("a")}, self: "a"},
		{name: "no client", participants: []job.Participant{server("s")}, self: "s"},
		{name: "unknown self", participants: []job.Participant{server("s"), client("a")}, self: "z"},
		{name: "empty", participants: nil, self: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := participant.Resolve(tt.participants, tt.self); !errors.Is(err, pkgerrors.ErrTopology) {
				t.Errorf("expected ErrTopology, got %v", err)
			}
		})
	}
}
