package participant

import (
	"fmt"

	"github.com/absmach/fedtree/job"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
)

// NoIndex is the index reported for the server.
const NoIndex = -1

type View struct {
	job.Participant
	Index int
}

func (v View) IsFirstClient() bool {
	return v.Role == job.RoleClient && v.Index == 0
}

// Validate checks that there is exactly one server and at least one client.
func Validate(participants []job.Participant) error {
	servers, clients := 0, 0
	for _, p := range participants {
		switch p.Role {
		case job.RoleServer:
			servers++
		case job.RoleClient:
			clients++
		}
	}
	if servers != 1 {
		return fmt.Errorf("there should be exactly one server, not %d: %w", servers, pkgerrors.ErrTopology)
	}
	if clients == 0 {
		return fmt.Errorf("at least one client is required: %w", pkgerrors.ErrTopology)
	}

	return nil
}

// Resolve returns the role and client index of self. A client's index is its
// position minus the number of servers preceding it.
func Resolve(participants []job.Participant, self string) (View, error) {
	if err := Validate(participants); err != nil {
		return View{}, err
	}

	passedServer := 0
	for i, p := range participants {
		if p.Role == job.RoleServer {
			passedServer++
		}
		if p.UserID != self {
			continue
		}
		if p.Role == job.RoleServer {
			return View{Participant: p, Index: NoIndex}, nil
		}

		return View{Participant: p, Index: i - passedServer}, nil
	}

	return View{}, fmt.Errorf("participant %q is not part of the job: %w", self, pkgerrors.ErrTopology)
}

func ResolveAll(participants []job.Participant) ([]View, error) {
	if err := Validate(participants); err != nil {
		return nil, err
	}

	views := make([]View, 0, len(participants))
	passedServer := 0
	for i, p := range participants {
		if p.Role == job.RoleServer {
			passedServer++
			views = append(views, View{Participant: p, Index: NoIndex})

			continue
		}
		views = append(views, View{Participant: p, Index: i - passedServer})
	}

	return views, nil
}

func Server(participants []job.Participant) (job.Participant, error) {
	if err := Validate(participants); err != nil {
		return job.Participant{}, err
	}
	for _, p := range participants {
		if p.Role == job.RoleServer {
			return p, nil
		}
	}

	return job.Participant{}, pkgerrors.ErrTopology
}

func Clients(participants []job.Participant) []job.Participant {
	var clients []job.Participant
	for _, p := range participants {
		if p.Role == job.RoleClient {
			clients = append(clients, p)
		}
	}

	return clients
}

// FirstClient returns the client whose index is 0.
func FirstClient(participants []job.Participant) (job.Participant, error) {
	if err := Validate(participants); err != nil {
		return job.Participant{}, err
	}

	return Clients(participants)[0], nil
}
