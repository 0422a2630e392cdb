package job

import (
	"encoding/json"
	"fmt"

	pkgerrors "github.com/absmach/fedtree/pkg/errors"
)

const (
	Framework      = "fedtree"
	DeploymentMode = "colink"
)

type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

func (r Role) Valid() bool {
	return r == RoleServer || r == RoleClient
}

type Algorithm string

const (
	HistSecAgg  Algorithm = "histsecagg"
	SecureBoost Algorithm = "secureboost"
)

var algorithmAliases = map[string]Algorithm{
	"histsecagg":                   HistSecAgg,
	"histogram-secure-aggregation": HistSecAgg,
	"secureboost":                  SecureBoost,
	"secure-boosting":              SecureBoost,
}

func ParseAlgorithm(s string) (Algorithm, error) {
	a, ok := algorithmAliases[s]
	if !ok {
		return "", fmt.Errorf("unknown algorithm %q: %w", s, pkgerrors.ErrConfig)
	}

	return a, nil
}

type Participant struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

type Deployment struct {
	Mode         string        `json:"mode"`
	Participants []Participant `json:"participants"`
}

type TreeParam struct {
	NTrees       int     `json:"n_trees"`
	MaxDepth     int     `json:"max_depth"`
	MaxNumBin    int     `json:"max_num_bin"`
	Objective    string  `json:"objective"`
	LearningRate float64 `json:"learning_rate"`
}

type Training struct {
	TreeParam TreeParam `json:"tree_param"`
}

// Description is the unified job description shared by every participant.
type Description struct {
	Framework  string     `json:"framework"`
	Deployment Deployment `json:"deployment"`
	Algorithm  Algorithm  `json:"algorithm"`
	Dataset    string     `json:"dataset"`
	Training   Training   `json:"training"`
}

func (d Description) Participants() []Participant {
	return append([]Participant(nil), d.Deployment.Participants...)
}

// Invocation is one call of a role entry point.
type Invocation struct {
	JobID        string
	Param        []byte
	Participants []Participant
	Self         string
}

type rawTreeParam struct {
	NTrees       *int     `json:"n_trees"`
	MaxDepth     *int     `json:"max_depth"`
	MaxNumBin    *int     `json:"max_num_bin"`
	Objective    *string  `json:"objective"`
	LearningRate *float64 `json:"learning_rate"`
}

type rawDescription struct {
	Framework  string     `json:"framework"`
	Deployment Deployment `json:"deployment"`
	Algorithm  string     `json:"algorithm"`
	Dataset    string     `json:"dataset"`
	Training   struct {
		TreeParam *rawTreeParam `json:"tree_param"`
	} `json:"training"`
}

// Parse decodes and validates a JSON job description.
func Parse(data []byte) (Description, error) {
	var raw rawDescription
	if err := json.Unmarshal(data, &raw); err != nil {
		return Description{}, fmt.Errorf("failed to decode job description: %w: %w", pkgerrors.ErrConfig, err)
	}

	if raw.Framework != Framework {
		return Description{}, fmt.Errorf("framework must be %q, got %q: %w", Framework, raw.Framework, pkgerrors.ErrConfig)
	}
	if raw.Deployment.Mode != DeploymentMode {
		return Description{}, fmt.Errorf("deployment mode must be %q, got %q: %w", DeploymentMode, raw.Deployment.Mode, pkgerrors.ErrConfig)
	}

	algorithm, err := ParseAlgorithm(raw.Algorithm)
	if err != nil {
		return Description{}, err
	}

	if raw.Dataset == "" {
		return Description{}, fmt.Errorf("dataset is required: %w", pkgerrors.ErrConfig)
	}

	for i, p := range raw.Deployment.Participants {
		if !p.Role.Valid() {
			return Description{}, fmt.Errorf("participant %d has unknown role %q: %w", i, p.Role, pkgerrors.ErrConfig)
		}
	}

	tp, err := raw.Training.TreeParam.validate()
	if err != nil {
		return Description{}, err
	}

	return Description{
		Framework:  raw.Framework,
		Deployment: Deployment{Mode: raw.Deployment.Mode, Participants: append([]Participant(nil), raw.Deployment.Participants...)},
		Algorithm:  algorithm,
		Dataset:    raw.Dataset,
		Training:   Training{TreeParam: tp},
	}, nil
}

func (tp *rawTreeParam) validate() (TreeParam, error) {
	if tp == nil {
		return TreeParam{}, fmt.Errorf("training.tree_param is required: %w", pkgerrors.ErrConfig)
	}

	var missing []string
	if tp.NTrees == nil {
		missing = append(missing, "n_trees")
	}
	if tp.MaxDepth == nil {
		missing = append(missing, "max_depth")
	}
	if tp.MaxNumBin == nil {
		missing = append(missing, "max_num_bin")
	}
	if tp.Objective == nil {
		missing = append(missing, "objective")
	}
	if tp.LearningRate == nil {
		missing = append(missing, "learning_rate")
	}
	if len(missing) > 0 {
		return TreeParam{}, fmt.Errorf("tree_param is missing %v: %w", missing, pkgerrors.ErrConfig)
	}

	return TreeParam{
		NTrees:       *tp.NTrees,
		MaxDepth:     *tp.MaxDepth,
		MaxNumBin:    *tp.MaxNumBin,
		Objective:    *tp.Objective,
		LearningRate: *tp.LearningRate,
	}, nil
}
