package job_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/absmach/fedtree/job"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
)

const validJob = `{
	"framework": "fedtree",
	"deployment": {
		"mode": "colink",
		"participants": [
			{"user_id": "s", "role": "server"},
			{"user_id": "c0", "role": "client"},
			{"user_id": "c1", "role": "client"}
		]
	},
	"algorithm": "secureboost",
	"dataset": "d1",
	"training": {
		"tree_param": {"n_trees": 10, "max_depth": 6, "max_num_bin": 32, "objective": "binary:logistic", "learning_rate": 0.1}
	}
}`

func TestParse(t *testing.T) {
	desc, err := job.Parse([]byte(validJob))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if desc.Algorithm != job.SecureBoost {
		t.Errorf("expected algorithm %q, got %q", job.SecureBoost, desc.Algorithm)
	}
	if len(desc.Participants()) != 3 {
		t.Errorf("expected 3 participants, got %d", len(desc.Participants()))
	}
	if desc.Training.TreeParam.LearningRate != 0.1 {
		t.Errorf("expected learning rate 0.1, got %v", desc.Training.TreeParam.LearningRate)
	}
}

func TestParseAlgorithmAliases(t *testing.T) {
	tests := []struct {
		in   string
		want job.Algorithm
	}{
		{in: "histsecagg", want: job.HistSecAgg},
		{in: "histogram-secure-aggregation", want: job.HistSecAgg},
		{in: "secureboost", want: job.SecureBoost},
		{in: "secure-boosting", want: job.SecureBoost},
	}

	for _, tt := range tests {
		got, err := job.ParseAlgorithm(tt.in)
		if err != nil {
			t.Fatalf("ParseAlgorithm(%q): unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		errText string
	}{
		{
			name:    "wrong framework",
			mutate:  func(s string) string { return strings.Replace(s, `"fedtree"`, `"fate"`, 1) },
			errText: "framework",
		},
		{
			name:    "wrong deployment mode",
			mutate:  func(s string) string { return strings.Replace(s, `"colink"`, `"grpc"`, 1) },
			errText: "deployment mode",
		},
		{
			name:    "unknown algorithm",
			mutate:  func(s string) string { return strings.Replace(s, `"secureboost"`, `"fedavg"`, 1) },
			errText: "unknown algorithm",
		},
		{
			name:    "missing tree param",
			mutate:  func(s string) string { return strings.Replace(s, `"max_depth": 6, `, ``, 1) },
			errText: "max_depth",
		},
		{
			name:    "unknown role",
			mutate:  func(s string) string { return strings.Replace(s, `"role": "server"`, `"role": "observer"`, 1) },
			errText: "unknown role",
		},
		{
			name:    "empty dataset",
			mutate:  func(s string) string { return strings.Replace(s, `"dataset": "d1"`, `"dataset": ""`, 1) },
			errText: "dataset is required",
		},
		{
			name:    "missing dataset",
			mutate:  func(s string) string { return strings.Replace(s, `"dataset": "d1",`, ``, 1) },
			errText: "dataset is required",
		},
		{
			name:    "malformed json",
			mutate:  func(s string) string { return s[:len(s)-2] },
			errText: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := job.Parse([]byte(tt.mutate(validJob)))
			if !errors.Is(err, pkgerrors.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("expected error to mention %q, got %q", tt.errText, err.Error())
			}
		})
	}
}
