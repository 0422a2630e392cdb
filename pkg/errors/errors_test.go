package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/absmach/fedtree/pkg/errors"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "config", err: fmt.Errorf("parse: %w", pkgerrors.ErrConfig), want: "ConfigError"},
		{name: "topology", err: pkgerrors.ErrTopology, want: "TopologyError"},
		{name: "dataset", err: fmt.Errorf("lookup: %w", pkgerrors.ErrUnknownDataset), want: "UnknownDatasetError"},
		{name: "channel", err: errors.Join(errors.New("broker gone"), pkgerrors.ErrChannel), want: "ChannelError"},
		{name: "process", err: fmt.Errorf("spawn: %w", pkgerrors.ErrProcess), want: "ProcessError"},
		{name: "other", err: errors.New("boom"), want: "Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pkgerrors.Kind(tt.err); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}
