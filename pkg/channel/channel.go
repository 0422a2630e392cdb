// Package channel carries named variables between the participants of one job.
package channel

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/absmach/fedtree/job"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
	"github.com/fxamacker/cbor/v2"
)

// Channel is scoped to a single job and to the local participant. Each published
// variable is delivered at most once to each recipient.
type Channel interface {
	Publish(ctx context.Context, name string, value []byte, to []job.Participant) error
	Receive(ctx context.Context, name string, from job.Participant) ([]byte, error)
}

// Factory opens the channel of a job for the local participant.
type Factory func(ctx context.Context, jobID, self string) (Channel, error)

type variablePayload struct {
	Sender string `json:"sender"`
	Name   string `json:"name"`
	Value  []byte `json:"value"`
}

func EncodeInt(v int) ([]byte, error) {
	data, err := cbor.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %d: %w", v, err)
	}

	return data, nil
}

func DecodeInt(data []byte) (int, error) {
	var v int
	if err := cbor.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("failed to decode integer variable: %w: %w", pkgerrors.ErrChannel, err)
	}

	return v, nil
}

// segment makes an identifier safe to embed in a topic or key.
func segment(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func wrap(op, name string, err error) error {
	return fmt.Errorf("failed to %s variable %q: %w: %w", op, name, pkgerrors.ErrChannel, err)
}
