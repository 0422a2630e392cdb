// Package dispatch routes named operations to their handlers and records the
// outcome of every run in the task store.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/absmach/fedtree/job"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
	"github.com/absmach/fedtree/pkg/metrics"
	"github.com/absmach/fedtree/pkg/store"
)

const (
	OpServer = "unifed.fedtree:server"
	OpClient = "unifed.fedtree:client"
)

var errDuplicateOperation = errors.New("operation already registered")

type Handler func(ctx context.Context, inv job.Invocation) ([]byte, error)

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(name string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; ok {
		return fmt.Errorf("%s: %w", name, errDuplicateOperation)
	}
	r.handlers[name] = h

	return nil
}

func (r *Registry) Dispatch(ctx context.Context, name string, inv job.Invocation) ([]byte, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, pkgerrors.ErrUnknownOperation)
	}

	return h(ctx, inv)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Capture runs fn and stores exactly one entry for key: the JSON encoded
// result on success, the error record otherwise. The entry is written even
// when ctx is cancelled. The error of fn is returned unchanged, joined with
// any storage failure.
func Capture[T any](ctx context.Context, sink store.Store, key store.Key, fn func(context.Context) (T, error)) (T, error) {
	storeCtx := context.WithoutCancel(ctx)

	res, err := fn(ctx)
	if err == nil {
		var data []byte
		if data, err = json.Marshal(res); err == nil {
			err = sink.SaveResult(storeCtx, key, data)
			observeWrite("result", err)

			return res, err
		}
		err = fmt.Errorf("failed to encode result: %w", err)
	}

	serr := sink.SaveError(storeCtx, key, store.NewErrorRecord(err))
	observeWrite("error", serr)
	if serr != nil {
		return res, errors.Join(err, serr)
	}

	return res, err
}

func observeWrite(kind string, err error) {
	result := "succeeded"
	if err != nil {
		result = "failed"
	}
	metrics.StoreWriteTotal.WithLabelValues(kind, result).Inc()
}
