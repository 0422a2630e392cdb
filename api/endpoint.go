package api

import (
	"context"
	"errors"

	pkgerrors "github.com/absmach/fedtree/pkg/errors"
	"github.com/absmach/fedtree/pkg/store"
	"github.com/go-kit/kit/endpoint"
)

func MakeGetResultEndpoint(st store.Store) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(resultReq)
		if err := req.validate(); err != nil {
			return nil, err
		}

		key := store.Key{JobID: req.JobID, Role: req.Role}
		rec, err := st.Get(ctx, key)
		if err != nil {
			return nil, err
		}

		log, err := st.GetLog(ctx, key)
		if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, err
		}

		return resultRes{Record: rec, Log: log}, nil
	}
}

func MakeListOperationsEndpoint(ops []string) endpoint.Endpoint {
	return func(_ context.Context, _ interface{}) (interface{}, error) {
		return operationsRes{Operations: ops}, nil
	}
}
