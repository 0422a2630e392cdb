package api

import "github.com/absmach/fedtree/pkg/store"

type resultRes struct {
	store.Record
	Log string `json:"log,omitempty"`
}

type operationsRes struct {
	Operations []string `json:"operations"`
}

type healthRes struct {
	Status string `json:"status"`
}
