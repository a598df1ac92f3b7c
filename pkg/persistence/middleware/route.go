package middleware

import (
	"context"
	"sort"
	"strings"

	"github.com/aretw0/tapestry/pkg/ports"
)

type suffixRouter struct {
	next   ports.DocumentStore
	remote ports.DocumentStore
	suffix string
}

// RouteSuffix sends every key ending in suffix to remote and the rest to the
// wrapped store. It places autosave slots in a shared store while documents
// stay local.
func RouteSuffix(suffix string, remote ports.DocumentStore) Middleware {
	return func(next ports.DocumentStore) ports.DocumentStore {
		return &suffixRouter{next: next, remote: remote, suffix: suffix}
	}
}

func (r *suffixRouter) pick(key string) ports.DocumentStore {
	if strings.HasSuffix(key, r.suffix) {
		return r.remote
	}
	return r.next
}

func (r *suffixRouter) Write(ctx context.Context, key string, section ports.Section, data []byte) error {
	return r.pick(key).Write(ctx, key, section, data)
}

func (r *suffixRouter) Read(ctx context.Context, key string, section ports.Section) ([]byte, error) {
	return r.pick(key).Read(ctx, key, section)
}

func (r *suffixRouter) Delete(ctx context.Context, key string) error {
	return r.pick(key).Delete(ctx, key)
}

// List merges the keys of both stores. Keys in the wrong store for their
// suffix are left out.
func (r *suffixRouter) List(ctx context.Context) ([]string, error) {
	local, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := r.remote.List(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(local)+len(remote))
	for _, k := range local {
		if !strings.HasSuffix(k, r.suffix) {
			keys = append(keys, k)
		}
	}
	for _, k := range remote {
		if strings.HasSuffix(k, r.suffix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
