package metrics

import (
	"context"
	"sync"
)

type errorTagKey struct{}

type errorTag struct {
	mu    sync.Mutex
	value string
}

// TrackErrors returns a context that TagError can label
func TrackErrors(ctx context.Context) context.Context {
	return context.WithValue(ctx, errorTagKey{}, &errorTag{})
}

// TagError labels the failure of the request carried by ctx. The first tag
// wins. Outside TrackErrors it does nothing.
func TagError(ctx context.Context, errType string) {
	tag, ok := ctx.Value(errorTagKey{}).(*errorTag)
	if !ok {
		return
	}
	tag.mu.Lock()
	defer tag.mu.Unlock()
	if tag.value == "" {
		tag.value = errType
	}
}

func taggedError(ctx context.Context) string {
	tag, ok := ctx.Value(errorTagKey{}).(*errorTag)
	if !ok {
		return ""
	}
	tag.mu.Lock()
	defer tag.mu.Unlock()
	return tag.value
}
