package throttle

import (
	"context"
	"fmt"
)

// EntryPoint acquires a connection. refresh asks for a new connection
// instead of a cached one.
type EntryPoint[T any] func(ctx context.Context, refresh bool) (T, error)

// Connector is implemented by resources that funnel all network access
// through a single connection-acquisition method.
type Connector[T any] interface {
	Connection(ctx context.Context, refresh bool) (T, error)
}

type admittedKey struct{}

// admittedBy reports whether l already admitted this acquisition higher in
// the call chain.
func admittedBy(ctx context.Context, l *Limiter) bool {
	marked, _ := ctx.Value(admittedKey{}).([]*Limiter)
	for _, m := range marked {
		if m == l {
			return true
		}
	}
	return false
}

func markAdmitted(ctx context.Context, l *Limiter) context.Context {
	marked, _ := ctx.Value(admittedKey{}).([]*Limiter)
	next := make([]*Limiter, len(marked), len(marked)+1)
	copy(next, marked)
	return context.WithValue(ctx, admittedKey{}, append(next, l))
}

// Intercept wraps next so that acquisitions through a resource root class
// are admitted by the class's limiter first. A limiter admits a call chain
// at most once, so nested roots sharing a window count one acquisition while
// roots with separate windows each admit it. Wrapped entry points of
// non-root classes call next directly. Wrapping has no side effects and
// errors returned by next are passed through unchanged.
func Intercept[T any](class *Class, next EntryPoint[T]) (EntryPoint[T], error) {
	if class == nil {
		return nil, &UnsupportedTypeError{Type: fmt.Sprintf("%T", next), Reason: "no class to throttle against"}
	}
	if next == nil {
		return nil, &UnsupportedTypeError{Type: class.Name(), Reason: "no connection entry point"}
	}

	if !class.IsResourceRoot() {
		return next, nil
	}

	return func(ctx context.Context, refresh bool) (T, error) {
		if l := class.Limiter(); l != nil && !admittedBy(ctx, l) {
			if err := l.Admit(ctx); err != nil {
				var zero T
				return zero, err
			}
			ctx = markAdmitted(ctx, l)
		}
		return next(ctx, refresh)
	}, nil
}

// Attach wraps target's Connection method. It fails with
// *UnsupportedTypeError when target does not implement Connector[T].
func Attach[T any](class *Class, target any) (EntryPoint[T], error) {
	connector, ok := target.(Connector[T])
	if !ok {
		var zero T
		return nil, &UnsupportedTypeError{
			Type:   fmt.Sprintf("%T", target),
			Reason: fmt.Sprintf("no Connection(context.Context, bool) (%T, error) method", zero),
		}
	}
	return Intercept[T](class, connector.Connection)
}
