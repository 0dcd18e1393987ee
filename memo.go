package tandem

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tandem-cache/tandem/internal/keyutil"
)

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

type memoOptions struct {
	name   string
	prefix string
	ttl    time.Duration
	keyFn  func(args []any) (string, error)
}

type MemoOption func(*memoOptions)

// WithTTL overrides the cache default for entries this wrapper writes.
func WithTTL(ttl time.Duration) MemoOption {
	return func(o *memoOptions) { o.ttl = ttl }
}

// WithName replaces the runtime-derived function name inside cache keys.
// Set it when wrapping closures, or when keys must survive a rename.
func WithName(name string) MemoOption {
	return func(o *memoOptions) { o.name = name }
}

// WithKeyPrefix namespaces this wrapper's keys ahead of the function name.
func WithKeyPrefix(prefix string) MemoOption {
	return func(o *memoOptions) { o.prefix = prefix }
}

// WithKeyFunc replaces argument fingerprinting wholesale. args excludes a
// leading context. An error from fn makes that call bypass the cache.
func WithKeyFunc(fn func(args []any) (string, error)) MemoOption {
	return func(o *memoOptions) { o.keyFn = fn }
}

// Cached returns a drop-in replacement for fn that serves repeated calls with
// equal arguments from c. fn must have shape func(...) T or
// func(...) (T, error); anything else panics, as does a non-function.
//
// Keys combine the function name (see WithName) with a fingerprint of the
// arguments, so distinct argument lists never share an entry. On a hit fn is
// not invoked. Concurrent same-key calls are coalesced into one execution.
// A non-nil error from fn is returned as-is and never cached. Cache failures
// of any kind degrade to calling fn - they are never surfaced by the wrapper.
//
// A first parameter of type context.Context makes the wrapper context-aware:
// the caller's context flows through cache reads, and a caller whose context
// ends while waiting on a coalesced execution gets its context error back
// while the execution finishes detached.
func Cached[F any](c Cache, fn F, opts ...MemoOption) F {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		panic(fmt.Sprintf("tandem: Cached wraps functions, got %s", ft.Kind()))
	}
	valType, hasErr, ok := resultShape(ft)
	if !ok {
		panic(fmt.Sprintf("tandem: Cached needs func(...) T or func(...) (T, error), got %s", ft))
	}

	o := memoOptions{ttl: UseDefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		o.name = funcName(fv)
	}

	w := &wrapper{
		cache:    c,
		fv:       fv,
		valType:  valType,
		hasErr:   hasErr,
		ctxAware: ft.NumIn() > 0 && ft.In(0).Kind() == reflect.Interface && ft.In(0).Implements(ctxType),
		variadic: ft.IsVariadic(),
		opts:     o,
	}
	return reflect.MakeFunc(ft, w.call).Interface().(F)
}

type wrapper struct {
	cache    Cache
	fv       reflect.Value
	valType  reflect.Type
	hasErr   bool
	ctxAware bool
	variadic bool
	opts     memoOptions
	group    singleflight.Group
}

func (w *wrapper) call(args []reflect.Value) []reflect.Value {
	ctx := context.Background()
	fpArgs := args
	if w.ctxAware {
		ctx = args[0].Interface().(context.Context)
		fpArgs = args[1:]
	}

	key, ok := w.key(fpArgs)
	if !ok {
		// Unfingerprintable arguments (channels, funcs) bypass the cache.
		return w.invoke(args)
	}

	destPtr := reflect.New(w.valType)
	if hit, err := w.cache.Get(ctx, key, destPtr.Interface()); err == nil && hit {
		return w.results(destPtr.Elem(), nil)
	}

	if w.ctxAware && w.hasErr {
		ch := w.group.DoChan(key, func() (any, error) {
			return w.load(context.WithoutCancel(ctx), key, args)
		})
		select {
		case <-ctx.Done():
			return w.results(reflect.Zero(w.valType), ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				return w.results(reflect.Zero(w.valType), res.Err)
			}
			return w.results(w.value(res.Val), nil)
		}
	}

	loadCtx := ctx
	if w.ctxAware {
		// Without an error result there is no way to report cancellation, so
		// the shared execution must not die with whichever caller leads it.
		loadCtx = context.WithoutCancel(ctx)
	}
	val, err, _ := w.group.Do(key, func() (any, error) {
		return w.load(loadCtx, key, args)
	})
	if err != nil {
		return w.results(reflect.Zero(w.valType), err)
	}
	return w.results(w.value(val), nil)
}

// load invokes fn and best-effort caches a successful result. For
// context-aware functions the leading argument is replaced by ctx, detaching
// the shared execution from any one caller.
func (w *wrapper) load(ctx context.Context, key string, args []reflect.Value) (any, error) {
	if w.ctxAware {
		args = append([]reflect.Value{reflect.ValueOf(ctx)}, args[1:]...)
	}
	outs := w.invoke(args)
	if w.hasErr {
		if errv := outs[1]; !errv.IsNil() {
			return nil, errv.Interface().(error) // never cached
		}
	}
	val := outs[0].Interface()
	_ = w.cache.Set(ctx, key, val, w.opts.ttl) // swallowed; the result still returns
	return val, nil
}

func (w *wrapper) invoke(args []reflect.Value) []reflect.Value {
	if w.variadic {
		return w.fv.CallSlice(args)
	}
	return w.fv.Call(args)
}

func (w *wrapper) key(args []reflect.Value) (string, bool) {
	raw := make([]any, len(args))
	for i, a := range args {
		raw[i] = a.Interface()
	}
	if w.opts.keyFn != nil {
		k, err := w.opts.keyFn(raw)
		if err != nil {
			return "", false
		}
		return keyutil.Join(w.opts.prefix, k), true
	}
	fp, err := keyutil.Fingerprint(raw)
	if err != nil {
		return "", false
	}
	return keyutil.Join(w.opts.prefix, w.opts.name, fp), true
}

func (w *wrapper) value(v any) reflect.Value {
	if v == nil {
		return reflect.Zero(w.valType)
	}
	return reflect.ValueOf(v)
}

func (w *wrapper) results(val reflect.Value, err error) []reflect.Value {
	if !w.hasErr {
		return []reflect.Value{val}
	}
	errv := reflect.Zero(errType)
	if err != nil {
		errv = reflect.ValueOf(err)
	}
	return []reflect.Value{val, errv}
}

func resultShape(ft reflect.Type) (valType reflect.Type, hasErr, ok bool) {
	switch ft.NumOut() {
	case 1:
		if ft.Out(0) == errType {
			return nil, false, false
		}
		return ft.Out(0), false, true
	case 2:
		if ft.Out(1) != errType {
			return nil, false, false
		}
		return ft.Out(0), true, true
	default:
		return nil, false, false
	}
}

// funcName reduces runtime.FuncForPC's full path to "pkg.Func", dropping the
// "-fm" suffix method values carry.
func funcName(fv reflect.Value) string {
	name := "func"
	if f := runtime.FuncForPC(fv.Pointer()); f != nil {
		name = f.Name()
	}
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}
