/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sync"
)

// ErrServiceNotFound is returned when resolving a type nobody registered.
var ErrServiceNotFound = errors.New("service not registered")

// Lifetime says how long a resolved service lives.
type Lifetime int

const (
	// Singleton services are created once per Services.
	Singleton Lifetime = iota
	// Scoped services are created once per Scope, usually one request.
	Scoped
)

func (l Lifetime) String() string {
	if l == Scoped {
		return "scoped"
	}
	return "singleton"
}

type registration struct {
	lifetime Lifetime
	factory  func(*Scope) (interface{}, error)

	once  sync.Once
	value interface{}
	err   error
}

// Services is a small service registry keyed by Go type. A later
// registration of the same type replaces the earlier one.
type Services struct {
	mu      sync.RWMutex
	entries map[reflect.Type]*registration
	root    *Scope
}

func NewServices() *Services {
	s := &Services{entries: make(map[reflect.Type]*registration)}
	s.root = s.NewScope()
	return s
}

// Root returns the scope used outside requests.
func (s *Services) Root() *Scope { return s.root }

func (s *Services) register(typ reflect.Type, lifetime Lifetime, factory func(*Scope) (interface{}, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[typ] = &registration{lifetime: lifetime, factory: factory}
}

func (s *Services) lookup(typ reflect.Type) (*registration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.entries[typ]
	return r, ok
}

// Has reports whether T is registered.
func Has[T any](s *Services) bool {
	_, ok := s.lookup(typeOf[T]())
	return ok
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func wrap[T any](factory func(*Scope) (T, error)) func(*Scope) (interface{}, error) {
	return func(sc *Scope) (interface{}, error) {
		return factory(sc)
	}
}

// AddSingleton registers a factory for T called at most once.
func AddSingleton[T any](s *Services, factory func(*Scope) (T, error)) {
	s.register(typeOf[T](), Singleton, wrap(factory))
}

// AddInstance registers v as the singleton T.
func AddInstance[T any](s *Services, v T) {
	AddSingleton(s, func(*Scope) (T, error) { return v, nil })
}

// AddScoped registers a factory for T called once per scope.
func AddScoped[T any](s *Services, factory func(*Scope) (T, error)) {
	s.register(typeOf[T](), Scoped, wrap(factory))
}

// Scope caches scoped services. Values implementing io.Closer are closed
// with the scope.
type Scope struct {
	services *Services

	mu     sync.Mutex
	values map[reflect.Type]interface{}
	order  []reflect.Type
}

func (s *Services) NewScope() *Scope {
	return &Scope{services: s, values: make(map[reflect.Type]interface{})}
}

func (sc *Scope) Services() *Services { return sc.services }

func (sc *Scope) resolve(typ reflect.Type) (interface{}, error) {
	reg, ok := sc.services.lookup(typ)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, typ)
	}
	if reg.lifetime == Singleton {
		reg.once.Do(func() {
			reg.value, reg.err = reg.factory(sc.services.root)
		})
		return reg.value, reg.err
	}

	sc.mu.Lock()
	v, ok := sc.values[typ]
	sc.mu.Unlock()
	if ok {
		return v, nil
	}

	// factories may resolve other services, so they run unlocked
	v, err := reg.factory(sc)
	if err != nil {
		return nil, err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if prev, ok := sc.values[typ]; ok {
		return prev, nil
	}
	sc.values[typ] = v
	sc.order = append(sc.order, typ)
	return v, nil
}

// Close closes scoped values in reverse creation order.
func (sc *Scope) Close() error {
	sc.mu.Lock()
	values, order := sc.values, sc.order
	sc.values = make(map[reflect.Type]interface{})
	sc.order = nil
	sc.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if c, ok := values[order[i]].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Resolve returns the T registered in the services of sc.
func Resolve[T any](sc *Scope) (T, error) {
	var zero T
	v, err := sc.resolve(typeOf[T]())
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("service %s resolved to %T", typeOf[T](), v)
	}
	return t, nil
}

// MustResolve is Resolve that panics on error.
func MustResolve[T any](sc *Scope) T {
	v, err := Resolve[T](sc)
	if err != nil {
		panic(err)
	}
	return v
}

type scopeKey struct{}

func WithScope(ctx context.Context, sc *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, sc)
}

// ScopeFromContext returns the request scope, or nil outside a request.
func ScopeFromContext(ctx context.Context) *Scope {
	sc, _ := ctx.Value(scopeKey{}).(*Scope)
	return sc
}

// FromRequest resolves T in the scope of r.
func FromRequest[T any](r *http.Request) (T, error) {
	sc := ScopeFromContext(r.Context())
	if sc == nil {
		var zero T
		return zero, fmt.Errorf("no service scope on request")
	}
	return Resolve[T](sc)
}

// Middleware opens a scope per request and closes it when the handler
// returns.
func (s *Services) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := s.NewScope()
		defer func() { _ = sc.Close() }()
		next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), sc)))
	})
}
