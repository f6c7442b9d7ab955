package throttle

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Registry holds throttled classes keyed by name. Limiters created by
// Configure share the registry's clock, logger, metrics, tracer and
// observers.
type Registry struct {
	settings settings

	mu      sync.RWMutex
	classes map[string]*Class
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return &Registry{
		settings: s,
		classes:  make(map[string]*Class),
	}
}

// Class is a throttled type. Its limiter is either inherited by reference
// from its parent at definition time or installed by Configure.
type Class struct {
	name         string
	parent       *Class
	resourceRoot bool
	registry     *Registry

	limiter atomic.Pointer[Limiter]
}

// ClassOption configures a class at definition time.
type ClassOption func(c *Class)

// Extends makes the class derive from parent. The new class shares the
// parent's current limiter until it calls Configure itself.
func Extends(parent *Class) ClassOption {
	return func(c *Class) {
		c.parent = parent
	}
}

// AsResourceRoot declares that the class owns its own connection, so
// acquisitions through it are the point where admission happens.
func AsResourceRoot() ClassOption {
	return func(c *Class) {
		c.resourceRoot = true
	}
}

// Define registers a new class. Inherited settings are resolved here, once,
// so accessors on the new class reflect the parent's values immediately.
func (r *Registry) Define(name string, opts ...ClassOption) (*Class, error) {
	c := &Class{name: name, registry: r}
	for _, opt := range opts {
		opt(c)
	}

	if name == "" {
		return nil, fmt.Errorf("class name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[name]; exists {
		return nil, fmt.Errorf("define %q: %w", name, ErrClassExists)
	}

	if c.parent != nil {
		if c.parent.registry != r || r.classes[c.parent.name] != c.parent {
			return nil, fmt.Errorf("define %q: parent %q: %w", name, c.parent.name, ErrUnknownClass)
		}
		if inherited := c.parent.limiter.Load(); inherited != nil {
			c.limiter.Store(inherited)
		}
	} else {
		c.resourceRoot = true
	}

	r.classes[name] = c
	r.order = append(r.order, name)
	return c, nil
}

// Lookup returns the class registered under name.
func (r *Registry) Lookup(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// Classes returns all classes in definition order.
func (r *Registry) Classes() []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Class, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.classes[name])
	}
	return out
}

// Names returns the sorted class names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configure validates opts and gives the class a fresh limiter with an empty
// history. Classes that inherited the previous limiter keep it. Calling
// Configure again resets the window.
func (c *Class) Configure(opts Options) error {
	cfg, err := ParseOptions(opts)
	if err != nil {
		return fmt.Errorf("configure %q: %w", c.name, err)
	}
	c.install(cfg)
	return nil
}

// ConfigureWith installs an already validated configuration.
func (c *Class) ConfigureWith(cfg Config) {
	c.install(cfg)
}

func (c *Class) install(cfg Config) {
	s := c.registry.settings
	c.limiter.Store(newLimiter(c.name, cfg, s))

	s.logger.Info("throttle configured",
		"class", c.name,
		"window_duration", cfg.WindowDuration,
		"request_limit", cfg.RequestLimit,
		"retry_delay", cfg.RetryDelay,
		"engaged", cfg.Engaged(),
	)
}

// Rebind makes the class share its parent's current limiter again, as if it
// had just been defined. It reports false for classes without a parent.
// Callers use it after reconfiguring a parent at runtime so that children
// which never configured themselves follow the new window.
func (c *Class) Rebind() bool {
	if c.parent == nil {
		return false
	}
	c.limiter.Store(c.parent.limiter.Load())
	return true
}

// Name returns the class name.
func (c *Class) Name() string {
	return c.name
}

// Parent returns the class this one extends, or nil.
func (c *Class) Parent() *Class {
	return c.parent
}

// IsResourceRoot reports whether acquisitions through this class are admitted.
func (c *Class) IsResourceRoot() bool {
	return c.resourceRoot
}

// Limiter returns the limiter currently bound to the class, or nil when
// neither the class nor its ancestors were configured before definition.
func (c *Class) Limiter() *Limiter {
	return c.limiter.Load()
}

// Owner returns the name of the class whose Configure call created the
// bound limiter, or "" when unconfigured.
func (c *Class) Owner() string {
	if l := c.limiter.Load(); l != nil {
		return l.Name()
	}
	return ""
}

// SharesWith reports whether both classes draw down the same window.
func (c *Class) SharesWith(other *Class) bool {
	l := c.limiter.Load()
	return l != nil && l == other.limiter.Load()
}

// Engaged reports whether the class is actively rate limited.
func (c *Class) Engaged() bool {
	l := c.limiter.Load()
	return l != nil && l.config.Engaged()
}

// WindowDuration returns the bound window length, or zero.
func (c *Class) WindowDuration() time.Duration {
	if l := c.limiter.Load(); l != nil {
		return l.WindowDuration()
	}
	return 0
}

// RequestLimit returns the bound request limit, or zero.
func (c *Class) RequestLimit() int {
	if l := c.limiter.Load(); l != nil {
		return l.RequestLimit()
	}
	return 0
}

// RetryDelay returns the bound retry delay, or zero.
func (c *Class) RetryDelay() time.Duration {
	if l := c.limiter.Load(); l != nil {
		return l.RetryDelay()
	}
	return 0
}

// HistorySize returns the size of the bound history, or zero.
func (c *Class) HistorySize() int {
	if l := c.limiter.Load(); l != nil {
		return l.HistorySize()
	}
	return 0
}

// Admit blocks until the class's limiter admits a request. Unconfigured
// classes admit immediately.
func (c *Class) Admit(ctx context.Context) error {
	l := c.limiter.Load()
	if l == nil {
		return nil
	}
	return l.Admit(ctx)
}
