package resource

import (
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/throttle/pkg/config"
	"mercator-hq/throttle/pkg/throttle"
)

// Catalog owns the throttle registry and the resources declared in
// configuration, keyed by class name.
type Catalog struct {
	registry *throttle.Registry
	logger   *slog.Logger
	connOpts []ConnectionOption

	mu        sync.RWMutex
	resources map[string]*Resource
	applied   map[string]config.ClassConfig
	order     []string
}

// ApplyResult lists what Apply changed.
type ApplyResult struct {
	// Reconfigured classes got a fresh window.
	Reconfigured []string

	// Rebound classes follow a reconfigured ancestor's new window.
	Rebound []string

	// Added classes were not known before.
	Added []string

	// Skipped classes changed structurally or were removed. Those changes
	// need a restart.
	Skipped []string
}

// Changed reports whether Apply changed anything.
func (r ApplyResult) Changed() bool {
	return len(r.Reconfigured)+len(r.Rebound)+len(r.Added) > 0
}

// NewCatalog defines a class and creates a resource for every entry of
// classes, in order. Parents are configured before their children are
// defined so that children inherit the parent's window. Connection options
// apply to the connection of every resource root.
func NewCatalog(classes []config.ClassConfig, registry *throttle.Registry, logger *slog.Logger, connOpts ...ConnectionOption) (*Catalog, error) {
	if registry == nil {
		registry = throttle.NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Catalog{
		registry:  registry,
		logger:    logger,
		connOpts:  connOpts,
		resources: make(map[string]*Resource, len(classes)),
		applied:   make(map[string]config.ClassConfig, len(classes)),
	}

	for _, cc := range classes {
		if err := c.add(cc); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// add defines, configures and builds one class. Caller must hold c.mu or
// own c exclusively.
func (c *Catalog) add(cc config.ClassConfig) error {
	var (
		opts   []throttle.ClassOption
		parent *Resource
	)
	if cc.Extends != "" {
		p, ok := c.resources[cc.Extends]
		if !ok {
			return fmt.Errorf("class %q: parent %q: %w", cc.Name, cc.Extends, throttle.ErrUnknownClass)
		}
		parent = p
		opts = append(opts, throttle.Extends(p.Class()))
	}
	if cc.ResourceRoot {
		opts = append(opts, throttle.AsResourceRoot())
	}

	class, err := c.registry.Define(cc.Name, opts...)
	if err != nil {
		return err
	}

	if cc.Throttle != nil {
		if err := class.Configure(cc.Options()); err != nil {
			return err
		}
	}

	var res *Resource
	if class.IsResourceRoot() {
		conn, err := NewConnection(cc.Site, c.connOpts...)
		if err != nil {
			return fmt.Errorf("class %q: %w", cc.Name, err)
		}
		res, err = New(class, conn, cc.Path)
		if err != nil {
			return err
		}
	} else {
		res, err = parent.Derive(class, cc.Path)
		if err != nil {
			return err
		}
	}

	c.resources[cc.Name] = res
	c.applied[cc.Name] = cc
	c.order = append(c.order, cc.Name)
	return nil
}

// Registry returns the throttle registry.
func (c *Catalog) Registry() *throttle.Registry {
	return c.registry
}

// Resource returns the resource of the named class.
func (c *Catalog) Resource(name string) (*Resource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.resources[name]
	return r, ok
}

// Resources returns all resources in definition order.
func (c *Catalog) Resources() []*Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Resource, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.resources[name])
	}
	return out
}

// Apply brings the catalog in line with reloaded class configuration.
// Classes whose throttle block changed get a fresh window, and descendants
// that inherit it are rebound to the new window. New classes are added.
// Structural changes (extends, site, path, resource_root) and removed
// classes are logged and skipped. A window is never reset when its
// settings did not change.
func (c *Catalog) Apply(classes []config.ClassConfig) (ApplyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result ApplyResult
	reset := make(map[string]bool)
	seen := make(map[string]bool, len(classes))

	for _, cc := range classes {
		seen[cc.Name] = true

		old, known := c.applied[cc.Name]
		if !known {
			if err := c.add(cc); err != nil {
				return result, fmt.Errorf("add class %q: %w", cc.Name, err)
			}
			result.Added = append(result.Added, cc.Name)
			continue
		}

		if structuralChange(old, cc) {
			c.logger.Warn("class changed structurally, restart to apply", "class", cc.Name)
			result.Skipped = append(result.Skipped, cc.Name)
			continue
		}

		class := c.resources[cc.Name].Class()
		changed, err := throttleChanged(old, cc)
		if err != nil {
			return result, fmt.Errorf("class %q: %w", cc.Name, err)
		}

		switch {
		case changed && cc.Throttle != nil:
			if err := class.Configure(cc.Options()); err != nil {
				return result, err
			}
			reset[cc.Name] = true
			result.Reconfigured = append(result.Reconfigured, cc.Name)
		case changed && cc.Extends == "":
			// A top-level class dropped its throttle block.
			class.ConfigureWith(throttle.Config{})
			reset[cc.Name] = true
			result.Reconfigured = append(result.Reconfigured, cc.Name)
		case cc.Throttle == nil && cc.Extends != "" && (changed || reset[cc.Extends]):
			class.Rebind()
			reset[cc.Name] = true
			result.Rebound = append(result.Rebound, cc.Name)
		}

		c.applied[cc.Name] = cc
	}

	for _, name := range c.order {
		if !seen[name] {
			c.logger.Warn("class removed from configuration, restart to drop it", "class", name)
			result.Skipped = append(result.Skipped, name)
		}
	}

	c.logger.Info("configuration applied",
		"reconfigured", len(result.Reconfigured),
		"rebound", len(result.Rebound),
		"added", len(result.Added),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func structuralChange(old, cur config.ClassConfig) bool {
	return old.Extends != cur.Extends ||
		old.Site != cur.Site ||
		old.Path != cur.Path ||
		old.ResourceRoot != cur.ResourceRoot
}

// throttleChanged compares the parsed throttle blocks so that equivalent
// spellings such as 10 and "10s" do not reset a window.
func throttleChanged(old, cur config.ClassConfig) (bool, error) {
	if (old.Throttle == nil) != (cur.Throttle == nil) {
		return true, nil
	}
	if cur.Throttle == nil {
		return false, nil
	}

	before, err := throttle.ParseOptions(old.Options())
	if err != nil {
		return false, err
	}
	after, err := throttle.ParseOptions(cur.Options())
	if err != nil {
		return false, err
	}
	return before != after, nil
}
