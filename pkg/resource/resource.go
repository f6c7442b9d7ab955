package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"mercator-hq/throttle/pkg/throttle"
)

// Resource is a REST collection whose requests all acquire a Connection
// through one intercepted entry point.
type Resource struct {
	class  *throttle.Class
	path   string
	parent *Resource

	// conn is set on resource roots only. Derived resources reach it
	// through parent.
	conn *Connection

	connect throttle.EntryPoint[*Connection]
}

// New creates a resource root for class. The class must be a resource
// root, since it is where admission happens.
func New(class *throttle.Class, conn *Connection, path string) (*Resource, error) {
	if class == nil {
		return nil, fmt.Errorf("resource class is nil")
	}
	if !class.IsResourceRoot() {
		return nil, fmt.Errorf("resource %q: %w", class.Name(), ErrNotRoot)
	}
	if conn == nil {
		return nil, fmt.Errorf("resource %q: connection is nil", class.Name())
	}

	r := &Resource{class: class, path: path, conn: conn}
	return r, r.attach()
}

// Derive creates a resource that shares r's connection. class must extend
// r.Class(), directly or through intermediate classes, and must not be a
// resource root; use New with its own Connection for that.
func (r *Resource) Derive(class *throttle.Class, path string) (*Resource, error) {
	if class == nil {
		return nil, fmt.Errorf("resource class is nil")
	}
	if class.IsResourceRoot() {
		return nil, fmt.Errorf("resource %q is a resource root and needs its own connection", class.Name())
	}
	if !extends(class, r.class) {
		return nil, fmt.Errorf("resource %q from %q: %w", class.Name(), r.class.Name(), ErrNotDescendant)
	}

	child := &Resource{class: class, path: path, parent: r}
	return child, child.attach()
}

func extends(class, ancestor *throttle.Class) bool {
	for p := class.Parent(); p != nil; p = p.Parent() {
		if p == ancestor {
			return true
		}
	}
	return false
}

func (r *Resource) attach() error {
	connect, err := throttle.Intercept[*Connection](r.class, r.acquire)
	if err != nil {
		return err
	}
	r.connect = connect
	return nil
}

// acquire is the unthrottled entry point. Derived resources cascade to
// their parent's intercepted entry point.
func (r *Resource) acquire(ctx context.Context, refresh bool) (*Connection, error) {
	if r.parent != nil {
		return r.parent.connect(ctx, refresh)
	}
	if refresh {
		r.conn.Reset()
	}
	return r.conn, nil
}

// Connection acquires the connection, waiting for admission first when r
// belongs to a throttled resource root.
func (r *Resource) Connection(ctx context.Context, refresh bool) (*Connection, error) {
	return r.connect(ctx, refresh)
}

// Class returns the throttled class of the resource.
func (r *Resource) Class() *throttle.Class {
	return r.class
}

// Name returns the class name.
func (r *Resource) Name() string {
	return r.class.Name()
}

// Path returns the collection path.
func (r *Resource) Path() string {
	return r.path
}

// Parent returns the resource r was derived from, or nil for roots.
func (r *Resource) Parent() *Resource {
	return r.parent
}

// Root returns the resource that owns the connection.
func (r *Resource) Root() *Resource {
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Site returns the site of the owning connection.
func (r *Resource) Site() string {
	return r.Root().conn.Site()
}

// FindAll fetches the collection and decodes it into v.
func (r *Resource) FindAll(ctx context.Context, v any) error {
	return r.get(ctx, r.path, v)
}

// Find fetches one element of the collection and decodes it into v. For a
// collection path "/widgets.json" and id 7 it requests "/widgets/7.json".
func (r *Resource) Find(ctx context.Context, id string, v any) error {
	return r.get(ctx, elementPath(r.path, id), v)
}

func (r *Resource) get(ctx context.Context, path string, v any) error {
	conn, err := r.Connection(ctx, false)
	if err != nil {
		return err
	}

	body, err := conn.Get(ctx, path)
	if err != nil {
		return err
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func elementPath(collection, id string) string {
	ext := ""
	if i := strings.LastIndex(collection, "."); i > strings.LastIndex(collection, "/") {
		ext = collection[i:]
		collection = collection[:i]
	}
	return strings.TrimSuffix(collection, "/") + "/" + url.PathEscape(id) + ext
}
