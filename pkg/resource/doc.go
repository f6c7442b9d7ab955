// Package resource provides REST resources whose network access is funnelled
// through one connection-acquisition entry point, and attaches the
// sliding-window throttle to that entry point.
//
// A resource root owns a Connection bound to a site. A derived resource
// shares its parent's connection and acquires it through the parent, so
// every request made through a family of resources is admitted exactly
// once, against the root class's window:
//
//	reg := throttle.NewRegistry()
//	sampleClass, _ := reg.Define("sample")
//	_ = sampleClass.Configure(throttle.Options{
//		throttle.OptionWindowDuration: 10 * time.Second,
//		throttle.OptionRequestLimit:   45,
//	})
//	conn, _ := resource.NewConnection("http://example.com")
//	sample, _ := resource.New(sampleClass, conn, "/widgets.json")
//
//	subClass, _ := reg.Define("sub_sample", throttle.Extends(sampleClass))
//	sub, _ := sample.Derive(subClass, "/sprockets.json")
//
//	var sprockets []map[string]any
//	err := sub.FindAll(ctx, &sprockets) // admitted against "sample"
//
// Catalog builds registries and resources from configuration and applies
// reloaded configuration in place.
package resource
