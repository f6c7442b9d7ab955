// Throttle drives requests against configured HTTP resources through a
// client-side sliding-window admission throttle.
//
// Every resource class in the configuration file maps to a throttled
// class. Classes that extend another share its window unless they are
// declared as resource roots with their own site.
//
// Usage:
//
//	# Check a configuration and print each class's resolved settings
//	throttle validate --config throttle.yaml
//
//	# Issue 100 collection requests through the sample class
//	throttle run --class sample --count 100 --concurrency 4
//
//	# Keep running and pick up throttle changes from the config file
//	throttle run --class sample --count 0 --watch
//
//	# Summarize the admission journal
//	throttle journal summary --since 1h
package main

func main() {
	Execute()
}
