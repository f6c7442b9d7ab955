// Package config provides configuration management for the throttle tool.
//
// Configuration is read from a YAML file, completed with defaults and
// validated before use:
//
//	cfg, err := config.LoadConfig("throttle.yaml")
//
// # Environment Variable Overrides
//
// LoadConfigWithEnvOverrides additionally applies THROTTLE_SECTION_FIELD
// variables for the telemetry and journal sections, for example:
//
//   - THROTTLE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//   - THROTTLE_JOURNAL_PATH overrides journal.path
//
// Throttle settings of a class are never read from the environment. They
// only come from the file so that the configured window is the one that is
// reviewed.
//
// # Classes
//
// Each entry under classes declares a throttled resource class:
//
//	classes:
//	  - name: sample
//	    site: http://example.com
//	    path: /widgets.json
//	    throttle:
//	      window_duration: 10s
//	      request_limit: 45
//	      retry_delay: 15s
//	  - name: sub_sample
//	    extends: sample
//	    path: /sprockets.json
//
// A class without extends, or with resource_root set, owns its connection
// and must name a site. A class that extends another one shares the
// parent's connection and throttle window. Only resource roots may declare
// a throttle block, because admission happens where the connection is
// acquired.
//
// # Hot Reload
//
// FileWatcher watches the configuration file with fsnotify and invokes a
// reload callback after a debounce interval.
package config
