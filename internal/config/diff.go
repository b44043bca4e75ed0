package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PipelineChanged is true if any fixed text or generation limit changed.
	PipelineChanged bool

	// VoicesChanged is true if the clarification or reply voice changed.
	VoicesChanged bool

	// RestartRequired lists sections that changed but only take effect after
	// a restart (providers, cache, resilience, listen addresses).
	RestartRequired []string
}

// Changed reports whether anything hot-reloadable changed.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.PipelineChanged || d.VoicesChanged
}

// Empty reports whether the server sees no difference at all. Edits to the
// client section or to comments produce an empty diff.
func (d ConfigDiff) Empty() bool {
	return !d.Changed() && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	d.PipelineChanged = old.Pipeline != new.Pipeline
	d.VoicesChanged = old.Voices != new.Voices

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Server.MetricsAddr != new.Server.MetricsAddr ||
		old.Server.MaxUploadBytes != new.Server.MaxUploadBytes ||
		old.Server.TraceSampleRatio != new.Server.TraceSampleRatio {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Cache != new.Cache {
		d.RestartRequired = append(d.RestartRequired, "cache")
	}
	if old.Resilience != new.Resilience {
		d.RestartRequired = append(d.RestartRequired, "resilience")
	}
	return d
}
