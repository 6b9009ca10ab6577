package harvest

import "log/slog"

// sitekeySource is one step of the fallback chain. lookup is only called
// when every earlier step came back empty, so expensive steps go last.
type sitekeySource struct {
	name   string
	lookup func() string
}

// resolveSitekey walks sources in order and returns the first non-empty
// key together with the name of the step that produced it.
func resolveSitekey(sources []sitekeySource) (key, source string) {
	for _, s := range sources {
		if s.lookup == nil {
			continue
		}
		if key = s.lookup(); key != "" {
			slog.Info("site key resolved", "method", s.name)
			return key, s.name
		}
		slog.Debug("site key not found", "method", s.name)
	}
	return "", ""
}

// constSource is a step whose value is already known.
func constSource(name, value string) sitekeySource {
	return sitekeySource{name: name, lookup: func() string { return value }}
}
