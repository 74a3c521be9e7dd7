package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors
var (
	// ErrValidationFailed indicates the manifest failed validation.
	ErrValidationFailed = errors.New("manifest validation failed")
)

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path points to the problematic field (e.g. "/applications/0/exe").
	Path string

	// Message describes the validation failure.
	Message string
}

// Error implements error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e), strings.Join(msgs, "; "))
}

// Unwrap allows errors.Is(err, ErrValidationFailed).
func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

var validLaunchers = map[string]bool{
	"local": true,
	"slurm": true,
	"pbs":   true,
}

// Validate checks the manifest for structural problems. All issues are
// collected so the user can fix a manifest in one pass.
func (m *Manifest) Validate() error {
	var errs ValidationErrors

	if m.Version != "1.0" {
		errs = append(errs, ValidationError{Path: "/version", Message: fmt.Sprintf("unsupported version %q, expected \"1.0\"", m.Version)})
	}
	if strings.TrimSpace(m.Experiment.Name) == "" {
		errs = append(errs, ValidationError{Path: "/experiment/name", Message: "experiment name is required"})
	}
	if !validLaunchers[m.Experiment.Launcher] {
		errs = append(errs, ValidationError{Path: "/experiment/launcher", Message: fmt.Sprintf("unknown launcher %q, expected local, slurm, or pbs", m.Experiment.Launcher)})
	}
	if len(m.Applications) == 0 && m.FeatureStore == nil {
		errs = append(errs, ValidationError{Path: "/applications", Message: "at least one application or a feature store is required"})
	}

	seen := make(map[string]bool)
	for i, app := range m.Applications {
		prefix := fmt.Sprintf("/applications/%d", i)
		if strings.TrimSpace(app.Name) == "" {
			errs = append(errs, ValidationError{Path: prefix + "/name", Message: "application name is required"})
		} else if seen[app.Name] {
			errs = append(errs, ValidationError{Path: prefix + "/name", Message: fmt.Sprintf("duplicate application name %q", app.Name)})
		}
		seen[app.Name] = true

		if strings.TrimSpace(app.Exe) == "" {
			errs = append(errs, ValidationError{Path: prefix + "/exe", Message: "executable is required"})
		}
		if app.Ensemble != nil && len(app.ExeArgs) > 0 {
			errs = append(errs, ValidationError{Path: prefix + "/exe_args", Message: "exe_args is ignored for ensembles; use ensemble.exe_args"})
		}
	}

	if fs := m.FeatureStore; fs != nil {
		for i, port := range fs.Ports {
			if port <= 0 || port > 65535 {
				errs = append(errs, ValidationError{Path: fmt.Sprintf("/feature_store/ports/%d", i), Message: fmt.Sprintf("invalid port %d", port)})
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
