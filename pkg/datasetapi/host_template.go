package datasetapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// HostTemplate encapsulates a plugin-provided Template together with
// host-specific runtime state (bound runner, plugin name, validation helpers).
type HostTemplate struct {
	plugin  string
	tpl     Template
	runtime Runner
}

// NewHostTemplate constructs a HostTemplate for the given plugin/template pair
// after performing structural validation. The returned template has no bound
// runner; callers must invoke Bind with the runtime environment before running.
func NewHostTemplate(plugin string, tpl Template) (HostTemplate, error) {
	if err := validateTemplate(tpl); err != nil {
		return HostTemplate{}, err
	}
	return HostTemplate{plugin: strings.TrimSpace(plugin), tpl: cloneTemplate(tpl)}, nil
}

// Plugin returns the plugin identifier associated with the template.
func (h HostTemplate) Plugin() string { return h.plugin }

// Template returns a copy of the underlying template metadata.
func (h HostTemplate) Template() Template { return cloneTemplate(h.tpl) }

// Descriptor produces a TemplateDescriptor snapshot including plugin metadata
// and computed slug.
func (h HostTemplate) Descriptor() TemplateDescriptor {
	return TemplateDescriptor{
		Plugin:        h.plugin,
		Key:           h.tpl.Key,
		Version:       h.tpl.Version,
		Title:         h.tpl.Title,
		Description:   h.tpl.Description,
		Parameters:    cloneParameters(h.tpl.Parameters),
		Columns:       cloneColumns(h.tpl.Columns),
		Metadata:      cloneMetadata(h.tpl.Metadata),
		OutputFormats: cloneFormats(h.tpl.OutputFormats),
		Slug:          SlugFor(h.plugin, h.tpl.Key, h.tpl.Version),
	}
}

// Slug returns the canonical identifier for the template (plugin/key@version).
func (h HostTemplate) Slug() string {
	return SlugFor(h.plugin, h.tpl.Key, h.tpl.Version)
}

// SupportsFormat reports whether the template declares the requested format.
func (h HostTemplate) SupportsFormat(format Format) bool {
	for _, candidate := range h.tpl.OutputFormats {
		if candidate == format {
			return true
		}
	}
	return false
}

// ValidateParameters validates supplied parameters against the template
// definition, returning normalized values plus any validation errors.
func (h HostTemplate) ValidateParameters(params map[string]any) (map[string]any, []ParameterError) {
	return validateParameters(h.tpl.Parameters, params)
}

// Bind attaches a runtime runner to the host template using the provided
// environment.
func (h *HostTemplate) Bind(env Environment) error {
	if h == nil {
		return errors.New("datasetapi: host template nil")
	}
	if h.tpl.Binder == nil {
		return errors.New("datasetapi: template binder missing")
	}
	runner, err := h.tpl.Binder(env)
	if err != nil {
		return err
	}
	if runner == nil {
		return errors.New("datasetapi: template binder returned nil runner")
	}
	h.runtime = runner
	return nil
}

// Wrap replaces the bound runner with wrap(runner). Hosts use it to attach
// instrumentation after binding.
func (h *HostTemplate) Wrap(wrap func(Runner) Runner) error {
	if h == nil || h.runtime == nil {
		return errors.New("datasetapi: template not bound")
	}
	h.runtime = wrap(h.runtime)
	return nil
}

// Run executes the bound template after validating parameters. Runner errors
// implementing ParameterErrorer are returned as parameter errors.
func (h HostTemplate) Run(ctx context.Context, params map[string]any, scope Scope, format Format) (RunResult, []ParameterError, error) {
	if h.runtime == nil {
		return RunResult{}, nil, errors.New("datasetapi: template not bound")
	}
	cleaned, errs := validateParameters(h.tpl.Parameters, params)
	if len(errs) > 0 {
		return RunResult{}, errs, nil
	}
	result, err := h.runtime(ctx, RunRequest{
		Template:   h.Descriptor(),
		Parameters: cleaned,
		Scope:      cloneScope(scope),
	})
	if err != nil {
		var perr ParameterErrorer
		if errors.As(err, &perr) {
			return RunResult{}, perr.ParameterErrors(), nil
		}
		return RunResult{}, nil, err
	}
	if len(result.Schema) == 0 {
		result.Schema = cloneColumns(h.tpl.Columns)
	}
	result.GeneratedAt = result.GeneratedAt.UTC()
	result.Format = format
	return result, nil, nil
}

// Ensure HostTemplate satisfies TemplateRuntime.
var _ TemplateRuntime = (*HostTemplate)(nil)

// SortTemplateDescriptors sorts the slice in-place using plugin/key/version for
// deterministic ordering.
func SortTemplateDescriptors(descriptors []TemplateDescriptor) {
	sort.Slice(descriptors, func(i, j int) bool {
		a := descriptors[i]
		b := descriptors[j]
		if a.Plugin == b.Plugin {
			if a.Key == b.Key {
				return a.Version < b.Version
			}
			return a.Key < b.Key
		}
		return a.Plugin < b.Plugin
	})
}

// SlugFor renders plugin/key@version, omitting the plugin when empty.
func SlugFor(plugin, key, version string) string {
	keyPart := strings.TrimSpace(key)
	versionPart := strings.TrimSpace(version)
	if plugin = strings.TrimSpace(plugin); plugin == "" {
		return fmt.Sprintf("%s@%s", keyPart, versionPart)
	}
	return fmt.Sprintf("%s/%s@%s", plugin, keyPart, versionPart)
}

func validateTemplate(tpl Template) error {
	if strings.TrimSpace(tpl.Key) == "" {
		return errors.New("datasetapi: dataset template key required")
	}
	if strings.TrimSpace(tpl.Version) == "" {
		return errors.New("datasetapi: dataset template version required")
	}
	if strings.TrimSpace(tpl.Title) == "" {
		return errors.New("datasetapi: dataset template title required")
	}
	if len(tpl.Columns) == 0 {
		return errors.New("datasetapi: dataset template requires at least one column")
	}
	if len(tpl.OutputFormats) == 0 {
		return errors.New("datasetapi: dataset template must declare output formats")
	}
	if tpl.Binder == nil {
		return errors.New("datasetapi: dataset template binder required")
	}
	seen := make(map[string]struct{}, len(tpl.Parameters))
	for _, p := range tpl.Parameters {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if key == "" {
			return errors.New("datasetapi: parameter name required")
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("datasetapi: duplicate parameter %q", p.Name)
		}
		seen[key] = struct{}{}
		switch p.Type {
		case TypeString, TypeInteger, TypeBoolean, TypeDateTime, TypeReference:
		default:
			return fmt.Errorf("datasetapi: unsupported parameter type %q", p.Type)
		}
	}
	return nil
}

func validateParameters(definitions []Parameter, supplied map[string]any) (map[string]any, []ParameterError) {
	cleaned := make(map[string]any)
	var errs []ParameterError
	provided := make(map[string]string, len(supplied))
	for k := range supplied {
		provided[strings.ToLower(k)] = k
	}
	for _, param := range definitions {
		key := strings.ToLower(param.Name)
		val, ok := findParamValue(param.Name, supplied)
		delete(provided, key)
		if !ok || isBlank(val) {
			if param.Required {
				errs = append(errs, ParameterError{Name: param.Name, Message: "required parameter missing"})
			}
			continue
		}
		coerced, err := coerceParameter(param, val)
		if err != nil {
			errs = append(errs, ParameterError{Name: param.Name, Message: err.Error()})
			continue
		}
		cleaned[param.Name] = coerced
	}
	for _, original := range provided {
		errs = append(errs, ParameterError{Name: original, Message: "parameter not declared"})
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Name < errs[j].Name })
	}
	return cleaned, errs
}

// isBlank treats nil and whitespace-only strings as absent.
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func findParamValue(name string, supplied map[string]any) (any, bool) {
	if supplied == nil {
		return nil, false
	}
	if val, ok := supplied[name]; ok {
		return val, true
	}
	lower := strings.ToLower(name)
	for k, v := range supplied {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

func coerceParameter(param Parameter, raw any) (any, error) {
	switch param.Type {
	case TypeString:
		var val string
		switch v := raw.(type) {
		case string:
			val = v
		case fmt.Stringer:
			val = v.String()
		default:
			return nil, fmt.Errorf("parameter %s expects string", param.Name)
		}
		if len(param.Enum) > 0 && !containsString(param.Enum, val) {
			return nil, enumError(param.Enum)
		}
		return val, nil
	case TypeInteger:
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v != float64(int(v)) {
				return nil, fmt.Errorf("parameter %s expects integer", param.Name)
			}
			return int(v), nil
		case string:
			parsed, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("parameter %s expects integer", param.Name)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("parameter %s expects integer", param.Name)
		}
	case TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("parameter %s expects boolean", param.Name)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("parameter %s expects boolean", param.Name)
		}
	case TypeDateTime:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			if _, err := ParseDateTime(v); err != nil {
				return nil, fmt.Errorf("parameter %s expects a date/time: %v", param.Name, err)
			}
			return strings.TrimSpace(v), nil
		default:
			return nil, fmt.Errorf("parameter %s expects a date/time", param.Name)
		}
	case TypeReference:
		switch v := raw.(type) {
		case string:
			return map[string]any{"ref": strings.TrimSpace(v)}, nil
		case map[string]any:
			ref, ok := v["ref"].(string)
			if !ok || strings.TrimSpace(ref) == "" {
				return nil, fmt.Errorf("parameter %s expects an object with a ref", param.Name)
			}
			return map[string]any{"ref": strings.TrimSpace(ref)}, nil
		case map[string]string:
			ref := strings.TrimSpace(v["ref"])
			if ref == "" {
				return nil, fmt.Errorf("parameter %s expects an object with a ref", param.Name)
			}
			return map[string]any{"ref": ref}, nil
		default:
			return nil, fmt.Errorf("parameter %s expects an object with a ref", param.Name)
		}
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", param.Type)
	}
}

func containsString(list []string, target string) bool {
	for _, candidate := range list {
		if candidate == target {
			return true
		}
	}
	return false
}

func enumError(options []string) error {
	return fmt.Errorf("value must be one of: %s", strings.Join(options, ", "))
}

func cloneTemplate(t Template) Template {
	cloned := t
	cloned.Parameters = cloneParameters(t.Parameters)
	cloned.Columns = cloneColumns(t.Columns)
	cloned.Metadata = cloneMetadata(t.Metadata)
	cloned.OutputFormats = cloneFormats(t.OutputFormats)
	return cloned
}

func cloneParameters(params []Parameter) []Parameter {
	if len(params) == 0 {
		return nil
	}
	cloned := make([]Parameter, len(params))
	copy(cloned, params)
	for i := range cloned {
		if len(cloned[i].Enum) > 0 {
			cloned[i].Enum = append([]string(nil), cloned[i].Enum...)
		}
	}
	return cloned
}

func cloneColumns(columns []Column) []Column {
	if len(columns) == 0 {
		return nil
	}
	return append([]Column(nil), columns...)
}

func cloneFormats(formats []Format) []Format {
	if len(formats) == 0 {
		return nil
	}
	return append([]Format(nil), formats...)
}

func cloneMetadata(metadata Metadata) Metadata {
	cloned := metadata
	if len(metadata.Tags) > 0 {
		cloned.Tags = append([]string(nil), metadata.Tags...)
	}
	if len(metadata.Annotations) > 0 {
		cloned.Annotations = make(map[string]string, len(metadata.Annotations))
		for k, v := range metadata.Annotations {
			cloned.Annotations[k] = v
		}
	}
	return cloned
}

func cloneScope(scope Scope) Scope {
	cloned := scope
	if len(scope.Roles) > 0 {
		cloned.Roles = append([]string(nil), scope.Roles...)
	}
	return cloned
}
