package accessions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"accessionreport/pkg/datasetapi"
)

// Parameter names accepted by the report.
const (
	ParamFrom               = "from"
	ParamTo                 = "to"
	ParamProcessingStatus   = "processing_status"
	ParamProcessingPriority = "processing_priority"
	ParamClassification     = "classification"
	ParamDonor              = "donor"
)

// BoundLayout is the wall-clock form date bounds are bound as.
const BoundLayout = "2006-01-02 15:04:05"

// DefaultFrom is the lower date bound used when none is supplied.
func DefaultFrom() time.Time {
	return time.Date(1800, time.January, 1, 0, 0, 0, 0, time.Local)
}

// DonorParam is the structured form of the donor parameter.
type DonorParam struct {
	Ref string `json:"ref" yaml:"ref"`
}

// Params is the normalised input of a single report run.
type Params struct {
	RepoID             int64
	From               time.Time
	To                 time.Time
	ProcessingStatus   FilterSpec
	ProcessingPriority FilterSpec
	Classification     FilterSpec
	Donor              *DonorReference
	// DonorUnmatched is set when a donor reference was supplied but matched
	// no known agent kind. The donor dimension is then unconstrained.
	DonorUnmatched bool
}

// ValidationError reports a parameter that could not be normalised.
type ValidationError struct {
	Parameter string
	Value     any
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Parameter, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ParameterErrors lets the template host report the failure as bad input.
func (e *ValidationError) ParameterErrors() []datasetapi.ParameterError {
	return []datasetapi.ParameterError{{Name: e.Parameter, Message: e.Err.Error()}}
}

// Resolver turns raw parameters into Params.
type Resolver struct {
	Now   func() time.Time
	IDs   IDResolver
	Rules []DonorRule
}

func (r Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve normalises raw for repoID. Missing date bounds take their defaults;
// blank optional filters are unconstrained.
func (r Resolver) Resolve(ctx context.Context, raw map[string]any, repoID int64) (Params, error) {
	p := Params{RepoID: repoID}

	from, ok, err := timeParam(raw, ParamFrom)
	if err != nil {
		return Params{}, err
	}
	if !ok {
		from = DefaultFrom()
	}
	to, ok, err := timeParam(raw, ParamTo)
	if err != nil {
		return Params{}, err
	}
	if !ok {
		to = r.now()
	}
	// Bounds are bound as local wall-clock text, so zoned input is converted
	// before formatting.
	p.From = from.In(time.Local).Truncate(time.Second)
	p.To = to.In(time.Local).Truncate(time.Second)

	for _, f := range []struct {
		name  string
		parse func(string) FilterSpec
		dst   *FilterSpec
	}{
		{ParamProcessingStatus, ParseStatusFilter, &p.ProcessingStatus},
		{ParamProcessingPriority, ParseStatusFilter, &p.ProcessingPriority},
		{ParamClassification, ParseClassificationFilter, &p.Classification},
	} {
		s, err := stringParam(raw, f.name)
		if err != nil {
			return Params{}, err
		}
		*f.dst = f.parse(s)
	}

	ref, err := donorRef(raw)
	if err != nil {
		return Params{}, err
	}
	if ref == "" {
		return p, nil
	}
	rules := r.Rules
	if rules == nil {
		rules = DonorRules
	}
	kind, ok := ClassifyDonor(ref, rules)
	if !ok {
		p.DonorUnmatched = true
		return p, nil
	}
	ids := r.IDs
	if ids == nil {
		ids = URIResolver{}
	}
	id, err := ids.ResolveID(ctx, kind, ref)
	if err != nil {
		return Params{}, &ValidationError{Parameter: ParamDonor, Value: ref, Err: err}
	}
	p.Donor = &DonorReference{Kind: kind, ID: id, Ref: ref}
	return p, nil
}

func lookup(raw map[string]any, name string) (any, bool) {
	v, ok := raw[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func timeParam(raw map[string]any, name string) (time.Time, bool, error) {
	v, ok := lookup(raw, name)
	if !ok {
		return time.Time{}, false, nil
	}
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false, nil
		}
		return t, true, nil
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false, nil
		}
		return *t, true, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return time.Time{}, false, nil
		}
		parsed, err := datasetapi.ParseDateTime(t)
		if err != nil {
			return time.Time{}, false, &ValidationError{Parameter: name, Value: t, Err: err}
		}
		return parsed, true, nil
	default:
		return time.Time{}, false, &ValidationError{Parameter: name, Value: v, Err: fmt.Errorf("expected a date/time, got %T", v)}
	}
}

func stringParam(raw map[string]any, name string) (string, error) {
	v, ok := lookup(raw, name)
	if !ok {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", &ValidationError{Parameter: name, Value: v, Err: fmt.Errorf("expected a string, got %T", v)}
	}
}

func donorRef(raw map[string]any) (string, error) {
	v, ok := lookup(raw, ParamDonor)
	if !ok {
		return "", nil
	}
	var ref string
	switch d := v.(type) {
	case string:
		ref = d
	case DonorParam:
		ref = d.Ref
	case *DonorParam:
		if d != nil {
			ref = d.Ref
		}
	case map[string]any:
		r, isString := d["ref"].(string)
		if !isString && d["ref"] != nil {
			return "", &ValidationError{Parameter: ParamDonor, Value: v, Err: fmt.Errorf("ref must be a string")}
		}
		ref = r
	case map[string]string:
		ref = d["ref"]
	default:
		return "", &ValidationError{Parameter: ParamDonor, Value: v, Err: fmt.Errorf("expected an object with a ref, got %T", v)}
	}
	return strings.TrimSpace(ref), nil
}
