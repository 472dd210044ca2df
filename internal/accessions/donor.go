package accessions

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// DonorKind is the agent type of a donor.
type DonorKind string

const (
	DonorPerson          DonorKind = "person"
	DonorFamily          DonorKind = "family"
	DonorCorporateEntity DonorKind = "corporate_entity"
)

// Column is the linked_agents_rlshp foreign key for the kind.
func (k DonorKind) Column() string {
	return "agent_" + string(k) + "_id"
}

// ModelType is the agent model name, e.g. agent_person.
func (k DonorKind) ModelType() string {
	return "agent_" + string(k)
}

// Valid reports whether k is one of the known kinds.
func (k DonorKind) Valid() bool {
	switch k {
	case DonorPerson, DonorFamily, DonorCorporateEntity:
		return true
	}
	return false
}

// DonorReference identifies the donor agent filtered on.
type DonorReference struct {
	Kind DonorKind
	ID   int64
	Ref  string
}

// DonorRule maps a reference path segment onto a kind.
type DonorRule struct {
	Segment string
	Kind    DonorKind
}

// DonorRules is the ordered classifier. The first rule whose segment occurs in
// the reference wins.
var DonorRules = []DonorRule{
	{Segment: "people", Kind: DonorPerson},
	{Segment: "families", Kind: DonorFamily},
	{Segment: "corporate_entities", Kind: DonorCorporateEntity},
}

// ClassifyDonor returns the kind for ref using rules, or false when no rule
// matches.
func ClassifyDonor(ref string, rules []DonorRule) (DonorKind, bool) {
	for _, rule := range rules {
		if rule.Segment != "" && strings.Contains(ref, rule.Segment) {
			return rule.Kind, true
		}
	}
	return "", false
}

// IDResolver maps a classified donor reference onto the agent's numeric id.
type IDResolver interface {
	ResolveID(ctx context.Context, kind DonorKind, ref string) (int64, error)
}

// IDResolverFunc adapts a function to IDResolver.
type IDResolverFunc func(ctx context.Context, kind DonorKind, ref string) (int64, error)

func (f IDResolverFunc) ResolveID(ctx context.Context, kind DonorKind, ref string) (int64, error) {
	return f(ctx, kind, ref)
}

// URIResolver reads the id from agent URIs such as /agents/people/5.
type URIResolver struct{}

// segmentFor returns the URI collection segment for kind.
func segmentFor(kind DonorKind) string {
	for _, rule := range DonorRules {
		if rule.Kind == kind {
			return rule.Segment
		}
	}
	return ""
}

func (URIResolver) ResolveID(_ context.Context, kind DonorKind, ref string) (int64, error) {
	segment := segmentFor(kind)
	if segment == "" {
		return 0, fmt.Errorf("unknown donor kind %q", kind)
	}
	parts := strings.Split(strings.Trim(ref, "/"), "/")
	for i, part := range parts {
		if part != segment || i+1 >= len(parts) {
			continue
		}
		id, err := strconv.ParseInt(parts[i+1], 10, 64)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("invalid %s id %q", kind, parts[i+1])
		}
		return id, nil
	}
	return 0, fmt.Errorf("reference %q has no %s id", ref, segment)
}
