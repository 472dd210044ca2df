package accessions

import (
	"context"
	"errors"
	"fmt"

	"accessionreport/pkg/sqlquery"
)

// ErrSourceRoleMissing means the linked_agent_role enumeration has no
// "source" value, so donor relationships cannot be joined.
var ErrSourceRoleMissing = errors.New("linked agent source role missing")

// Enumeration names used by the report query.
const (
	EnumLinkedAgentRole    = "linked_agent_role"
	EnumProcessingStatus   = "collection_management_processing_status"
	EnumProcessingPriority = "collection_management_processing_priority"
	SourceRole             = "source"
)

// Composer builds the report query.
type Composer struct {
	Dialect   sqlquery.Dialect
	Enums     EnumLookup
	Enrichers []Enricher
}

// SourceRoleID resolves the enumeration value id of the source role.
func (c Composer) SourceRoleID(ctx context.Context) (int64, error) {
	id, err := c.Enums.ValueID(ctx, EnumLinkedAgentRole, SourceRole)
	if err != nil {
		if errors.Is(err, ErrEnumValueMissing) {
			return 0, fmt.Errorf("%w: %s/%s", ErrSourceRoleMissing, EnumLinkedAgentRole, SourceRole)
		}
		return 0, err
	}
	return id, nil
}

// Base returns the unfiltered query for repoID: accessions with their source
// agent, collection management processing values and user defined fields,
// one row per accession in id order.
func (c Composer) Base(repoID, sourceRoleID int64) *sqlquery.Select {
	sel := sqlquery.From("accession").
		Column("accession.id", "accession_id").
		Column("accession.accession_date", "accession_date").
		Column("accession.identifier", "identifier").
		Column("accession.content_description", "content_description")

	for _, e := range c.Enrichers {
		if p, ok := e.(Projector); ok {
			sel.Column(p.Expression("accession.id"), e.Column())
		}
	}

	sel.Join(sqlquery.LeftJoin, "linked_agents_rlshp", "",
		sqlquery.Expr("linked_agents_rlshp.accession_id = accession.id"),
		sqlquery.Eq("linked_agents_rlshp.role_id", sourceRoleID)).
		Join(sqlquery.LeftJoin, "collection_management", "",
			sqlquery.Expr("collection_management.accession_id = accession.id")).
		Join(sqlquery.InnerJoin, "enumeration", "enum_processing_status",
			sqlquery.Eq("enum_processing_status.name", EnumProcessingStatus)).
		Join(sqlquery.InnerJoin, "enumeration", "enum_processing_priority",
			sqlquery.Eq("enum_processing_priority.name", EnumProcessingPriority)).
		Join(sqlquery.LeftJoin, "enumeration_value", "enumvals_processing_status",
			sqlquery.Expr("enumvals_processing_status.enumeration_id = enum_processing_status.id"),
			sqlquery.Expr("collection_management.processing_status_id = enumvals_processing_status.id")).
		Join(sqlquery.LeftJoin, "enumeration_value", "enumvals_processing_priority",
			sqlquery.Expr("enumvals_processing_priority.enumeration_id = enum_processing_priority.id"),
			sqlquery.Expr("collection_management.processing_priority_id = enumvals_processing_priority.id")).
		Join(sqlquery.LeftJoin, "user_defined", "",
			sqlquery.Expr("user_defined.accession_id = accession.id"))

	return sel.
		Where(sqlquery.Eq("accession.repo_id", repoID)).
		Group("accession.id").
		Order("accession.id")
}

// Compose resolves the source role and returns the filtered query for p.
func (c Composer) Compose(ctx context.Context, p Params) (*sqlquery.Select, error) {
	roleID, err := c.SourceRoleID(ctx)
	if err != nil {
		return nil, err
	}
	return c.Assemble(c.Base(p.RepoID, roleID), p), nil
}
