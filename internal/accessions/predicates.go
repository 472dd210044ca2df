package accessions

import (
	"accessionreport/pkg/sqlquery"
)

var classificationSlots = []string{
	"user_defined.enum_1_id",
	"user_defined.enum_2_id",
	"user_defined.enum_3_id",
}

// Predicates returns the filters for p in fixed order: date range, processing
// status, processing priority, classification, donor. Unconstrained
// dimensions contribute nothing.
func (c Composer) Predicates(p Params) []sqlquery.Predicate {
	preds := []sqlquery.Predicate{c.dateRange(p)}

	if pred, ok := p.ProcessingStatus.Predicate("enumvals_processing_status.value"); ok {
		preds = append(preds, pred)
	}
	if pred, ok := p.ProcessingPriority.Predicate("enumvals_processing_priority.value"); ok {
		preds = append(preds, pred)
	}
	if pred, ok := c.classification(p.Classification); ok {
		preds = append(preds, pred)
	}
	if p.Donor != nil {
		preds = append(preds, sqlquery.Eq("linked_agents_rlshp."+p.Donor.Kind.Column(), p.Donor.ID))
	}
	return preds
}

// Assemble appends the filters for p to sel.
func (c Composer) Assemble(sel *sqlquery.Select, p Params) *sqlquery.Select {
	return sel.Where(c.Predicates(p)...)
}

// dateRange is inclusive at both ends and compares at second precision.
func (c Composer) dateRange(p Params) sqlquery.Predicate {
	from, to := p.From.Format(BoundLayout), p.To.Format(BoundLayout)
	switch c.Dialect {
	case sqlquery.Postgres:
		return sqlquery.Expr("CAST(accession.accession_date AS timestamp) BETWEEN CAST(? AS timestamp) AND CAST(? AS timestamp)", from, to)
	default:
		return sqlquery.Between("datetime(accession.accession_date)", from, to)
	}
}

// classification matches any of the three user defined enumeration slots.
// An unset classification requires all three to be empty.
func (c Composer) classification(f FilterSpec) (sqlquery.Predicate, bool) {
	if !f.Active() {
		return sqlquery.Predicate{}, false
	}
	preds := make([]sqlquery.Predicate, 0, len(classificationSlots))
	for _, slot := range classificationSlots {
		column := slot
		if f.State == Equals && c.Enums != nil {
			column = c.Enums.ValueExpr(slot)
		}
		pred, _ := f.Predicate(column)
		preds = append(preds, pred)
	}
	if f.State == MustBeUnset {
		return sqlquery.And(preds...), true
	}
	return sqlquery.Or(preds...), true
}
