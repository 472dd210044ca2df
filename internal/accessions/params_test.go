package accessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"accessionreport/pkg/sqlquery"
)

func resolver() Resolver {
	return Resolver{Now: func() time.Time { return fixedNow.Add(250 * time.Millisecond) }}
}

func TestResolveDefaults(t *testing.T) {
	p, err := resolver().Resolve(context.Background(), nil, 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), p.RepoID)
	require.Equal(t, "1800-01-01 00:00:00", p.From.Format(BoundLayout))
	require.Equal(t, fixedNow.Format(BoundLayout), p.To.Format(BoundLayout))
	require.Zero(t, p.To.Nanosecond())
	require.False(t, p.ProcessingStatus.Active())
	require.False(t, p.ProcessingPriority.Active())
	require.False(t, p.Classification.Active())
	require.Nil(t, p.Donor)
	require.False(t, p.DonorUnmatched)
}

func TestResolveBlankValuesAreAbsent(t *testing.T) {
	p, err := resolver().Resolve(context.Background(), map[string]any{
		ParamFrom:               "  ",
		ParamProcessingStatus:   "",
		ParamProcessingPriority: nil,
		ParamDonor:              map[string]any{"ref": ""},
	}, 2)
	require.NoError(t, err)
	require.True(t, p.From.Equal(DefaultFrom()))
	require.False(t, p.ProcessingStatus.Active())
	require.Nil(t, p.Donor)
	require.False(t, p.DonorUnmatched)
}

func TestResolveParsesBoundsAndFilters(t *testing.T) {
	to := time.Date(2020, 12, 31, 23, 59, 59, 999, time.Local)
	p, err := resolver().Resolve(context.Background(), map[string]any{
		ParamFrom:               "2020-01-01",
		ParamTo:                 to,
		ParamProcessingStatus:   NoDefinedValue,
		ParamProcessingPriority: AnyDefinedValue,
		ParamClassification:     "Maps",
	}, 2)
	require.NoError(t, err)
	require.Equal(t, "2020-01-01 00:00:00", p.From.Format(BoundLayout))
	require.Equal(t, "2020-12-31 23:59:59", p.To.Format(BoundLayout))
	require.Equal(t, Unset(), p.ProcessingStatus)
	require.Equal(t, Set(), p.ProcessingPriority)
	require.Equal(t, Is("Maps"), p.Classification)
}

func TestResolveConvertsZonedBoundsToLocal(t *testing.T) {
	orig := time.Local
	time.Local = time.FixedZone("EDT", -4*60*60)
	t.Cleanup(func() { time.Local = orig })

	p, err := resolver().Resolve(context.Background(), map[string]any{
		ParamFrom: "2020-03-15T03:00:00Z",
		ParamTo:   time.Date(2020, 3, 16, 12, 30, 0, 0, time.UTC),
	}, 2)
	require.NoError(t, err)
	require.Equal(t, "2020-03-14 23:00:00", p.From.Format(BoundLayout))
	require.Equal(t, "2020-03-16 08:30:00", p.To.Format(BoundLayout))

	preds := Composer{Dialect: sqlquery.SQLite}.Predicates(p)
	require.Equal(t, []any{"2020-03-14 23:00:00", "2020-03-16 08:30:00"}, preds[0].Args)
}

func TestResolveMalformedDate(t *testing.T) {
	_, err := resolver().Resolve(context.Background(), map[string]any{ParamTo: "not a date"}, 2)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ParamTo, verr.Parameter)
	require.Len(t, verr.ParameterErrors(), 1)
	require.Equal(t, ParamTo, verr.ParameterErrors()[0].Name)
}

func TestResolveRejectsWrongTypes(t *testing.T) {
	for name, value := range map[string]any{
		ParamFrom:             42,
		ParamProcessingStatus: 7,
		ParamDonor:            []string{"/agents/people/5"},
	} {
		_, err := resolver().Resolve(context.Background(), map[string]any{name: value}, 2)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, name)
		require.Equal(t, name, verr.Parameter)
	}
}

func TestResolveDonorShapes(t *testing.T) {
	for _, raw := range []any{
		map[string]any{"ref": "/agents/people/5"},
		map[string]string{"ref": "/agents/people/5"},
		DonorParam{Ref: "/agents/people/5"},
		&DonorParam{Ref: "/agents/people/5"},
		"/agents/people/5",
	} {
		p, err := resolver().Resolve(context.Background(), map[string]any{ParamDonor: raw}, 2)
		require.NoError(t, err)
		require.Equal(t, &DonorReference{Kind: DonorPerson, ID: 5, Ref: "/agents/people/5"}, p.Donor)
	}
}

func TestResolveUnmatchedDonorIsUnconstrained(t *testing.T) {
	p, err := resolver().Resolve(context.Background(), map[string]any{
		ParamDonor: map[string]any{"ref": "/agents/software/5"},
	}, 2)
	require.NoError(t, err)
	require.Nil(t, p.Donor)
	require.True(t, p.DonorUnmatched)
}

func TestResolveUsesIDResolver(t *testing.T) {
	var gotKind DonorKind
	r := resolver()
	r.IDs = IDResolverFunc(func(_ context.Context, kind DonorKind, ref string) (int64, error) {
		gotKind = kind
		if ref == "/agents/families/missing" {
			return 0, errors.New("no such agent")
		}
		return 77, nil
	})

	p, err := r.Resolve(context.Background(), map[string]any{ParamDonor: "/agents/families/smith"}, 2)
	require.NoError(t, err)
	require.Equal(t, DonorFamily, gotKind)
	require.Equal(t, int64(77), p.Donor.ID)

	_, err = r.Resolve(context.Background(), map[string]any{ParamDonor: "/agents/families/missing"}, 2)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ParamDonor, verr.Parameter)
}
