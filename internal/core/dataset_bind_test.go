package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"accessionreport/pkg/datasetapi"
)

func TestDatasetTemplateBindErrors(t *testing.T) {
	var nilTemplate *DatasetTemplate
	require.Error(t, nilTemplate.bind(datasetapi.Environment{}, nil))

	invalid := testTemplate("", "1.0.0")
	require.Error(t, invalid.bind(datasetapi.Environment{}, nil))

	failing := testTemplate("a", "1.0.0")
	failing.Binder = func(datasetapi.Environment) (datasetapi.Runner, error) {
		return nil, errors.New("boom")
	}
	require.EqualError(t, failing.bind(datasetapi.Environment{}, nil), "boom")

	empty := testTemplate("a", "1.0.0")
	empty.Binder = func(datasetapi.Environment) (datasetapi.Runner, error) { return nil, nil }
	require.Error(t, empty.bind(datasetapi.Environment{}, nil))
}

func TestDatasetTemplateBindWrapsRunner(t *testing.T) {
	tpl := testTemplate("a", "1.0.0")
	tpl.Plugin = "demo"
	var wrapped []string
	wrap := func(next datasetapi.Runner) datasetapi.Runner {
		return func(ctx context.Context, req datasetapi.RunRequest) (datasetapi.RunResult, error) {
			wrapped = append(wrapped, req.Template.Slug)
			return next(ctx, req)
		}
	}
	env := datasetapi.Environment{Now: fixedClock()}
	require.NoError(t, tpl.bind(env, wrap))

	result, perrs, err := tpl.Run(context.Background(), map[string]any{"mode": "ok"}, datasetapi.Scope{RepoID: 2}, datasetapi.FormatJSON)
	require.NoError(t, err)
	require.Empty(t, perrs)
	require.Len(t, result.Rows, 2)
	require.Equal(t, []string{"demo/a@1.0.0"}, wrapped)
}

func TestDatasetTemplateBeforeBinding(t *testing.T) {
	tpl := testTemplate("a", "1.0.0")
	tpl.Plugin = "demo"

	desc := tpl.Descriptor()
	require.Equal(t, "demo/a@1.0.0", desc.Slug)
	require.Equal(t, "mode", desc.Parameters[0].Name)
	require.True(t, tpl.SupportsFormat(datasetapi.FormatJSON))
	require.False(t, tpl.SupportsFormat(datasetapi.FormatCSV))

	cleaned, perrs := tpl.ValidateParameters(map[string]any{"mode": "fail", "colour": "red"})
	require.Len(t, perrs, 1)
	require.Equal(t, "colour", perrs[0].Name)
	require.Equal(t, "fail", cleaned["mode"])
}
