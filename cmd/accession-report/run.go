package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"accessionreport/internal/accessions"
	"accessionreport/internal/adapters/datasets"
	"accessionreport/pkg/datasetapi"
)

const reportSlug = "bhl/accessions@1.0.0"

// paramBundle is the YAML form of a saved report request.
type paramBundle struct {
	RepoID             int64                  `yaml:"repo_id"`
	Format             string                 `yaml:"format"`
	From               string                 `yaml:"from"`
	To                 string                 `yaml:"to"`
	ProcessingStatus   string                 `yaml:"processing_status"`
	ProcessingPriority string                 `yaml:"processing_priority"`
	Classification     string                 `yaml:"classification"`
	Donor              *accessions.DonorParam `yaml:"donor"`
}

func loadBundle(path string) (paramBundle, error) {
	var b paramBundle
	raw, err := os.ReadFile(path)
	if err != nil {
		return b, fmt.Errorf("read parameter bundle: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		return b, fmt.Errorf("decode parameter bundle %s: %w", path, err)
	}
	return b, nil
}

// parameters returns the non-empty fields as raw report parameters.
func (b paramBundle) parameters() map[string]any {
	params := map[string]any{}
	for name, v := range map[string]string{
		accessions.ParamFrom:               b.From,
		accessions.ParamTo:                 b.To,
		accessions.ParamProcessingStatus:   b.ProcessingStatus,
		accessions.ParamProcessingPriority: b.ProcessingPriority,
		accessions.ParamClassification:     b.Classification,
	} {
		if strings.TrimSpace(v) != "" {
			params[name] = v
		}
	}
	if b.Donor != nil && strings.TrimSpace(b.Donor.Ref) != "" {
		params[accessions.ParamDonor] = map[string]any{"ref": b.Donor.Ref}
	}
	return params
}

func newRunCmd(a *app) *cobra.Command {
	var (
		bundlePath string
		output     string
		flags      paramBundle
		donor      string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the accessions report and print the rows",
		Example: `  accession-report run --repo 2 --from 2020-01-01 --status 'Any Defined Value'
  accession-report run --params request.yaml --format csv --output accessions.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := paramBundle{}
			if bundlePath != "" {
				loaded, err := loadBundle(bundlePath)
				if err != nil {
					return err
				}
				req = loaded
			}
			if donor != "" {
				flags.Donor = &accessions.DonorParam{Ref: donor}
			}
			req = mergeBundle(req, flags, cmd)
			if req.RepoID == 0 {
				req.RepoID = a.cfg.RepoID
			}
			if req.RepoID <= 0 {
				return errors.New("repository id required: pass --repo, set repo_id in the bundle or ACCESSIONREPORT_REPO_ID")
			}
			format := datasetapi.Format(strings.ToLower(req.Format))
			if format == "" {
				format = datasetapi.FormatJSON
			}

			svc, db, err := a.openService(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			template, ok := svc.ResolveDatasetTemplate(reportSlug)
			if !ok {
				return fmt.Errorf("template %s not installed", reportSlug)
			}
			if !template.SupportsFormat(format) {
				return fmt.Errorf("format %q not supported", format)
			}
			result, paramErrs, err := template.Run(cmd.Context(), req.parameters(), datasetapi.Scope{RepoID: req.RepoID, Requestor: "cli"}, format)
			if err != nil {
				return err
			}
			if len(paramErrs) > 0 {
				msgs := make([]string, len(paramErrs))
				for i, e := range paramErrs {
					msgs[i] = e.Name + ": " + e.Message
				}
				return fmt.Errorf("invalid parameters: %s", strings.Join(msgs, "; "))
			}
			payload, err := datasets.Render(format, template.Descriptor(), result)
			if err != nil {
				return err
			}
			if output != "" {
				if err := atomic.WriteFile(output, bytes.NewReader(payload)); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(result.Rows), output)
				return nil
			}
			_, err = cmd.OutOrStdout().Write(payload)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&bundlePath, "params", "", "YAML parameter bundle")
	f.StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	f.Int64Var(&flags.RepoID, "repo", 0, "repository id")
	f.StringVar(&flags.Format, "format", "", "json, csv or html (default json)")
	f.StringVar(&flags.From, "from", "", "earliest accession date")
	f.StringVar(&flags.To, "to", "", "latest accession date")
	f.StringVar(&flags.ProcessingStatus, "status", "", "processing status filter")
	f.StringVar(&flags.ProcessingPriority, "priority", "", "processing priority filter")
	f.StringVar(&flags.Classification, "classification", "", "classification filter")
	f.StringVar(&donor, "donor", "", "donor agent reference, e.g. /agents/people/5")
	return cmd
}

// mergeBundle overlays flags the user set on b.
func mergeBundle(b, flags paramBundle, cmd *cobra.Command) paramBundle {
	set := func(name string) bool { return cmd.Flags().Changed(name) }
	if set("repo") {
		b.RepoID = flags.RepoID
	}
	if set("format") {
		b.Format = flags.Format
	}
	if set("from") {
		b.From = flags.From
	}
	if set("to") {
		b.To = flags.To
	}
	if set("status") {
		b.ProcessingStatus = flags.ProcessingStatus
	}
	if set("priority") {
		b.ProcessingPriority = flags.ProcessingPriority
	}
	if set("classification") {
		b.Classification = flags.Classification
	}
	if set("donor") {
		b.Donor = flags.Donor
	}
	return b
}
