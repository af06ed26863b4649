package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"mercator-hq/custodian/pkg/retention"
	"mercator-hq/custodian/pkg/tenant"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is a human-readable table (default).
	FormatText OutputFormat = "text"
	// FormatJSON is indented JSON.
	FormatJSON OutputFormat = "json"
)

// Formatter writes command results.
type Formatter interface {
	FormatTo(w io.Writer, data any) error
}

// NewFormatter creates a formatter for format. Unknown formats fall back to text.
func NewFormatter(format OutputFormat) Formatter {
	if format == FormatJSON {
		return &JSONFormatter{Indent: true}
	}
	return &TextFormatter{}
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatTo writes data to w in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// TextFormatter renders retention results and settings as aligned tables.
type TextFormatter struct{}

// FormatTo writes data to w as text.
func (f *TextFormatter) FormatTo(w io.Writer, data any) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	switch v := data.(type) {
	case retention.Results:
		writeResultHeader(tw)
		orgs := make([]string, 0, len(v))
		for org := range v {
			orgs = append(orgs, org)
		}
		slices.Sort(orgs)
		for _, org := range orgs {
			writeResultRow(tw, org, v[org])
		}
	case *retention.Summary:
		writeResultHeader(tw)
		writeResultRow(tw, v.OrgID, retention.Result{Summary: v})
	case *tenant.Settings:
		fmt.Fprintf(tw, "retentionDays\t%d\n", v.RetentionDays)
		fmt.Fprintf(tw, "legalHold\t%t\n", v.LegalHold)
		providers := make([]string, 0, len(v.ModelEnabled))
		for p := range v.ModelEnabled {
			providers = append(providers, p)
		}
		slices.Sort(providers)
		for _, p := range providers {
			fmt.Fprintf(tw, "modelEnabled.%s\t%t\n", p, v.ModelEnabled[p])
		}
	case []string:
		for _, s := range v {
			fmt.Fprintln(tw, s)
		}
	default:
		fmt.Fprintf(tw, "%v\n", data)
	}

	return tw.Flush()
}

func writeResultHeader(w io.Writer) {
	fmt.Fprintln(w, "ORG\tSTATUS\tMESSAGES\tMODEL_INVOCATIONS\tAUDIT_LOGS\tTHREADS\tDAYS")
}

func writeResultRow(w io.Writer, org string, r retention.Result) {
	if r.Summary == nil {
		fmt.Fprintf(w, "%s\terror: %s\t-\t-\t-\t-\t-\n", org, r.Error)
		return
	}

	status := "purged"
	switch {
	case r.SkippedForLegalHold:
		status = "legal_hold"
	case r.DryRun:
		status = "dry_run"
	}
	d := r.Deleted
	fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
		org, status, d.Messages, d.ModelInvocations, d.AuditLogs, d.Threads, r.EffectiveDays)
}
