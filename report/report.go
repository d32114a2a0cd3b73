// Package report renders pricing results for people and for files.
package report

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/xhhuango/json"

	"github.com/bcdannyboy/rbergomi/probability"
)

// JSON encodes res.
func JSON(res *probability.Result) ([]byte, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshalling result: %w", err)
	}
	return b, nil
}

// WriteFile stores res as JSON at path.
func WriteFile(path string, res *probability.Result) error {
	b, err := JSON(res)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Table prints one aligned row per cell followed by the run summary.
func Table(w io.Writer, res *probability.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "H\teta\trho\tT\tK\tprice\tstderr\timplied vol\t")
	for _, c := range res.Cells {
		iv := "-"
		switch {
		case c.IVError != "":
			iv = "n/a"
		case c.ImpliedVol > 0:
			iv = fmt.Sprintf("%.6f", c.ImpliedVol)
		}
		fmt.Fprintf(tw, "%.4g\t%.4g\t%.4g\t%.4g\t%.4g\t%.7f\t%.2e\t%s\t\n",
			c.H, c.Eta, c.Rho, c.T, c.K, c.Price, c.StdErr, iv)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nN=%d M=%d workers=%d scheme=%s source=%s hierarchical=%t discarded=%d elapsed=%v\n",
		res.Steps, res.Samples, res.Workers, res.Scheme, res.Source, res.Hierarchical, res.Discarded, res.Elapsed)
	return err
}
