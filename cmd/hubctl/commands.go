package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hubd/pkg/types"
)

// requestFlags are the preference knobs shared by resolve and pull.
type requestFlags struct {
	revision  string
	subfolder string
	device    string
	quants    []string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.revision, "revision", "", "repository revision (default main)")
	cmd.Flags().StringVar(&f.subfolder, "subfolder", "", "explicit repository subfolder")
	cmd.Flags().StringVar(&f.device, "device", "", "device preference: auto|cpu|cuda|dml|coreml")
	cmd.Flags().StringSliceVar(&f.quants, "quant", nil, "quantization priority, most preferred first")
}

func (f *requestFlags) preferences() *types.ModelPreferences {
	if f.subfolder == "" && f.device == "" && len(f.quants) == 0 {
		return nil
	}
	prefs := &types.ModelPreferences{
		Subfolder:        f.subfolder,
		DevicePreference: types.DevicePreference(f.device),
	}
	for _, q := range f.quants {
		prefs.QuantizationPriority = append(prefs.QuantizationPriority, types.Quantization(q))
	}
	return prefs
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newResolveCmd(c *apiClient) *cobra.Command {
	flags := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "resolve <org/name>",
		Short: "Resolve the file manifest for a model repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp types.ResolveResponse
			req := types.ResolveRequest{RepoID: args[0], Revision: flags.revision, Preferences: flags.preferences()}
			if err := c.postJSON("/resolve", req, &resp); err != nil {
				return err
			}
			return printJSON(cmd, resp.Result)
		},
	}
	flags.register(cmd)
	return cmd
}

func newPullCmd(c *apiClient) *cobra.Command {
	flags := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "pull <org/name>",
		Short: "Download a resolved model into the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp types.PullResponse
			req := types.PullRequest{RepoID: args[0], Revision: flags.revision, Preferences: flags.preferences()}
			if err := c.postJSON("/pull", req, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pulled %s -> %s\n", args[0], resp.SnapshotDir)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newModelsCmd(c *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List locally cached models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp types.ModelsResponse
			if err := c.getJSON("/models", &resp); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REPO\tREVISION\tSIZE\tMODIFIED")
			for _, m := range resp.Models {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					m.RepoID, m.Revision, humanBytes(m.SizeBytes), m.LastModified.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newRemoveCmd(c *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <org/name>",
		Short: "Delete a model from the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.delete("/models/" + args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newBackendsCmd(c *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "Show the backend fallback chain for the server host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp types.BackendsResponse
			if err := c.getJSON("/backends", &resp); err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
}

func newStatusCmd(c *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp types.StatusResponse
			if err := c.getJSON("/status", &resp); err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
