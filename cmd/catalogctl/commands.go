package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jcmexdev/product-catalog/internal/pkg/resilience"
)

func getCmd(client func() *compositeClient) *cobra.Command {
	var delay, faultPercent int
	cmd := &cobra.Command{
		Use:   "get [productKey]",
		Short: "Show the composite view of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := client().GetProduct(cmd.Context(), args[0], delay, faultPercent)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	cmd.Flags().IntVar(&delay, "delay", 0, "Seconds the product service sleeps before answering")
	cmd.Flags().IntVar(&faultPercent, "fault-percent", 0, "Percentage of product reads that fail")
	return cmd
}

func createCmd(client func() *compositeClient) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a composite product read from a JSON file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			if err := client().CreateProduct(cmd.Context(), body); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "accepted")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Product document, - for stdin")
	return cmd
}

func deleteCmd(client func() *compositeClient) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [productKey]",
		Short: "Delete a product from every downstream service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().DeleteProduct(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "accepted")
			return nil
		},
	}
}

type resilienceView struct {
	Policies []resilience.Snapshot `json:"policies"`
}

func breakersCmd(client func() *compositeClient) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "breakers",
		Short: "Show the resilience state of each downstream domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := client().Resilience(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), body)
			}
			var view resilienceView
			if err := json.Unmarshal(body, &view); err != nil {
				return fmt.Errorf("decode resilience snapshot: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DOMAIN\tSTATE\tFAILURE RATE\tIN FLIGHT\tREJECTED\tRATE LIMITED")
			for _, p := range view.Policies {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\t%d\t%d\n", p.Name, p.Breaker.State, p.Breaker.FailureRate,
					p.BulkheadInFlight, p.BulkheadRejected, p.RateLimited)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

func printJSON(w io.Writer, body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		_, err = w.Write(body)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
