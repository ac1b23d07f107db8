package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List gallery items",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		items, err := svc.ListItems()
		if err != nil {
			return fmt.Errorf("failed to list items: %w", err)
		}

		switch output {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		case "yaml":
			out, err := yaml.Marshal(items)
			if err != nil {
				return fmt.Errorf("error marshaling items: %w", err)
			}
			fmt.Print(string(out))
			return nil
		case "table", "":
		default:
			return fmt.Errorf("unknown output format: %s (expected table, json or yaml)", output)
		}

		if len(items) == 0 {
			fmt.Println("No items in gallery")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tID\tLABEL\tIMAGE\tAUDIO\tCREATED")
		for i, item := range items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				i+1, item.ID, item.DisplayLabel(),
				yesNo(item.HasImage()), yesNo(item.HasAudio()),
				item.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func init() {
	listCmd.Flags().StringP("output", "o", "table", "output format: table, json or yaml")
}
