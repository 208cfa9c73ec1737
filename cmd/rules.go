package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"langaccessor/config"
	"langaccessor/core"
	"langaccessor/models"

	"github.com/spf13/cobra"
)

var rulesListJSON bool

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the installed header rules",
}

var rulesListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List installed header rules",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := core.NewHeaderRuleEngine(store, config.AppConfig.Rules.MaxRules)
		if err := engine.Load(cmd.Context()); err != nil {
			return err
		}
		rules, err := engine.GetInstalled(cmd.Context())
		if err != nil {
			return err
		}
		if rulesListJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rules)
		}
		printRules(cmd.OutOrStdout(), rules)
		return nil
	},
}

func printRules(out io.Writer, rules []models.Rule) {
	if len(rules) == 0 {
		fmt.Fprintln(out, "No rules installed.")
		return
	}
	writer := new(tabwriter.Writer)
	writer.Init(out, 0, 8, 1, '\t', 0)
	fmt.Fprintln(writer, "ID\tPRIORITY\tDOMAINS\tACCEPT-LANGUAGE")
	fmt.Fprintln(writer, "--\t--------\t-------\t---------------")
	for _, r := range rules {
		value := ""
		for _, h := range r.Action.RequestHeaders {
			if strings.EqualFold(h.Header, models.AcceptLanguageHeader) {
				value = h.Value
			}
		}
		fmt.Fprintf(writer, "%d\t%d\t%s\t%s\n", r.ID, r.Priority, strings.Join(r.Condition.RequestDomains, ","), value)
	}
	writer.Flush()
}

func init() {
	rulesListCmd.Flags().BoolVar(&rulesListJSON, "json", false, "print the rules as JSON")
	rulesCmd.AddCommand(rulesListCmd)
	rootCmd.AddCommand(rulesCmd)
}
