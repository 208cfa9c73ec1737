package cmd

import (
	"fmt"
	"text/tabwriter"

	"langaccessor/models"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var languagesCmd = &cobra.Command{
	Use:         "languages",
	Short:       "List the supported language codes",
	Annotations: map[string]string{noStoreAnnotation: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		writer := new(tabwriter.Writer)
		writer.Init(cmd.OutOrStdout(), 0, 8, 1, '\t', 0)
		fmt.Fprintln(writer, "CODE\tNAME\tENGLISH\tACCEPT-LANGUAGE")
		fmt.Fprintln(writer, "----\t----\t-------\t---------------")
		for _, l := range models.SupportedLanguages() {
			english := string(l.Code)
			if tag, err := language.Parse(string(l.Code)); err == nil {
				english = display.English.Tags().Name(tag)
			}
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", l.Code, l.Name, english, l.HeaderValue)
		}
		writer.Flush()
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}
