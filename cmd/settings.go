package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"langaccessor/core"
	"langaccessor/logger"
	"langaccessor/models"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// settingsFile is the export/import document.
type settingsFile struct {
	Enabled  *bool                 `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Settings models.DomainSettings `json:"settings" yaml:"settings"`
}

var settingsImportReplace bool

var settingsCmd = &cobra.Command{
	Use:     "settings",
	Short:   "Manage per-domain language settings",
	Aliases: []string{"s"},
}

var settingsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List domain settings",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := settings.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		printSettings(cmd.OutOrStdout(), snap)
		return nil
	},
}

func printSettings(out io.Writer, snap models.SettingsSnapshot) {
	status := "enabled"
	if !snap.Enabled {
		status = "disabled"
	}
	fmt.Fprintf(out, "Rewriting is %s.\n", status)
	if len(snap.Settings) == 0 {
		fmt.Fprintln(out, "No domain settings stored.")
		return
	}

	writer := new(tabwriter.Writer)
	writer.Init(out, 0, 8, 1, '\t', 0)
	fmt.Fprintln(writer, "DOMAIN\tLANGUAGE\tNAME\tUPDATED")
	fmt.Fprintln(writer, "------\t--------\t----\t-------")
	for _, d := range snap.Settings.Domains() {
		s := snap.Settings[d]
		updated := "N/A"
		if s.Timestamp > 0 {
			updated = s.Time().Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", d, s.Language, models.LanguageName(s.Language), updated)
	}
	writer.Flush()
}

var settingsSaveCmd = &cobra.Command{
	Use:   "save [domain|url] [language]",
	Short: "Assign a language to a domain",
	Long: `Stores the language used for a domain. The domain may be given as a URL; only its
host is kept. Run 'langaccessor languages' for the supported codes.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp := core.NewCommandHandler(settings, nil).Handle(cmd.Context(), models.Command{
			Action:   models.ActionSaveSetting,
			Domain:   args[0],
			Language: args[1],
		})
		if !resp.Success {
			return fmt.Errorf("save failed: %s", resp.Error)
		}
		view := resp.Data.(models.DomainSettingView)
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", view.Domain, view.Language, models.LanguageName(view.Language))
		if !models.IsSupportedLanguage(view.Language) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %q is not a supported language; no header rule will be installed for %s.\n", view.Language, view.Domain)
		}
		return nil
	},
}

var settingsRemoveCmd = &cobra.Command{
	Use:     "remove [domain|url]",
	Short:   "Remove the setting of a domain",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, err := core.NormalizeDomain(args[0])
		if err != nil {
			return err
		}
		removed, err := settings.RemoveDomainSetting(cmd.Context(), domain)
		if err != nil {
			return err
		}
		if !removed {
			fmt.Fprintf(cmd.OutOrStdout(), "No setting stored for %s.\n", domain)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s.\n", domain)
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every domain setting",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := settings.ClearDomainSettings(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All domain settings removed.")
		return nil
	},
}

var settingsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write settings to a YAML (.yaml, .yml) or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := settings.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		enabled := snap.Enabled
		data, err := encodeSettingsFile(args[0], settingsFile{Enabled: &enabled, Settings: snap.Settings})
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", args[0], err)
		}
		logger.Info("Exported %d domain settings to %s", len(snap.Settings), args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d domain settings to %s.\n", len(snap.Settings), args[0])
		return nil
	},
}

var settingsImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Read settings from a YAML (.yaml, .yml) or JSON file",
	Long: `Merges the domain settings of the file into the stored ones; with --replace the stored
settings are dropped first. Entries with an invalid domain or no language are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		file, err := decodeSettingsFile(args[0], data)
		if err != nil {
			return err
		}
		imported, skipped, err := importSettings(cmd.Context(), file, settingsImportReplace, time.Now())
		if err != nil {
			return err
		}
		for _, s := range skipped {
			fmt.Fprintf(cmd.ErrOrStderr(), "Skipped %s\n", s)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d domain settings from %s.\n", imported, args[0])
		return nil
	},
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func encodeSettingsFile(path string, f settingsFile) ([]byte, error) {
	if f.Settings == nil {
		f.Settings = models.DomainSettings{}
	}
	if isYAMLPath(path) {
		data, err := yaml.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("encoding yaml: %w", err)
		}
		return data, nil
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeSettingsFile(path string, data []byte) (settingsFile, error) {
	var f settingsFile
	var err error
	if isYAMLPath(path) {
		err = yaml.Unmarshal(data, &f)
	} else {
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return settingsFile{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// importSettings writes f into the store. Domains are normalized; entries without a
// timestamp get now.
func importSettings(ctx context.Context, f settingsFile, replace bool, now time.Time) (int, []string, error) {
	merged := models.DomainSettings{}
	if !replace {
		current, err := settings.DomainSettings(ctx)
		if err != nil {
			return 0, nil, err
		}
		for d, s := range current {
			merged[d] = s
		}
	}

	var skipped []string
	imported := 0
	for raw, s := range f.Settings {
		domain, err := core.NormalizeDomain(raw)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%q: %v", raw, err))
			continue
		}
		s.Language = strings.TrimSpace(s.Language)
		if s.Language == "" {
			skipped = append(skipped, fmt.Sprintf("%q: language is required", raw))
			continue
		}
		if s.Timestamp <= 0 {
			s.Timestamp = now.UnixMilli()
		}
		merged[domain] = s
		imported++
	}
	sort.Strings(skipped)

	if err := settings.SaveDomainSettings(ctx, merged); err != nil {
		return 0, skipped, err
	}
	if f.Enabled != nil {
		if err := settings.SetEnabled(ctx, *f.Enabled); err != nil {
			return imported, skipped, err
		}
	}
	return imported, skipped, nil
}

func init() {
	settingsImportCmd.Flags().BoolVar(&settingsImportReplace, "replace", false, "drop stored settings before importing")

	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsSaveCmd)
	settingsCmd.AddCommand(settingsRemoveCmd)
	settingsCmd.AddCommand(settingsClearCmd)
	settingsCmd.AddCommand(settingsExportCmd)
	settingsCmd.AddCommand(settingsImportCmd)
	rootCmd.AddCommand(settingsCmd)
}
