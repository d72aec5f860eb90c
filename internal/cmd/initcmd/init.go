// Package initcmd provides the init command for picodoc.
package initcmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/picodoc-lang/picodoc/internal/config"
)

// projectValues holds the answers gathered by the init form.
type projectValues struct {
	Title    string
	Language string
	Author   string
	Document string
}

// NewCmdInit creates the init command.
func NewCmdInit() *cobra.Command {
	var (
		title string
		lang  string
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Scaffold a new PicoDoc project",
		Long: `Scaffold a new PicoDoc project.

This command will guide you through naming the project, then create a
picodoc.yaml config file and a starter document in the target directory
(the current directory by default). The config file is discovered
automatically whenever you build a document next to it.`,
		Example: `  # Interactive setup in the current directory
  picodoc init

  # Scaffold into a subdirectory with the title prefilled
  picodoc init docs --title "My Project"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(dir, title, lang)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Project title (prefills the prompt)")
	cmd.Flags().StringVar(&lang, "lang", "", "Document language tag (e.g., en)")

	return cmd
}

func runInit(dir, prefillTitle, prefillLang string) error {
	configPath := filepath.Join(dir, config.FileName)

	// Check if the project is already initialized
	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		err := huh.NewConfirm().
			Title("Project already initialized").
			Description(fmt.Sprintf("Overwrite %s?", configPath)).
			Value(&overwrite).
			Run()
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Println("Initialization cancelled.")
			return nil
		}
	}

	vals := projectValues{
		Title:    prefillTitle,
		Language: prefillLang,
		Document: "index.pdoc",
	}
	if vals.Language == "" {
		vals.Language = "en"
	}

	// Build the form
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project title").
				Description("Becomes the title of the starter document").
				Placeholder("My Project").
				Value(&vals.Title).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("title is required")
					}
					return nil
				}),

			huh.NewInput().
				Title("Language").
				Description("BCP 47 tag for the html lang attribute").
				Placeholder("en").
				Value(&vals.Language).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("language is required")
					}
					return nil
				}),

			huh.NewInput().
				Title("Author (optional)").
				Description("Saved to the config as an author meta tag").
				Value(&vals.Author),

			huh.NewInput().
				Title("Starter document").
				Description("Filename of the first document to create").
				Placeholder("index.pdoc").
				Value(&vals.Document).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("filename is required")
					}
					if !strings.HasSuffix(s, ".pdoc") {
						return fmt.Errorf("filename must end in .pdoc")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	if err := scaffold(dir, vals); err != nil {
		return err
	}

	docPath := filepath.Join(dir, vals.Document)
	fmt.Printf("\nCreated %s and %s\n", configPath, docPath)
	fmt.Println("\nYou're all set! Try running:")
	fmt.Printf("  picodoc build %s\n", docPath)
	fmt.Printf("  picodoc watch %s -o %s\n", docPath, htmlName(vals.Document))

	return nil
}

// scaffold writes the config file and starter document for a new project.
func scaffold(dir string, vals projectValues) error {
	cfg := &config.Config{
		Env: map[string]string{"project": vals.Title},
	}
	if vals.Author != "" {
		cfg.Meta = map[string]string{"author": vals.Author}
	}
	if err := cfg.Save(filepath.Join(dir, config.FileName)); err != nil {
		return err
	}

	docPath := filepath.Join(dir, vals.Document)
	if err := os.WriteFile(docPath, []byte(starterDocument(vals)), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", docPath, err)
	}

	return nil
}

// starterDocument renders the first document of a fresh project. Form
// input is escaped so a title like "C# notes" cannot break the markup.
func starterDocument(vals projectValues) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#lang: %s\n\n", escapeMarkup(vals.Language))
	fmt.Fprintf(&b, "#title: %s\n\n", escapeMarkup(vals.Title))
	b.WriteString("Welcome to [#env.project]. This paragraph is plain prose and\n")
	b.WriteString("compiles to a regular HTML paragraph.\n\n")
	b.WriteString("#h2: Next steps\n\n")
	b.WriteString("[#ul :\n")
	fmt.Fprintf(&b, "[#* : Add content to %s]\n", escapeMarkup(vals.Document))
	b.WriteString("[#* : Set shared values in picodoc.yaml]\n")
	fmt.Fprintf(&b, "[#* : Run [#code : picodoc build %s] to compile]\n", escapeMarkup(vals.Document))
	b.WriteString("]\n")
	return b.String()
}

var markupEscaper = strings.NewReplacer(
	`\`, `\\`,
	`#`, `\#`,
	`[`, `\[`,
	`]`, `\]`,
)

// escapeMarkup quotes markup-significant characters in user input.
func escapeMarkup(s string) string {
	return markupEscaper.Replace(s)
}

// htmlName maps a document filename to its compiled output name.
func htmlName(doc string) string {
	return strings.TrimSuffix(doc, ".pdoc") + ".html"
}
