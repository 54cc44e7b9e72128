package prompts

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lcprompts "github.com/tmc/langchaingo/prompts"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Entry is one named prompt: a system message and a Go template for the user turn.
type Entry struct {
	System   string `yaml:"system"`
	Template string `yaml:"template"`
}

// Book holds every prompt the pipeline renders.
type Book struct {
	entries  map[string]Entry
	preamble string
}

// preamble files are prepended to every system prompt, in this order.
var preambleOrder = map[string]int{
	"identity.md": 1,
	"user.md":     2,
}

// Default returns the built-in prompt book.
func Default() *Book {
	b, err := parse(defaultsYAML)
	if err != nil {
		panic(err)
	}
	return b
}

func parse(data []byte) (*Book, error) {
	entries := make(map[string]Entry)
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse prompt book: %w", err)
	}
	return &Book{entries: entries}, nil
}

// Load returns the built-in book with overrides from dir applied.
// <name>.md replaces a template, <name>.system.md replaces its system prompt,
// and identity.md/user.md form a preamble for every system prompt.
// A missing dir is not an error.
func Load(dir string) (*Book, error) {
	b := Default()
	if dir == "" {
		return b, nil
	}
	files, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := preambleOrder[files[i].Name()]
		oj, okJ := preambleOrder[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI != okJ {
			return okI
		}
		return files[i].Name() < files[j].Name()
	})

	var preamble []string
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
			continue
		}
		content := strings.TrimSpace(string(data))

		if _, ok := preambleOrder[name]; ok {
			preamble = append(preamble, content)
			continue
		}
		key := strings.TrimSuffix(name, ".md")
		system := strings.HasSuffix(key, ".system")
		key = strings.TrimSuffix(key, ".system")
		e, ok := b.entries[key]
		if !ok {
			log.Printf("Warning: ignoring unknown prompt override %s", path)
			continue
		}
		if system {
			e.System = content
		} else {
			e.Template = content
		}
		b.entries[key] = e
	}
	b.preamble = strings.Join(preamble, "\n\n---\n\n")
	return b, nil
}

// Names lists the prompts in the book.
func (b *Book) Names() []string {
	names := make([]string, 0, len(b.entries))
	for n := range b.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Render fills the named template with vars and returns the system and user prompts.
func (b *Book) Render(name string, vars map[string]any) (system, prompt string, err error) {
	e, ok := b.entries[name]
	if !ok {
		return "", "", fmt.Errorf("unknown prompt %q", name)
	}
	tmpl := lcprompts.PromptTemplate{
		Template:       e.Template,
		TemplateFormat: lcprompts.TemplateFormatGoTemplate,
		InputVariables: variables(vars),
	}
	prompt, err = tmpl.Format(vars)
	if err != nil {
		return "", "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	system = e.System
	if b.preamble != "" {
		system = b.preamble + "\n\n---\n\n" + system
	}
	return system, strings.TrimSpace(prompt), nil
}

func variables(vars map[string]any) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
