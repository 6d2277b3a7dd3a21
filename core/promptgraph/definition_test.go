package promptgraph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const sampleYAML = `
prompts:
  persona:
    id: 0
    text: You are a financial analyst.
    system: true
  overview:
    id: 1
    section_name: Company Overview
    text: Describe the company.
  risks:
    id: 2
    section_name: Risks
    text: List the main risks.
prompt_dag:
  - "0->1->2"
`

const sampleHCL = `
prompt "persona" {
  id     = 0
  text   = "You are a financial analyst."
  system = true
}

prompt "overview" {
  id           = 1
  section_name = "Company Overview"
  text         = "Describe the company."
}

prompt_dag = ["0->1"]
`

func TestParseYAML_Mapping(t *testing.T) {
	definition, err := ParseYAML("company", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}

	want := []NodeDefinition{
		{ID: "0", SectionName: "persona", PromptText: "You are a financial analyst.", IsSystem: true},
		{ID: "1", SectionName: "Company Overview", PromptText: "Describe the company."},
		{ID: "2", SectionName: "Risks", PromptText: "List the main risks."},
	}
	if !reflect.DeepEqual(definition.Nodes, want) {
		t.Errorf("Nodes = %+v, want %+v", definition.Nodes, want)
	}
	if !reflect.DeepEqual(definition.Chains, []string{"0->1->2"}) {
		t.Errorf("Chains = %v", definition.Chains)
	}

	graph, err := definition.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if graph.Len() != 3 {
		t.Errorf("Len() = %d, want 3", graph.Len())
	}
}

func TestParseYAML_SequenceWithDuplicateID(t *testing.T) {
	source := `
prompts:
  - {id: 0, text: a}
  - {id: 1, text: b}
  - {id: 2, text: c}
  - {id: 2, text: d}
prompt_dag: ["0->1->2", "2->3->5"]
`
	definition, err := ParseYAML("dup", []byte(source))
	if err != nil {
		t.Fatalf("ParseYAML() error = %v", err)
	}

	_, err = definition.Build()
	var duplicateErr *DuplicateIDError
	if !errors.As(err, &duplicateErr) {
		t.Fatalf("Build() error = %v, want DuplicateIDError", err)
	}
}

func TestParseHCL(t *testing.T) {
	definition, err := ParseHCL("company", "company.hcl", []byte(sampleHCL))
	if err != nil {
		t.Fatalf("ParseHCL() error = %v", err)
	}

	want := []NodeDefinition{
		{ID: "0", SectionName: "persona", PromptText: "You are a financial analyst.", IsSystem: true},
		{ID: "1", SectionName: "Company Overview", PromptText: "Describe the company."},
	}
	if !reflect.DeepEqual(definition.Nodes, want) {
		t.Errorf("Nodes = %+v, want %+v", definition.Nodes, want)
	}
	if _, err := definition.Build(); err != nil {
		t.Errorf("Build() error = %v", err)
	}
}

func writeFile(t *testing.T, directory, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(directory, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestCatalog_LoadsDirectory(t *testing.T) {
	directory := t.TempDir()
	writeFile(t, directory, "company.yaml", sampleYAML)
	writeFile(t, directory, "short.hcl", sampleHCL)
	writeFile(t, directory, "broken.yml", "prompts:\n  - {id: 0, text: a}\nprompt_dag: [\"0->9\"]\n")
	writeFile(t, directory, "notes.txt", "ignored")

	catalog, err := NewCatalog(directory)
	if err == nil {
		t.Fatal("NewCatalog() error = nil, want the broken definition reported")
	}
	if !errors.Is(err, ErrGraphDefinition) {
		t.Errorf("NewCatalog() error = %v, want ErrGraphDefinition", err)
	}

	if got := catalog.List(); !reflect.DeepEqual(got, []string{"company", "short"}) {
		t.Errorf("List() = %v, want [company short]", got)
	}

	if _, err := catalog.Graph("broken"); !errors.Is(err, ErrGraphDefinition) {
		t.Errorf("Graph(broken) error = %v, want ErrGraphDefinition", err)
	}
	if _, err := catalog.Graph("missing"); !errors.Is(err, ErrDefinitionNotFound) {
		t.Errorf("Graph(missing) error = %v, want ErrDefinitionNotFound", err)
	}
}

func TestCatalog_Register(t *testing.T) {
	catalog, err := NewCatalog("")
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	valid := &Definition{ID: "valid", Nodes: numberedNodes("0", "1"), Chains: []string{"0->1"}}
	if err := catalog.Register(valid); err != nil {
		t.Fatalf("Register(valid) error = %v", err)
	}

	cyclic := &Definition{ID: "valid", Nodes: numberedNodes("0", "1", "2"), Chains: []string{"0->1->2->1"}}
	if err := catalog.Register(cyclic); err == nil {
		t.Fatal("Register(cyclic) error = nil")
	}
	if got := catalog.List(); len(got) != 0 {
		t.Errorf("List() = %v, want empty after invalid replacement", got)
	}
}

func TestCatalog_ReloadKeepsRegisteredDefinitions(t *testing.T) {
	directory := t.TempDir()
	writeFile(t, directory, "company.yaml", sampleYAML)

	catalog, err := NewCatalog(directory)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	adhoc := &Definition{ID: "adhoc", Nodes: numberedNodes("0", "1"), Chains: []string{"0->1"}}
	if err := catalog.Register(adhoc); err != nil {
		t.Fatalf("Register(adhoc) error = %v", err)
	}
	override := &Definition{ID: "company", Nodes: numberedNodes("0", "1", "2", "3"), Chains: []string{"0->1->2->3"}}
	if err := catalog.Register(override); err != nil {
		t.Fatalf("Register(company) error = %v", err)
	}

	writeFile(t, directory, "short.hcl", sampleHCL)
	if err := catalog.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if got := catalog.List(); !reflect.DeepEqual(got, []string{"adhoc", "company", "short"}) {
		t.Errorf("List() after reload = %v, want [adhoc company short]", got)
	}
	graph, err := catalog.Graph("company")
	if err != nil {
		t.Fatalf("Graph(company) error = %v", err)
	}
	if graph.Len() != 4 {
		t.Errorf("Graph(company) has %d nodes, want the registered 4", graph.Len())
	}
}

func TestCatalog_WatchReloads(t *testing.T) {
	directory := t.TempDir()
	catalog, err := NewCatalog(directory, WithReloadDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchDone := make(chan error, 1)
	go func() { watchDone <- catalog.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, directory, "company.yaml", sampleYAML)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(catalog.List()) == 1 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if got := catalog.List(); !reflect.DeepEqual(got, []string{"company"}) {
		t.Errorf("List() after write = %v, want [company]", got)
	}

	cancel()
	if err := <-watchDone; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}
