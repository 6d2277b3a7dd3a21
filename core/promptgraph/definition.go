package promptgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"gopkg.in/yaml.v3"
)

// Definition is a parsed definition file: the raw node list and edge chains
// before validation. Build turns it into a PromptGraph.
type Definition struct {
	ID     string
	Nodes  []NodeDefinition
	Chains []string
}

// Build validates the definition and returns its graph.
func (definition *Definition) Build() (*PromptGraph, error) {
	graph, err := Load(definition.Nodes, definition.Chains)
	if err != nil {
		return nil, fmt.Errorf("definition %q: %w", definition.ID, err)
	}
	return graph, nil
}

// supportedExtensions maps file extensions to their decoder.
var supportedExtensions = map[string]func(id, filename string, data []byte) (*Definition, error){
	".yaml": func(id, _ string, data []byte) (*Definition, error) { return ParseYAML(id, data) },
	".yml":  func(id, _ string, data []byte) (*Definition, error) { return ParseYAML(id, data) },
	".hcl":  ParseHCL,
}

// IsDefinitionFile reports whether path has a supported definition extension.
func IsDefinitionFile(path string) bool {
	_, supported := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return supported
}

// DefinitionID derives the catalog id of a definition file: its base name
// without extension.
func DefinitionID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadFile reads and decodes a definition file, choosing the format by
// extension. The returned definition is not yet validated.
func LoadFile(path string) (*Definition, error) {
	decode, supported := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	if !supported {
		return nil, fmt.Errorf("unsupported definition file extension: %s", path)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the configured definitions directory
	if err != nil {
		return nil, fmt.Errorf("error reading definition file: %w", err)
	}

	return decode(DefinitionID(path), path, data)
}

// --- YAML ---

type yamlDefinition struct {
	Prompts   yaml.Node `yaml:"prompts"`
	PromptDAG []string  `yaml:"prompt_dag"`
}

type yamlPrompt struct {
	ID          yamlID `yaml:"id"`
	SectionName string `yaml:"section_name"`
	Text        string `yaml:"text"`
	System      bool   `yaml:"system"`
}

// yamlID accepts numeric and string ids alike.
type yamlID string

func (id *yamlID) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: node id must be a scalar", value.Line)
	}
	*id = yamlID(strings.TrimSpace(value.Value))
	return nil
}

// ParseYAML decodes a YAML definition. "prompts" may be a mapping keyed by a
// section key (the key is the fallback id and section name) or a sequence of
// prompt entries. Entries keep document order.
func ParseYAML(id string, data []byte) (*Definition, error) {
	var raw yamlDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing YAML definition %q: %w", id, err)
	}

	definition := &Definition{ID: id, Chains: raw.PromptDAG}

	switch raw.Prompts.Kind {
	case 0:
		// no prompts key
	case yaml.MappingNode:
		for index := 0; index+1 < len(raw.Prompts.Content); index += 2 {
			keyNode, valueNode := raw.Prompts.Content[index], raw.Prompts.Content[index+1]
			var prompt yamlPrompt
			if err := valueNode.Decode(&prompt); err != nil {
				return nil, fmt.Errorf("error parsing prompt %q in definition %q: %w", keyNode.Value, id, err)
			}
			if prompt.ID == "" {
				prompt.ID = yamlID(keyNode.Value)
			}
			if prompt.SectionName == "" {
				prompt.SectionName = keyNode.Value
			}
			definition.Nodes = append(definition.Nodes, prompt.toNodeDefinition())
		}
	case yaml.SequenceNode:
		var prompts []yamlPrompt
		if err := raw.Prompts.Decode(&prompts); err != nil {
			return nil, fmt.Errorf("error parsing prompts in definition %q: %w", id, err)
		}
		for _, prompt := range prompts {
			definition.Nodes = append(definition.Nodes, prompt.toNodeDefinition())
		}
	default:
		return nil, fmt.Errorf("definition %q: prompts must be a mapping or a sequence", id)
	}

	return definition, nil
}

func (prompt yamlPrompt) toNodeDefinition() NodeDefinition {
	return NodeDefinition{
		ID:          string(prompt.ID),
		SectionName: prompt.SectionName,
		PromptText:  prompt.Text,
		IsSystem:    prompt.System,
	}
}

// --- HCL ---

type hclDefinition struct {
	Prompts   []hclPrompt `hcl:"prompt,block"`
	PromptDAG []string    `hcl:"prompt_dag,optional"`
}

type hclPrompt struct {
	Key         string `hcl:"key,label"`
	ID          string `hcl:"id"`
	SectionName string `hcl:"section_name,optional"`
	Text        string `hcl:"text"`
	System      bool   `hcl:"system,optional"`
}

// ParseHCL decodes an HCL definition made of labelled prompt blocks and a
// prompt_dag list:
//
//	prompt "overview" {
//	  id           = 1
//	  section_name = "Company Overview"
//	  text         = "Describe the company."
//	}
//	prompt_dag = ["0->1"]
func ParseHCL(id, filename string, data []byte) (*Definition, error) {
	if filepath.Ext(filename) != ".hcl" {
		filename = id + ".hcl"
	}

	var raw hclDefinition
	if err := hclsimple.Decode(filename, data, nil, &raw); err != nil {
		return nil, fmt.Errorf("error parsing HCL definition %q: %w", id, err)
	}

	definition := &Definition{ID: id, Chains: raw.PromptDAG}
	for _, prompt := range raw.Prompts {
		sectionName := prompt.SectionName
		if sectionName == "" {
			sectionName = prompt.Key
		}
		definition.Nodes = append(definition.Nodes, NodeDefinition{
			ID:          prompt.ID,
			SectionName: sectionName,
			PromptText:  prompt.Text,
			IsSystem:    prompt.System,
		})
	}
	return definition, nil
}
