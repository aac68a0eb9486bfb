package engine

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// DefaultName is the engine used when the caller names none.
const DefaultName = "javascript"

// extToEngine maps file extensions to canonical engine names.
var extToEngine = map[string]string{
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
	".ts":  "typescript",
	".mts": "typescript",
	".cts": "typescript",
	".tsx": "tsx",
	".go":  "go",
}

// aliases maps alternative engine names to canonical ones.
var aliases = map[string]string{
	"babylon": "javascript",
	"js":      "javascript",
	"ts":      "typescript",
	"golang":  "go",
}

var jsDeclarations = map[string]string{
	"function_declaration":           "name",
	"generator_function_declaration": "name",
	"function":                       "name",
	"function_expression":            "name",
	"class_declaration":              "name",
	"class":                          "name",
	"method_definition":              "name",
	"field_definition":               "property",
	"variable_declarator":            "name",
	"pair":                           "key",
}

var tsOnlyDeclarations = map[string]string{
	"abstract_class_declaration": "name",
	"interface_declaration":      "name",
	"type_alias_declaration":     "name",
	"enum_declaration":           "name",
	"public_field_definition":    "name",
	"property_signature":         "name",
	"method_signature":           "name",
	"abstract_method_signature":  "name",
	"function_signature":         "name",
	"module":                     "name",
	"internal_module":            "name",
}

var goDeclarations = map[string]string{
	"function_declaration": "name",
	"method_declaration":   "name",
	"type_spec":            "name",
	"type_alias":           "name",
	"const_spec":           "name",
	"var_spec":             "name",
	"field_declaration":    "name",
	"method_spec":          "name",
	"method_elem":          "name",
}

var (
	engines     map[string]*TreeSitter
	enginesOnce sync.Once
)

func initEngines() {
	enginesOnce.Do(func() {
		js := &grammar{
			name:         "javascript",
			language:     javascript.GetLanguage(),
			identifiers:  set("identifier", "property_identifier", "private_property_identifier"),
			declarations: jsDeclarations,
			lifts: map[string][]string{
				"variable_declarator": {"lexical_declaration", "variable_declaration"},
			},
			strings:   set("string", "template_string"),
			calls:     set("call_expression", "new_expression"),
			arguments: set("arguments"),
			pairs:     set("pair"),
			comment:   "comment",
			decorator: "decorator",
			exports:   set("export_statement"),
		}

		tsGrammar := *js
		tsGrammar.name = "typescript"
		tsGrammar.language = ts.GetLanguage()
		tsGrammar.identifiers = set("identifier", "property_identifier", "private_property_identifier", "type_identifier")
		tsGrammar.declarations = merge(jsDeclarations, tsOnlyDeclarations)

		tsxGrammar := tsGrammar
		tsxGrammar.name = "tsx"
		tsxGrammar.language = tsx.GetLanguage()

		goGrammar := &grammar{
			name:         "go",
			language:     golang.GetLanguage(),
			identifiers:  set("identifier", "field_identifier", "type_identifier"),
			declarations: goDeclarations,
			lifts: map[string][]string{
				"type_spec":  {"type_declaration"},
				"type_alias": {"type_declaration"},
				"const_spec": {"const_declaration"},
				"var_spec":   {"var_declaration"},
			},
			strings:   set("interpreted_string_literal", "raw_string_literal"),
			calls:     set("call_expression"),
			arguments: set("argument_list"),
			comment:   "comment",
		}

		engines = map[string]*TreeSitter{
			"javascript": &TreeSitter{g: js},
			"typescript": &TreeSitter{g: &tsGrammar},
			"tsx":        &TreeSitter{g: &tsxGrammar},
			"go":         &TreeSitter{g: goGrammar},
		}
	})
}

// Lookup returns the built-in engine registered under name or one of its
// aliases. Returns (nil, false) if the name is unknown.
func Lookup(name string) (*TreeSitter, bool) {
	initEngines()
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	e, ok := engines[name]
	return e, ok
}

// Default returns the default engine.
func Default() *TreeSitter {
	e, _ := Lookup(DefaultName)
	return e
}

// Names returns the canonical names of the built-in engines, sorted.
func Names() []string {
	initEngines()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LanguageForFile returns the canonical engine name for a file path based on
// its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	name, ok := extToEngine[ext]
	return name, ok
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

func merge(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
