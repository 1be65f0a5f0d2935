package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"text/template"
	"text/template/parse"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

// templateFuncs are the helpers available to agent templates
var templateFuncs = template.FuncMap{
	"default": defaultValue,
	"join":    joinList,
	"json":    toJSON,
	"upper":   strings.ToUpper,
	"lower":   strings.ToLower,
	"trim":    strings.TrimSpace,
}

// renderPrompt executes the named template of tmpls against data
func renderPrompt(tmpls map[string]string, name string, data map[string]any) (string, error) {
	text, ok := tmpls[name]
	if !ok {
		return "", goerr.New("unknown template",
			goerr.T(apperr.ErrTagValidation), goerr.V("template", name))
	}

	tmpl, err := template.New(name).Funcs(templateFuncs).Parse(text)
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse template", goerr.V("template", name))
	}

	// A referenced key absent from data renders as empty text
	for _, t := range tmpl.Templates() {
		if t.Tree == nil {
			continue
		}
		for key := range referencedKeys(t.Tree.Root) {
			if _, ok := data[key]; !ok {
				data[key] = ""
			}
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render template",
			goerr.T(apperr.ErrTagValidation), goerr.V("template", name))
	}

	return strings.TrimSpace(buf.String()), nil
}

// referencedKeys collects the first field name of every .field and $.field
// reference under node
func referencedKeys(node parse.Node) map[string]struct{} {
	keys := map[string]struct{}{}
	var walk func(parse.Node)
	walk = func(n parse.Node) {
		switch n := n.(type) {
		case *parse.ListNode:
			if n == nil {
				return
			}
			for _, c := range n.Nodes {
				walk(c)
			}
		case *parse.ActionNode:
			walk(n.Pipe)
		case *parse.PipeNode:
			if n == nil {
				return
			}
			for _, c := range n.Cmds {
				walk(c)
			}
		case *parse.CommandNode:
			for _, arg := range n.Args {
				walk(arg)
			}
		case *parse.FieldNode:
			keys[n.Ident[0]] = struct{}{}
		case *parse.VariableNode:
			if len(n.Ident) > 1 && n.Ident[0] == "$" {
				keys[n.Ident[1]] = struct{}{}
			}
		case *parse.ChainNode:
			walk(n.Node)
		case *parse.IfNode:
			walk(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		case *parse.RangeNode:
			walk(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		case *parse.WithNode:
			walk(n.Pipe)
			walk(n.List)
			walk(n.ElseList)
		case *parse.TemplateNode:
			walk(n.Pipe)
		}
	}
	walk(node)
	return keys
}

// templateData exposes the fields of an object input at the top level. Other
// inputs are reachable as .input.
func templateData(input any) map[string]any {
	data := map[string]any{}
	if obj, ok := input.(map[string]any); ok {
		for k, v := range obj {
			data[k] = v
		}
	}
	data["input"] = input
	return data
}

// defaultValue returns given[0] unless it is empty, in which case d
func defaultValue(d any, given ...any) any {
	if len(given) == 0 || isEmpty(given[0]) {
		return d
	}
	return given[0]
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func joinList(list any, sep string) string {
	if list == nil {
		return ""
	}
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Sprint(list)
	}

	parts := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		parts = append(parts, fmt.Sprint(rv.Index(i).Interface()))
	}
	return strings.Join(parts, sep)
}

func toJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
