package emit

import (
	"strings"
	"text/template"
)

// The fragment is assembled from named slots (header, namespace, factory
// blocks, connect/disconnect blocks, lookup tables) rather than one
// interpolated blob, so each block stays independently testable and the
// surrounding indentation logic lives in exactly one place (fragmentBuilder).

// factoryData fills one factory-method block.
type factoryData struct {
	HandlerName string
	EventName   string
	Params      []string
	Dispatch    string
}

// bindingData fills one conditional connect/disconnect block. Closure is the
// C# expression producing the event's generated handler closure.
type bindingData struct {
	EventName string
	Closure   string
}

// connectData fills the connect or disconnect method.
type connectData struct {
	Method   string // "Connect" or "Disconnect"
	Operator string // "+=" or "-="
	Bindings []bindingData
}

// tableData fills one literal lookup-table initializer.
type tableData struct {
	Field   string // "EventIds" or "EventNames"
	KeyType string
	ValType string
	Rows    []tableRow
}

type tableRow struct {
	Key   string // already rendered as a C# literal
	Value string
}

var templates = template.Must(template.New("fragment").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`
{{- define "factory" -}}
public {{.HandlerName}} Get{{.HandlerName}}()
{
    return ({{join .Params ", "}}) => {{.Dispatch}}("{{.EventName}}"{{range .Params}}, {{.}}{{end}});
}
{{- end -}}

{{- define "connect" -}}
public void {{.Method}}(string eventName)
{
{{- range .Bindings}}
    if (eventName == "{{.EventName}}")
    {
        {{.EventName}} {{$.Operator}} {{.Closure}};
        return;
    }
{{- end}}
}
{{- end -}}

{{- define "table" -}}
private static readonly System.Collections.Generic.Dictionary<{{.KeyType}}, {{.ValType}}> {{.Field}} =
    new System.Collections.Generic.Dictionary<{{.KeyType}}, {{.ValType}}>
    {
{{- range .Rows}}
        { {{.Key}}, {{.Value}} },
{{- end}}
    };
{{- end -}}
`))
