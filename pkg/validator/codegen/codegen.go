// Package codegen 根据 schema 描述文件生成记录类型及其 FieldsValidate 方法
//
// 生成的代码与运行期编译的验证器语义一致：按字段声明顺序检查，
// 规则组内任一规则不满足即返回该组的消息；正则以包级变量注册到生成包自己的注册表，
// 不同包中的同名记录互不冲突，首次匹配时才编译。共享的邮箱正则使用 matcher 默认注册表。
// 生成前先用 compiler 编译每个记录，注解错误不会产生任何代码。
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"fields-valid/pkg/validator/compiler"
	"fields-valid/pkg/validator/core"
	"fields-valid/pkg/validator/matcher"
	"fields-valid/pkg/validator/rule"
	"fields-valid/pkg/validator/schema"
)

const (
	importCore    = "fields-valid/pkg/validator/core"
	importMatcher = "fields-valid/pkg/validator/matcher"
	importDecimal = "github.com/shopspring/decimal"

	emailVar    = "EMAIL_REGEX"
	registryVar = "validRegexes"
)

var fileTemplate = template.Must(template.New("file").Parse(`// Code generated by fieldsvalid gen. DO NOT EDIT.

package {{.Package}}
{{if .Imports}}
import (
{{- range .Imports}}
	{{printf "%q" .}}
{{- end}}
)
{{end}}
{{- if .Regexes}}
var (
{{- range .Regexes}}
	{{.Var}} = {{.Init}}
{{- end}}
)
{{end}}
{{- range .Records}}
// {{.Type}} {{.Name}} 记录
type {{.Type}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}} {{.Tag}}
{{- end}}
}

// FieldsValidate 按字段声明顺序验证，返回第一个不合法规则组的错误
func (r *{{.Type}}) FieldsValidate() error {
{{- range .Blocks}}
{{.}}
{{- end}}
	return nil
}
{{end}}`))

type fileData struct {
	Package string
	Imports []string
	Regexes []regexVar
	Records []recordData
}

type regexVar struct {
	Var  string
	Init string
}

type recordData struct {
	Name   string
	Type   string
	Fields []fieldData
	Blocks []string
}

type fieldData struct {
	Name string
	Type string
	Tag  string
}

// generator 单次生成的状态
type generator struct {
	usesCore     bool
	usesMatcher  bool
	usesDecimal  bool
	usesRegistry bool
	regexes      []regexVar
	seenRegex    map[string]bool
}

// Generate 生成 Go 源码（已 gofmt）
func Generate(file *schema.File, pkg string) ([]byte, error) {
	if pkg == "" {
		pkg = file.Package
	}
	if pkg == "" {
		return nil, fmt.Errorf("codegen: package name is required")
	}

	// 先编译，注解错误在生成前暴露
	registry := matcher.NewRegistry()
	for _, s := range file.Records {
		if _, err := compiler.Compile(s, compiler.WithRegistry(registry)); err != nil {
			return nil, err
		}
	}

	g := &generator{seenRegex: make(map[string]bool)}
	data := fileData{Package: pkg}
	types := make(map[string]string, len(file.Records))
	for _, s := range file.Records {
		rd, err := g.record(s)
		if err != nil {
			return nil, err
		}
		if other, ok := types[rd.Type]; ok {
			return nil, collision(s.Name, "", other, rd.Type)
		}
		types[rd.Type] = s.Name
		data.Records = append(data.Records, rd)
	}
	if g.usesRegistry {
		data.Regexes = append(data.Regexes, regexVar{Var: registryVar, Init: "matcher.NewRegistry()"})
	}
	data.Regexes = append(data.Regexes, g.regexes...)
	if g.usesDecimal {
		data.Imports = append(data.Imports, importDecimal)
	}
	if g.usesCore {
		data.Imports = append(data.Imports, importCore)
	}
	if g.usesMatcher {
		data.Imports = append(data.Imports, importMatcher)
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("codegen: execute template: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("codegen: format generated source: %w", err)
	}
	return src, nil
}

func (g *generator) record(s *schema.Schema) (recordData, error) {
	rd := recordData{Name: s.Name, Type: exportedName(s.Name)}
	names := make(map[string]string, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		name := exportedName(f.Name)
		if other, ok := names[name]; ok {
			return recordData{}, collision(s.Name, f.Name, other, name)
		}
		names[name] = f.Name

		res := schema.Resolve(f)
		typ := g.goType(res)
		rd.Fields = append(rd.Fields, fieldData{
			Name: name,
			Type: typ,
			Tag:  structTag(f),
		})

		block, err := g.fieldBlock(s, f, res)
		if err != nil {
			return recordData{}, err
		}
		if block != "" {
			rd.Blocks = append(rd.Blocks, block)
		}
	}
	return rd, nil
}

// goType 字段的 Go 类型，可选字段为指针
func (g *generator) goType(res schema.Resolved) string {
	var inner string
	switch res.Kind {
	case core.KindText:
		inner = "string"
	case core.KindDecimal:
		g.usesDecimal = true
		inner = "decimal.Decimal"
	case core.KindNumeric:
		switch res.Inner {
		case "", "number":
			inner = "float64"
		case "integer":
			inner = "int64"
		default:
			inner = res.Inner
		}
	default:
		if res.Inner == "bool" {
			inner = "bool"
		} else {
			inner = "any"
		}
	}
	if res.Optional && inner != "any" {
		return "*" + inner
	}
	return inner
}

// structTag json tag 加上原始注解，反射路径得到相同的规则
func structTag(f *schema.Field) string {
	tag := "json:" + strconv.Quote(f.Key())
	if len(f.Annotations) > 0 {
		tag += " " + schema.DefaultTagKey + ":" + strconv.Quote(strings.Join(f.Annotations, "; "))
	}
	if strings.Contains(tag, "`") {
		return strconv.Quote(tag)
	}
	return "`" + tag + "`"
}

// fieldBlock 单个字段的全部检查语句；可选字段包在非 nil 判断中
func (g *generator) fieldBlock(s *schema.Schema, f *schema.Field, res schema.Resolved) (string, error) {
	if len(f.Annotations) == 0 {
		return "", nil
	}

	value := "r." + exportedName(f.Name)
	if res.Optional && g.goType(res) != "any" {
		value = "*" + value
	}

	var b strings.Builder
	regexes := 0
	for _, src := range f.Annotations {
		meta, err := rule.ParseAnnotation(src)
		if err != nil {
			return "", err
		}
		g.usesCore = true
		violation := fmt.Sprintf("core.NewViolation(%q, %q, %q, %q)", s.Name, f.Name, f.Key(), meta.Message)

		fmt.Fprintf(&b, "\t// %s\n", strings.ReplaceAll(meta.Source, "\n", " "))
		for _, r := range meta.Rules {
			switch r := r.(type) {
			case rule.Len:
				writeCheck(&b, fmt.Sprintf("!core.CharCountIn(%s, %d, %d)", value, r.Min, r.Max), violation)
			case rule.Regex:
				regexes++
				name := matcher.Name(s.Name, f.Name)
				if regexes > 1 {
					name += "_" + strconv.Itoa(regexes)
				}
				g.usesRegistry = true
				v := g.regex(name, fmt.Sprintf("%s.MustRegister(%q, %q)", registryVar, name, r.Pattern))
				writeCheck(&b, fmt.Sprintf("!%s.MatchString(%s)", v, value), violation)
			case rule.Email:
				v := g.regex(emailVar, "matcher.Email()")
				writeCheck(&b, fmt.Sprintf("!%s.MatchString(%s)", v, value), violation)
			case rule.Range:
				lo, hi := formatFloat(r.Min), formatFloat(r.Max)
				if res.Kind == core.KindDecimal {
					fmt.Fprintf(&b, "\tif ok, err := core.DecimalInRange(%s, %s, %s); err != nil {\n", value, lo, hi)
					fmt.Fprintf(&b, "\t\treturn &core.CoercionError{Record: %q, Field: %q, Value: %s, Err: err}\n", s.Name, f.Name, value)
					fmt.Fprintf(&b, "\t} else if !ok {\n\t\treturn %s\n\t}\n", violation)
				} else {
					writeCheck(&b, fmt.Sprintf("!core.InRange(float64(%s), %s, %s)", value, lo, hi), violation)
				}
			case rule.Eq:
				cond, err := g.eqCondition(s, res, value, r)
				if err != nil {
					return "", err
				}
				writeCheck(&b, cond, violation)
			}
		}
	}

	body := b.String()
	if res.Optional {
		body = "\tif r." + exportedName(f.Name) + " != nil {\n" + indent(body) + "\t}\n"
	}
	return strings.TrimRight(body, "\n"), nil
}

// eqCondition eq 规则不满足时的条件表达式
func (g *generator) eqCondition(s *schema.Schema, res schema.Resolved, value string, r rule.Eq) (string, error) {
	if !r.IsField {
		return fmt.Sprintf("%s != %q", value, r.Target), nil
	}
	sibling, ok := s.Lookup(r.Target)
	if !ok {
		return "", &core.SchemaError{Record: s.Name, Rule: rule.KeywordEq, Pos: -1, Err: fmt.Errorf("%w: %s", core.ErrUnknownField, r.Target)}
	}
	other := "r." + exportedName(sibling.Name)
	siblingRes := schema.Resolve(sibling)
	siblingPtr := siblingRes.Optional && g.goType(siblingRes) != "any"
	if siblingPtr {
		other = "*" + other
	}

	var equal string
	switch {
	case res.Kind == core.KindDecimal:
		equal = fmt.Sprintf("%s.Equal(%s)", value, other)
	case res.Kind == core.KindText || res.Kind == core.KindNumeric || res.Inner == "bool":
		equal = fmt.Sprintf("%s == %s", value, other)
	default:
		g.usesCore = true
		equal = fmt.Sprintf("core.Equal(%s, %s)", value, other)
	}
	if siblingPtr {
		return fmt.Sprintf("!(r.%s != nil && %s)", exportedName(sibling.Name), equal), nil
	}
	return "!(" + equal + ")", nil
}

// regex 声明包级正则变量，同名只声明一次
func (g *generator) regex(name, init string) string {
	g.usesMatcher = true
	v := identifier(name)
	if !g.seenRegex[v] {
		g.seenRegex[v] = true
		g.regexes = append(g.regexes, regexVar{Var: v, Init: init})
	}
	return v
}

// collision 两个名称映射到同一个 Go 标识符
func collision(record, field, other, ident string) error {
	return &core.SchemaError{
		Record: record,
		Field:  field,
		Pos:    -1,
		Err:    fmt.Errorf("%w: %q and %q both generate Go identifier %s", core.ErrStructural, other, firstNonEmpty(field, record), ident),
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func writeCheck(b *strings.Builder, cond, violation string) {
	fmt.Fprintf(b, "\tif %s {\n\t\treturn %s\n\t}\n", cond, violation)
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line != "" && line != "\n" {
			b.WriteString("\t")
		}
		b.WriteString(line)
	}
	return b.String()
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if f < 0 {
		return "(" + s + ")"
	}
	return s
}

// exportedName user_name -> UserName
func exportedName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	var b strings.Builder
	for _, p := range parts {
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	out := identifier(b.String())
	if out == "" || !unicode.IsLetter([]rune(out)[0]) {
		out = "F" + out
	}
	return out
}

// identifier 替换标识符中不允许的字符
func identifier(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
}
