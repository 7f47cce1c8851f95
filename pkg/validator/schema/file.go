package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fields-valid/pkg/validator/core"
	"fields-valid/pkg/validator/rule"
)

// File schema 描述文件
//
//	package: models
//	records:
//	  - name: User
//	    fields:
//	      - name: username
//	        type: string
//	        valid:
//	          - "len(3, 20), 'username must be 3-19 characters'"
//	      - name: nickname
//	        type: "*string"
//	        valid: ["len(2, 8)"]
type File struct {
	Package string    `yaml:"package"`
	Records []*Schema `yaml:"-"`
}

type fileDoc struct {
	Package string      `yaml:"package"`
	Records []recordDoc `yaml:"records"`
}

type recordDoc struct {
	Name   string     `yaml:"name"`
	Fields []fieldDoc `yaml:"fields"`
}

type fieldDoc struct {
	Name  string   `yaml:"name"`
	JSON  string   `yaml:"json"`
	Type  string   `yaml:"type"`
	Valid []string `yaml:"valid"`
}

// LoadFile 读取并解析 schema 描述文件
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 格式的 schema 描述
func Parse(data []byte) (*File, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &core.SchemaError{Pos: -1, Err: fmt.Errorf("%w: %v", core.ErrStructural, err)}
	}

	f := &File{Package: doc.Package}
	seen := make(map[string]bool, len(doc.Records))
	for _, rd := range doc.Records {
		if rd.Name == "" {
			return nil, &core.SchemaError{Pos: -1, Err: fmt.Errorf("%w: record without name", core.ErrStructural)}
		}
		if seen[rd.Name] {
			return nil, &core.SchemaError{Record: rd.Name, Pos: -1, Err: fmt.Errorf("%w: duplicate record", core.ErrStructural)}
		}
		seen[rd.Name] = true

		s, err := rd.schema()
		if err != nil {
			return nil, err
		}
		s.Scope = "schema:" + doc.Package + "." + rd.Name
		f.Records = append(f.Records, s)
	}
	return f, nil
}

// Record 按名称查找记录
func (f *File) Record(name string) (*Schema, bool) {
	for _, s := range f.Records {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func (rd recordDoc) schema() (*Schema, error) {
	s := &Schema{Name: rd.Name, Fields: make([]Field, 0, len(rd.Fields))}
	seen := make(map[string]bool, len(rd.Fields))
	for _, fd := range rd.Fields {
		if fd.Name == "" {
			return nil, &core.SchemaError{Record: rd.Name, Pos: -1, Err: fmt.Errorf("%w: field without name", core.ErrStructural)}
		}
		if seen[fd.Name] {
			return nil, &core.SchemaError{Record: rd.Name, Field: fd.Name, Pos: -1, Err: fmt.Errorf("%w: duplicate field", core.ErrStructural)}
		}
		seen[fd.Name] = true

		field := Field{Name: fd.Name, JSONName: fd.JSON, Type: fd.Type}
		if field.JSONName == "" {
			field.JSONName = fd.Name
		}
		for _, v := range fd.Valid {
			field.Annotations = append(field.Annotations, rule.Wrap(v))
		}
		s.Fields = append(s.Fields, field)
	}
	return s, nil
}
