package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
package: models
records:
  - name: User
    fields:
      - name: username
        type: string
        valid: ["len(3, 20), 'username must be 3-19 characters'"]
      - name: email
        type: string
        valid: ["email, 'bad email'"]
      - name: balance
        type: Optional[decimal.Decimal]
        valid: ["range(0, 1000), 'bad balance'"]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type output struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func run(t *testing.T, stdin string, args ...string) (int, *output) {
	t.Helper()
	out := &output{}
	code := Run(context.Background(), args, IO{
		Stdin:  strings.NewReader(stdin),
		Stdout: &out.stdout,
		Stderr: &out.stderr,
	})
	return code, out
}

func decodeResults(t *testing.T, s string) []result {
	t.Helper()
	var results []result
	dec := json.NewDecoder(strings.NewReader(s))
	for dec.More() {
		var r result
		require.NoError(t, dec.Decode(&r))
		results = append(results, r)
	}
	return results
}

func TestRun_CheckValid(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.yaml", testSchema)
	records := `{"username":"alice","email":"alice@example.com"}

{"username":"bob","email":"bob@example.com","balance":999.99}
`
	code, out := run(t, records, "check", "-s", schemaPath, "-r", "User")
	assert.Equal(t, ExitOK, code, out.stderr.String())
	assert.Empty(t, out.stdout.String())
	assert.Contains(t, out.stderr.String(), "check finished")
}

func TestRun_CheckInvalid(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.yaml", testSchema)
	recordsPath := writeFile(t, dir, "users.ndjson", strings.Join([]string{
		`{"username":"al","email":"not-an-email"}`,
		`{"username":"alice","email":"alice@example.com"}`,
		`{"username":"carol","email":"carol@example.com","balance":1e400}`,
		`not json`,
		`{"username":"dave","email":"dave"}`,
	}, "\n"))

	code, out := run(t, "", "check", "--schema", schemaPath, "--record", "User", "--records", recordsPath, "--log-format", "json")
	assert.Equal(t, ExitInvalid, code)

	results := decodeResults(t, out.stdout.String())
	require.Len(t, results, 4)
	assert.Equal(t, result{Line: 1, Field: "username", JSON: "username", Message: "username must be 3-19 characters", Kind: kindViolation}, results[0])
	assert.Equal(t, 3, results[1].Line)
	assert.Equal(t, kindCoercion, results[1].Kind)
	assert.Equal(t, "balance", results[1].Field)
	assert.Equal(t, kindDecode, results[2].Kind)
	assert.Equal(t, result{Line: 5, Field: "email", JSON: "email", Message: "bad email", Kind: kindViolation}, results[3])

	assert.Contains(t, out.stderr.String(), `"msg":"record invalid"`)
}

func TestRun_CheckFailFast(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.yaml", testSchema)
	records := `{"username":"al","email":"a@b.co"}
{"username":"bo","email":"a@b.co"}
`
	code, out := run(t, records, "check", "-s", schemaPath, "-r", "User", "--fail-fast")
	assert.Equal(t, ExitInvalid, code)
	assert.Len(t, decodeResults(t, out.stdout.String()), 1)
}

func TestRun_CheckUsageErrors(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.yaml", testSchema)
	broken := writeFile(t, dir, "broken.yaml", `
records:
  - name: User
    fields:
      - name: age
        type: int
        valid: ["len(1, 3)"]
`)

	tests := []struct {
		name string
		args []string
	}{
		{name: "缺少 record", args: []string{"check", "-s", schemaPath}},
		{name: "记录不存在", args: []string{"check", "-s", schemaPath, "-r", "Missing"}},
		{name: "schema 文件不存在", args: []string{"check", "-s", filepath.Join(dir, "none.yaml"), "-r", "User"}},
		{name: "注解错误", args: []string{"check", "-s", broken, "-r", "User"}},
		{name: "记录文件不存在", args: []string{"check", "-s", schemaPath, "-r", "User", "--records", filepath.Join(dir, "none.ndjson")}},
		{name: "未知参数", args: []string{"check", "--nope"}},
		{name: "未知命令", args: []string{"serve"}},
		{name: "无参数", args: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := run(t, "", tt.args...)
			assert.Equal(t, ExitUsage, code)
		})
	}
}

func TestRun_Help(t *testing.T) {
	code, out := run(t, "", "help")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out.stdout.String(), "usage: fieldsvalid")

	code, _ = run(t, "", "gen", "--help")
	assert.Equal(t, ExitOK, code)
}

func TestRun_Gen(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.yaml", testSchema)

	code, out := run(t, "", "gen", "-s", schemaPath, "-p", "accounts")
	require.Equal(t, ExitOK, code, out.stderr.String())
	assert.Contains(t, out.stdout.String(), "package accounts")
	assert.Contains(t, out.stdout.String(), "func (r *User) FieldsValidate() error {")

	target := filepath.Join(dir, "user_valid.go")
	code, out = run(t, "", "gen", "-s", schemaPath, "-o", target)
	require.Equal(t, ExitOK, code, out.stderr.String())
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "package models")
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.yaml", testSchema)
	cfgPath := writeFile(t, dir, "fieldsvalid.yaml", "schema: "+schemaPath+"\nrecord: User\nlog:\n  level: error\n")

	code, out := run(t, `{"username":"alice","email":"a@b.co"}`, "check", "--config", cfgPath)
	assert.Equal(t, ExitOK, code, out.stderr.String())
	assert.Empty(t, out.stderr.String(), "error 级别不输出 info")
}

func TestRun_Canceled(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.yaml", testSchema)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := Run(ctx, []string{"check", "-s", schemaPath, "-r", "User"}, IO{
		Stdin:  strings.NewReader(`{"username":"alice","email":"a@b.co"}`),
		Stdout: &stdout,
		Stderr: &stderr,
	})
	assert.Equal(t, ExitUsage, code)
}
