// Package cli fieldsvalid 命令行
//
//	fieldsvalid check --schema models.yaml --record User --records users.ndjson
//	fieldsvalid gen --schema models.yaml --package models --output models_valid.go
//
// 退出码：0 成功；1 存在不合法记录；2 参数、配置或 schema 错误。
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"fields-valid/pkg/config"
	"fields-valid/pkg/logger"
	"fields-valid/pkg/validator/schema"
)

// 退出码
const (
	ExitOK      = 0
	ExitInvalid = 1
	ExitUsage   = 2
)

const usage = `usage: fieldsvalid <command> [flags]

commands:
  check   validate NDJSON records against a schema record
  gen     generate Go types with FieldsValidate methods

run 'fieldsvalid <command> --help' for command flags
`

// IO 命令的输入输出
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run 执行命令，返回退出码
func Run(ctx context.Context, args []string, stdio IO) int {
	if len(args) == 0 {
		fmt.Fprint(stdio.Stderr, usage)
		return ExitUsage
	}

	command, rest := args[0], args[1:]
	switch command {
	case "help", "-h", "--help":
		fmt.Fprint(stdio.Stdout, usage)
		return ExitOK
	case config.CommandCheck, config.CommandGen:
	default:
		fmt.Fprintf(stdio.Stderr, "unknown command %q\n\n%s", command, usage)
		return ExitUsage
	}

	fs := config.Flags(command)
	fs.SetOutput(stdio.Stderr)
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}
	configPath, _ := fs.GetString("config")

	cfg, err := config.Load(configPath, fs, command)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return ExitUsage
	}

	log, err := logger.New(cfg.Log, stdio.Stderr)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return ExitUsage
	}
	defer func() { _ = log.Sync() }()

	file, err := schema.LoadFile(cfg.Schema)
	if err != nil {
		log.Error("load schema failed", zap.String("schema", cfg.Schema), zap.Error(err))
		return ExitUsage
	}

	switch command {
	case config.CommandCheck:
		return runCheck(ctx, cfg, file, log, stdio)
	default:
		return runGen(cfg, file, log, stdio)
	}
}

// openInput "-" 或空为标准输入
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path)
}
