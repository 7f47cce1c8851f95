// Package config 命令行配置：默认值 -> 配置文件 -> 环境变量 -> 命令行参数，后者覆盖前者
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"fields-valid/pkg/logger"
)

// EnvPrefix 环境变量前缀，log.level 对应 FIELDSVALID_LOG_LEVEL
const EnvPrefix = "FIELDSVALID"

// 子命令
const (
	CommandCheck = "check"
	CommandGen   = "gen"
)

// Config fieldsvalid 配置
type Config struct {
	// Command 当前子命令，不从配置读取
	Command string `mapstructure:"-" validate:"oneof=check gen"`

	Log logger.Config `mapstructure:"log"`

	// Schema schema 描述文件
	Schema string `mapstructure:"schema" validate:"required"`

	// Record check 时验证的记录名
	Record string `mapstructure:"record" validate:"required_if=Command check"`
	// Records NDJSON 输入文件，"-" 表示标准输入
	Records string `mapstructure:"records"`
	// FailFast 遇到第一条不合法记录即停止
	FailFast bool `mapstructure:"fail_fast"`

	// Package gen 生成代码的包名，为空时使用 schema 中的 package
	Package string `mapstructure:"package"`
	// Output gen 输出文件，"-" 表示标准输出
	Output string `mapstructure:"output"`
}

// flagKeys 命令行参数名 -> 配置键
var flagKeys = map[string]string{
	"config":     "",
	"log-level":  "log.level",
	"log-format": "log.format",
	"log-file":   "log.file",
	"schema":     "schema",
	"record":     "record",
	"records":    "records",
	"fail-fast":  "fail_fast",
	"package":    "package",
	"output":     "output",
}

var defaults = map[string]any{
	"log.level":        "info",
	"log.format":       logger.FormatConsole,
	"log.file":         "",
	"log.max_size_mb":  100,
	"log.max_backups":  3,
	"log.max_age_days": 7,
	"log.compress":     false,
	"schema":           "",
	"record":           "",
	"records":          "-",
	"fail_fast":        false,
	"package":          "",
	"output":           "-",
}

// Flags 子命令的命令行参数
func Flags(command string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(command, pflag.ContinueOnError)
	fs.String("config", "", "config file (yaml/json/toml)")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-format", logger.FormatConsole, "log format: json, console")
	fs.String("log-file", "", "also write logs to this file (rotated)")
	fs.StringP("schema", "s", "", "schema description file")

	switch command {
	case CommandCheck:
		fs.StringP("record", "r", "", "record name to validate against")
		fs.String("records", "-", "NDJSON records file, - for stdin")
		fs.Bool("fail-fast", false, "stop at the first invalid record")
	case CommandGen:
		fs.StringP("package", "p", "", "package name of the generated file")
		fs.StringP("output", "o", "-", "output file, - for stdout")
	}
	return fs
}

// Load 加载配置；path 为空时不读取配置文件，flags 中只有显式设置的参数覆盖其他来源
func Load(path string, flags *pflag.FlagSet, command string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimLeft(filepath.Ext(path), "."); ext != "" {
			v.SetConfigType(ext)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || key == "" {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Command = command

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate 校验配置
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
