package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	"go.uber.org/zap"

	"fields-valid/pkg/config"
	"fields-valid/pkg/types"
	"fields-valid/pkg/validator/compiler"
	"fields-valid/pkg/validator/core"
	"fields-valid/pkg/validator/matcher"
	"fields-valid/pkg/validator/schema"
)

// maxLineSize 单条记录的最大字节数
const maxLineSize = 4 << 20

// result check 输出的一行，每条不合法记录一行
type result struct {
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	JSON    string `json:"json,omitempty"`
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

const (
	kindViolation = "violation"
	kindCoercion  = "coercion"
	kindDecode    = "decode"
)

// summary 检查统计
type summary struct {
	Total   int
	Invalid int
}

func runCheck(ctx context.Context, cfg *config.Config, file *schema.File, log *zap.Logger, stdio IO) int {
	s, ok := file.Record(cfg.Record)
	if !ok {
		log.Error("record not found in schema", zap.String("record", cfg.Record), zap.String("schema", cfg.Schema))
		return ExitUsage
	}

	registry := matcher.NewRegistry(matcher.WithLogger(log))
	v, err := compiler.Compile(s, compiler.WithRegistry(registry), compiler.WithLogger(log))
	if err != nil {
		log.Error("compile schema failed", zap.Error(err))
		return ExitUsage
	}

	in, err := openInput(cfg.Records, stdio.Stdin)
	if err != nil {
		log.Error("open records failed", zap.String("records", cfg.Records), zap.Error(err))
		return ExitUsage
	}
	defer in.Close()

	sum, err := checkRecords(ctx, v, in, stdio.Stdout, cfg.FailFast, log)
	if err != nil {
		log.Error("read records failed", zap.Error(err))
		return ExitUsage
	}

	log.Info("check finished",
		zap.String("record", cfg.Record),
		zap.Int("total", sum.Total),
		zap.Int("invalid", sum.Invalid))
	if sum.Invalid > 0 {
		return ExitInvalid
	}
	return ExitOK
}

// checkRecords 逐行验证 NDJSON 记录，不合法的记录以 JSON 行写入 out
func checkRecords(ctx context.Context, v *compiler.Validator, in io.Reader, out io.Writer, failFast bool, log *zap.Logger) (summary, error) {
	var sum summary
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		line++
		data := scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		sum.Total++

		res, ok := checkLine(v, data, line)
		if ok {
			continue
		}
		sum.Invalid++
		log.Warn("record invalid",
			zap.Int("line", line),
			zap.String("field", res.Field),
			zap.String("kind", res.Kind),
			zap.String("message", res.Message))
		if err := enc.Encode(res); err != nil {
			return sum, err
		}
		if failFast {
			break
		}
	}
	return sum, scanner.Err()
}

func checkLine(v *compiler.Validator, data []byte, line int) (result, bool) {
	rec, err := types.Decode(data)
	if err != nil {
		return result{Line: line, Message: err.Error(), Kind: kindDecode}, false
	}

	err = v.Evaluate(rec)
	if err == nil {
		return result{}, true
	}
	if ve, ok := core.AsViolation(err); ok {
		return result{Line: line, Field: ve.Field, JSON: ve.JSONName, Message: ve.Message, Kind: kindViolation}, false
	}
	res := result{Line: line, Message: err.Error(), Kind: kindCoercion}
	var ce *core.CoercionError
	if errors.As(err, &ce) {
		res.Field = ce.Field
	}
	return res, false
}
