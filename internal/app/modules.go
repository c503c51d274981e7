package app

import (
	"io"

	"github.com/vk/burstmission/internal/registry"
	"github.com/vk/burstmission/modules/command"
	"github.com/vk/burstmission/modules/data"
	"github.com/vk/burstmission/modules/env_vars"
	"github.com/vk/burstmission/modules/file"
	"github.com/vk/burstmission/modules/http_request"
	"github.com/vk/burstmission/modules/noop"
	"github.com/vk/burstmission/modules/print"
	"github.com/vk/burstmission/modules/redis"
	"github.com/vk/burstmission/modules/s3"
	"github.com/vk/burstmission/modules/sql_query"
	"github.com/vk/burstmission/modules/websocket"
)

// coreModules is the definitive list of all modules that are compiled into
// the burstmission binary, configured from cfg.
func coreModules(cfg *Config, outW io.Writer) []registry.Module {
	return []registry.Module{
		&noop.Module{},
		&file.Module{Root: cfg.WorkDir},
		&data.Module{},
		&command.Module{},
		&http_request.Module{},
		&print.Module{Out: outW},
		&env_vars.Module{},
		&s3.Module{},
		&redis.Module{URL: cfg.RedisURL},
		&sql_query.Module{Driver: cfg.SQLDriver, DSN: cfg.SQLDSN},
		&websocket.Module{},
	}
}
