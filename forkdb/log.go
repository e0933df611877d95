package forkdb

import (
	"github.com/huangminghuang/leap/infrastructure/logger"
)

var log = logger.RegisterSubSystem("FKDB")
