package asclient

import (
	"fmt"
	"strings"
	"sync"

	asl "github.com/aerospike/aerospike-client-go/v7/logger"

	"github.com/Ratio1/aerospike_native_go/pkg/logger"
)

var bridgeOnce sync.Once

// bridgeLogs routes the client's internal log lines through the shared
// sink. The client tags each line with its level, which is mapped back.
// Later logger.SetLevel calls are forwarded to the client's own gate.
func bridgeLogs() {
	bridgeOnce.Do(func() {
		asl.Logger.SetLogger(printfSink{})
		asl.Logger.SetLevel(clientLevel(logger.GetLevel()))
		logger.OnLevelChange(func(l logger.Level) {
			asl.Logger.SetLevel(clientLevel(l))
		})
	})
}

func clientLevel(l logger.Level) asl.LogPriority {
	switch l {
	case logger.LevelError:
		return asl.ERR
	case logger.LevelWarn:
		return asl.WARNING
	case logger.LevelInfo:
		return asl.INFO
	}
	return asl.DEBUG
}

type printfSink struct{}

func (printfSink) Printf(format string, args ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	switch {
	case strings.HasPrefix(msg, "ERROR"):
		logger.Error("asclient: " + msg)
	case strings.HasPrefix(msg, "WARN"):
		logger.Warn("asclient: " + msg)
	case strings.HasPrefix(msg, "INFO"):
		logger.Info("asclient: " + msg)
	default:
		logger.Debug("asclient: " + msg)
	}
}
