package logger

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// backendLog is the logging backend used to create all subsystem loggers.
var backendLog = NewBackend()

var (
	subsystemsMutex sync.Mutex
	subsystems      = make(map[string]*Logger)
)

// RegisterSubSystem returns the logger for the given subsystem tag, creating
// it on first use. Calling RegisterSubSystem twice with the same tag returns
// the same logger.
func RegisterSubSystem(subsystem string) *Logger {
	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()

	logger, ok := subsystems[subsystem]
	if !ok {
		logger = backendLog.Logger(subsystem)
		subsystems[subsystem] = logger
	}
	return logger
}

// BackendLog returns the backend log shared by all subsystem loggers.
func BackendLog() *Backend {
	return backendLog
}

// InitLog attaches the shared backend to the given log files (all messages to
// logFile, warnings and above to errLogFile) and starts it.
func InitLog(logFile, errLogFile string) error {
	err := backendLog.AddLogFile(logFile, LevelTrace)
	if err != nil {
		return fmt.Errorf("error adding log file %s as log rotator for level %s: %s",
			logFile, LevelTrace, err)
	}
	err = backendLog.AddLogFile(errLogFile, LevelWarn)
	if err != nil {
		return fmt.Errorf("error adding log file %s as log rotator for level %s: %s",
			errLogFile, LevelWarn, err)
	}
	return backendLog.Run()
}

// InitLogStdout attaches the shared backend to standard output at the given
// level and starts it.
func InitLogStdout(logLevel Level) error {
	err := backendLog.AddLogWriter(nopWriteCloser{os.Stdout}, logLevel)
	if err != nil {
		return err
	}
	return backendLog.Run()
}

type nopWriteCloser struct {
	*os.File
}

func (nopWriteCloser) Close() error { return nil }

// SetLogLevels sets the logging level of all registered subsystems to the
// given level. An invalid level string leaves the levels untouched and
// returns false.
func SetLogLevels(logLevel string) bool {
	lvl, ok := LevelFromString(logLevel)
	if !ok {
		return false
	}

	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()
	for _, logger := range subsystems {
		logger.SetLevel(lvl)
	}
	return true
}

// LogAndMeasureExecutionTime logs that functionName has started and returns
// a function that, when deferred, logs how long it took.
func LogAndMeasureExecutionTime(log *Logger, functionName string) (onEnd func()) {
	start := time.Now()
	log.Debugf("%s start", functionName)
	return func() {
		log.Debugf("%s end. Took: %s", functionName, time.Since(start))
	}
}
