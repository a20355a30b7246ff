package logger

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"
)

// Echo returns an echo logger writing through the standard logrus logger.
func Echo() echo.Logger {
	return &echoLogger{log: logrus.StandardLogger()}
}

type echoLogger struct {
	log *logrus.Logger
}

func mustMarshal(j log.JSON) string {
	b, err := json.Marshal(j)
	if err != nil {
		panic(fmt.Sprintf("unable to marshal log message: %v", j))
	}
	return string(b)
}

// SetLevel is a no-op; the level is owned by SetLogrus.
func (l *echoLogger) SetLevel(v log.Lvl) {}

func (l *echoLogger) Level() log.Lvl {
	switch l.log.Level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return log.DEBUG
	case logrus.InfoLevel:
		return log.INFO
	case logrus.WarnLevel:
		return log.WARN
	default:
		return log.ERROR
	}
}

func (l *echoLogger) SetOutput(w io.Writer) { l.log.Out = w }
func (l *echoLogger) Output() io.Writer     { return l.log.Out }
func (l *echoLogger) SetPrefix(p string)    {}
func (l *echoLogger) Prefix() string        { return "" }
func (l *echoLogger) SetHeader(h string)    {}

func (l *echoLogger) Print(i ...interface{})                    { l.log.Print(i...) }
func (l *echoLogger) Printf(format string, args ...interface{}) { l.log.Printf(format, args...) }
func (l *echoLogger) Printj(j log.JSON)                         { l.log.Println(mustMarshal(j)) }
func (l *echoLogger) Debug(i ...interface{})                    { l.log.Debug(i...) }
func (l *echoLogger) Debugf(format string, args ...interface{}) { l.log.Debugf(format, args...) }
func (l *echoLogger) Debugj(j log.JSON)                         { l.log.Debugln(mustMarshal(j)) }
func (l *echoLogger) Info(i ...interface{})                     { l.log.Info(i...) }
func (l *echoLogger) Infof(format string, args ...interface{})  { l.log.Infof(format, args...) }
func (l *echoLogger) Infoj(j log.JSON)                          { l.log.Infoln(mustMarshal(j)) }
func (l *echoLogger) Warn(i ...interface{})                     { l.log.Warn(i...) }
func (l *echoLogger) Warnf(format string, args ...interface{})  { l.log.Warnf(format, args...) }
func (l *echoLogger) Warnj(j log.JSON)                          { l.log.Warnln(mustMarshal(j)) }
func (l *echoLogger) Error(i ...interface{})                    { l.log.Error(i...) }
func (l *echoLogger) Errorf(format string, args ...interface{}) { l.log.Errorf(format, args...) }
func (l *echoLogger) Errorj(j log.JSON)                         { l.log.Errorln(mustMarshal(j)) }
func (l *echoLogger) Fatal(i ...interface{})                    { l.log.Fatal(i...) }
func (l *echoLogger) Fatalf(format string, args ...interface{}) { l.log.Fatalf(format, args...) }
func (l *echoLogger) Fatalj(j log.JSON)                         { l.log.Fatalln(mustMarshal(j)) }
func (l *echoLogger) Panic(i ...interface{})                    { l.log.Panic(i...) }
func (l *echoLogger) Panicf(format string, args ...interface{}) { l.log.Panicf(format, args...) }
func (l *echoLogger) Panicj(j log.JSON)                         { l.log.Panicln(mustMarshal(j)) }
