package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type captured struct {
	level int
	msg   string
}

func capture(out *[]captured, level int) LogFunc {
	return func(format string, args ...interface{}) {
		*out = append(*out, captured{level: level, msg: fmt.Sprintf(format, args...)})
	}
}

func TestLogger_PrefixAndDispatch(t *testing.T) {
	var out []captured
	l := NewLogger("unit: sshd , ", LogFuncs{
		Debugf: capture(&out, LogLevelDebug),
		Infof:  capture(&out, LogLevelInfo),
		Warnf:  capture(&out, LogLevelWarn),
		Errorf: capture(&out, LogLevelError),
	})

	l.Infof("started, pid: %d", 42)
	l.Warnf("exited, code: %d", 1)
	l.LogLevelf(LogLevelError, "spawn failed")

	assert.Equal(t, []captured{
		{LogLevelInfo, "unit: sshd , started, pid: 42"},
		{LogLevelWarn, "unit: sshd , exited, code: 1"},
		{LogLevelError, "unit: sshd , spawn failed"},
	}, out)
}

func TestLogger_LogLevelfTakesPrecedence(t *testing.T) {
	var levels []int
	l := NewLogger("", LogFuncs{
		LogLevelf: func(level int, format string, args ...interface{}) { levels = append(levels, level) },
		Infof:     func(format string, args ...interface{}) { t.Fatal("Infof must not be called") },
	})

	l.Infof("x")
	l.Debugf("y")

	assert.Equal(t, []int{LogLevelInfo, LogLevelDebug}, levels)
}

func TestWithPrefix(t *testing.T) {
	var out []captured
	parent := NewLogger("init: ", LogFuncs{Infof: capture(&out, LogLevelInfo)})

	WithPrefix(parent, "boot: ").Infof("mounting %s", "/proc")

	assert.Equal(t, []captured{{LogLevelInfo, "init: boot: mounting /proc"}}, out)
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		l := Discard()
		l.Debugf("a")
		l.Infof("b")
		l.Warnf("c")
		l.Errorf("d")
	})
}
