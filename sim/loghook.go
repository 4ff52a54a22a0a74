package sim

import (
	"github.com/sirupsen/logrus"
)

// A LogHook is a hook that writes what happens in the simulation to a
// logger.
type LogHook interface {
	Hook
}

// LogHookBase holds the logger of a LogHook.
type LogHookBase struct {
	Logger logrus.FieldLogger
}
