package badger

import (
	"fmt"
	"strings"

	"github.com/marmos91/fxd/internal/logger"
)

// badgerLogger routes badger's internal logging into the fxd logger.
// Badger's info chatter is demoted to debug.
type badgerLogger struct{}

func format(f string, args ...any) string {
	return strings.TrimRight(fmt.Sprintf(f, args...), "\n")
}

func (badgerLogger) Errorf(f string, args ...any) {
	logger.Error(format(f, args...), logger.KeyStore, "badger")
}

func (badgerLogger) Warningf(f string, args ...any) {
	logger.Warn(format(f, args...), logger.KeyStore, "badger")
}

func (badgerLogger) Infof(f string, args ...any) {
	logger.Debug(format(f, args...), logger.KeyStore, "badger")
}

func (badgerLogger) Debugf(f string, args ...any) {
	logger.Debug(format(f, args...), logger.KeyStore, "badger")
}
