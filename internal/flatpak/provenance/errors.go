package provenance

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRuntimeModuleNotFound means no build requirement of the base module
// declares a runtime profile.
var ErrRuntimeModuleNotFound = errors.New("failed to identify runtime module")

// MismatchError reports a runtime whose installed packages differ from its
// runtime profile.
type MismatchError struct {
	Missing []string
	Extra   []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("installed set of packages does not match runtime profile (%d missing, %d extra):\n\tmissing: %s\n\textra: %s",
		len(e.Missing), len(e.Extra), strings.Join(e.Missing, " "), strings.Join(e.Extra, " "))
}

// StrayComponentsError lists installed packages attributable neither to the
// runtime nor to an application module.
type StrayComponentsError struct {
	Strays []string
}

func (e *StrayComponentsError) Error() string {
	return fmt.Sprintf("found %d installed packages not from the runtime or application: %s",
		len(e.Strays), strings.Join(e.Strays, " "))
}
