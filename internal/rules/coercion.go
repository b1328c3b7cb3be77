// internal/rules/coercion.go
package rules

import (
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"
)

/*
 * Integer coercion for numeric rule options.
 *
 * Rule files are plain text, so prodstate/eventstate/severity bounds and list
 * members arrive as strings. A value must be an optionally signed run of
 * decimal digits. Anything else is a configuration error: it is logged at
 * error level and the option behaves as if it held 0. Evaluation continues.
 */

var intOptionPattern = regexp.MustCompile(`^[-+]?[0-9]+$`)

// CoerceInt converts an option value to an int.
// ok is false when the value is malformed (or overflows) and 0 was used instead.
func CoerceInt(value string) (n int, ok bool) {
	if !intOptionPattern.MatchString(value) {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// optionInt coerces opt.Value and logs malformed values.
func optionInt(opt Option, log logrus.FieldLogger) int {
	n, ok := CoerceInt(opt.Value)
	if !ok && log != nil {
		log.WithFields(logrus.Fields{
			"option": opt.Name,
			"value":  opt.Value,
		}).Error("option value is not an integer, using 0")
	}
	return n
}
