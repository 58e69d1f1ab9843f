// Package errd contains helpers for wrapping errors returned
// through a named error result.
package errd

import (
	"fmt"
)

// Wrap wraps *err with the formatted message if it is non nil.
// Intended for use with defer and a named error return.
// Inspired by https://github.com/golang/go/issues/32676.
func Wrap(err *error, f string, v ...interface{}) {
	if *err != nil {
		*err = fmt.Errorf(f+": %w", append(v, *err)...)
	}
}
