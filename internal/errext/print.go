package errext

import "github.com/sirupsen/logrus"

// Fprint logs err at error level through logger, using Format to extract the
// printable text and any structured fields (hint, ...). A nil err logs
// nothing.
func Fprint(logger logrus.FieldLogger, err error) {
	if err == nil {
		return
	}
	text, fields := Format(err)
	logger.WithFields(fields).Error(text)
}
