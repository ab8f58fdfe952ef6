package log

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

var stackOnce sync.Once

// installStackMarshaler makes zerolog's Stack() emit the stack trace recorded
// by cockroachdb/errors.
func installStackMarshaler() {
	stackOnce.Do(func() {
		zerolog.ErrorStackMarshaler = func(err error) interface{} {
			if s := extractStacktrace(err); s != "" {
				return s
			}
			return nil
		}
	})
}

func extractStacktrace(err error) string {
	if err == nil {
		return ""
	}
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	if errors.GetReportableStackTrace(err) != nil {
		return fmt.Sprintf("%+v", err)
	}
	return ""
}
