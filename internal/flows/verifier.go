package flows

import (
	"errors"
	"fmt"
)

// guardVerifier runs fn and converts any error or panic it raises into
// failErr. Verifier detail is kept in the wrapped message for logging.
func guardVerifier(failErr error, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: verifier panic: %v", failErr, r)
		}
	}()

	if err := fn(); err != nil {
		if errors.Is(err, failErr) {
			return err
		}
		return fmt.Errorf("%w: %v", failErr, err)
	}
	return nil
}
