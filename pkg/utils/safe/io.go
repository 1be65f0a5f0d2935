package safe

import (
	"context"
	"fmt"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/utils/errors"
)

// Close closes c and logs a failure instead of returning it. Used for
// resources released on cleanup paths where the caller has nothing to do
// with the error. A nil closer is ignored.
func Close(ctx context.Context, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		errors.Handle(ctx, goerr.Wrap(err, "failed to close resource",
			goerr.V("type", fmt.Sprintf("%T", c))))
	}
}
