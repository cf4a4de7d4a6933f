package sys

import (
	"bytes"
	"os/exec"

	"github.com/pkg/errors"
)

// Execute runs an external program and captures its output. With redirect
// the standard error stream is folded into standard output, mirroring a
// shell 2>&1.
func Execute(path string, args []string, redirect bool) (stdout, stderr string, err error) {
	cmd := exec.Command(path, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	if redirect {
		cmd.Stderr = &out
	} else {
		cmd.Stderr = &errOut
	}
	if runErr := cmd.Run(); runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			return "", "", errors.Wrapf(runErr, "execute %s", path)
		}
	}
	return out.String(), errOut.String(), nil
}
