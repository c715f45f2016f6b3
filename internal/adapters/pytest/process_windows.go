//go:build windows

package pytest

import "os/exec"

func configureProcAttr(_ *exec.Cmd) {}
