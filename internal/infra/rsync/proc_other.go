//go:build !unix

package rsync

import "os/exec"

func detach(*exec.Cmd) {}

func signalName(*exec.ExitError) string { return "" }
