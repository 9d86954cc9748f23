package main

import (
	"fmt"
	"os"
	"testing"

	"github.com/klauern/marksync/internal/util"
)

func TestMain(m *testing.M) {
	tempHome, err := os.MkdirTemp("", "marksync-home-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp home: %v\n", err)
		os.Exit(1)
	}

	oldHome, hadHome := os.LookupEnv(util.HomeEnv)
	if err := os.Setenv(util.HomeEnv, tempHome); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set %s: %v\n", util.HomeEnv, err)
		_ = os.RemoveAll(tempHome)
		os.Exit(1)
	}

	code := m.Run()

	if hadHome {
		_ = os.Setenv(util.HomeEnv, oldHome)
	} else {
		_ = os.Unsetenv(util.HomeEnv)
	}
	_ = os.RemoveAll(tempHome)

	os.Exit(code)
}
