package main

import (
	"fmt"

	"github.com/synod-ai/synod/pkg/version"
)

type versionCmd struct{}

func (v *versionCmd) Execute(_ []string) error {
	fmt.Println(version.Full())
	return nil
}
