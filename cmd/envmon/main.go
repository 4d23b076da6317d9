// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/envmon/cmd/envmon/cmd"
)

func main() {
	cmd.Execute()
}
