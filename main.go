package main

import (
	"github.com/tanpawarit/remibot/cmd"
	_ "github.com/tanpawarit/remibot/pkg/logger/autoload"
)

func main() {
	cmd.Execute()
}
