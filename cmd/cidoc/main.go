package main

import (
	"github.com/DecisionNerd/infoextract-cidoc/internal/cli"
	"github.com/DecisionNerd/infoextract-cidoc/internal/util"
)

func main() {
	util.LoadEnv()
	cli.Execute()
}
