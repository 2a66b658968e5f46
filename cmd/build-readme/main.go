// cmd/build-readme regenerates README.md from the registered commands.
package main

import (
	"flag"

	_ "izumi/internal/command/birthday"
	_ "izumi/internal/command/chat"
	_ "izumi/internal/command/core"
	_ "izumi/internal/command/games"
	_ "izumi/internal/command/level"
	_ "izumi/internal/command/memory"
	_ "izumi/internal/command/mod"
	_ "izumi/internal/command/remind"
	_ "izumi/internal/command/roles"
	_ "izumi/internal/command/social"

	"izumi/internal/config"
	"izumi/internal/docs"

	log "github.com/sirupsen/logrus"
)

func main() {
	tmpl := flag.String("tmpl", "README.md.tmpl", "template file, the built-in one when missing")
	out := flag.String("out", "README.md", "output file")
	prefix := flag.String("prefix", "!", "command prefix shown in the docs")
	flag.Parse()

	if err := docs.UpdateReadme(*tmpl, *out, config.AppName, *prefix, config.CategoryWeights); err != nil {
		log.Fatal(err)
	}
}
