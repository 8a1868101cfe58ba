package main

import (
	"flag"
	stdlog "log"

	"backup_vault/internal/service/app"
	"backup_vault/internal/utils/log"
)

func main() {
	host := flag.String("host", "localhost:3000", "vault server host:port")
	codes := flag.Int("codes", 10, "number of backup codes to generate on register")
	flag.Parse()

	// Keep zap output away from the TUI.
	log.Disable()

	client := app.NewApp(*host, *codes)
	if err := client.Run(); err != nil {
		stdlog.Fatal(err)
	}
}
