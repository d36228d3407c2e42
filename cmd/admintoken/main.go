// Command admintoken mints an admin bearer token for local development, when
// no identity provider is running.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mathclub/festival-bbs/internal/auth"
	"github.com/mathclub/festival-bbs/internal/config"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	subject := flag.String("sub", "dev-admin", "token subject")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	conf, err := config.New(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	token, err := auth.New(conf.Admin.JWTSecret).NewToken(*subject, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
