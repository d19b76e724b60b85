// Command token mints a bearer token for local testing against the API
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/limbo/stakesave/pkg/config"
	jwtservice "github.com/limbo/stakesave/pkg/jwt_service"
)

func main() {
	identity := flag.String("identity", "", "account identity the token acts as")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()
	if *identity == "" {
		log.Fatal("identity is required")
	}
	cfg := config.New()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is empty")
	}
	token, err := jwtservice.NewWithTTL(cfg.JWTSecret, *ttl).GenerateToken(*identity)
	if err != nil {
		log.Fatal("generating token error: " + err.Error())
	}
	fmt.Println(token)
}
