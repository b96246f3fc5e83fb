// Command devtoken prints an access token for local testing against a
// server that shares JWT_SECRET.
//
//	go run ./cmd/devtoken -party 42 -role customer
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/cinema-seat-realtime/internal/utils"
)

func main() {
	_ = godotenv.Load()

	party := flag.String("party", "", "party id placed in the sub claim")
	role := flag.String("role", "CUSTOMER", "role claim (CUSTOMER, ADMIN, OWNER)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *party, *role, *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(tok.Token)
}
