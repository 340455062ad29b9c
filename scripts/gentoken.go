// One-off: go run scripts/gentoken.go [user-id] [signing-key]
package main

import (
	"fmt"
	"os"
	"time"

	"todoapi/internal/auth"
)

func main() {
	userID := "dev-user"
	if len(os.Args) > 1 {
		userID = os.Args[1]
	}
	key := "dev"
	if len(os.Args) > 2 {
		key = os.Args[2]
	}
	tok, err := auth.DevToken(userID, []byte(key), 24*time.Hour, time.Now())
	if err != nil {
		panic(err)
	}
	fmt.Print(tok)
}
