// CLI tool to create the API token that guards /api and /mcp.
// Generates a random token (or hashes the one given with -token) and prints
// the bcrypt hash to put in API_TOKEN_HASH.
// Usage: go run ./cmd/hash-token [-token secret]
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	token := flag.String("token", "", "Token to hash (random when empty)")
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	flag.Parse()

	plain, hash, err := newToken(strings.TrimSpace(*token), *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nToken created successfully!\n")
	fmt.Printf("  Token:          %s\n", plain)
	fmt.Printf("  API_TOKEN_HASH: %s\n", hash)
}

// newToken hashes token, generating one first when it is empty.
func newToken(token string, cost int) (plain, hash string, err error) {
	if token == "" {
		token = uuid.New().String()
	}
	h, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", "", err
	}
	return token, string(h), nil
}
