// Package main mints issuer tokens for local use against certledger.
// Tokens are signed with the development key and will NOT work in production.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "certledger/internal/jwt_token"
	"certledger/internal/platform/config"
	"certledger/pkg/secrets"
)

const (
	defaultTokenTTL = 15 * time.Minute
	defaultBaseURL  = "http://localhost:8080"
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	issuerCmd := flag.NewFlagSet("issuer", flag.ExitOnError)
	issuerID := issuerCmd.String("issuer-id", "issuer-dev-1", "Issuer id placed in the sub claim")
	issuerName := issuerCmd.String("name", "Development University", "Display name placed in the name claim")
	issuer := issuerCmd.String("iss", "", "Token issuer claim (match CERTLEDGER_JWT_ISSUER)")
	audience := issuerCmd.String("aud", "", "Token audience claim (match CERTLEDGER_JWT_AUDIENCE)")
	signingKey := issuerCmd.String("key", config.DevSigningKey, "HS256 signing key")
	ttl := issuerCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	jsonOut := issuerCmd.Bool("json", false, "Output as JSON")

	adminCmd := flag.NewFlagSet("admin", flag.ExitOnError)
	adminToken := adminCmd.String("token", "", "Token to hash. Generated if empty.")
	adminJSON := adminCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "issuer":
		_ = issuerCmd.Parse(os.Args[2:])
		generateIssuerToken(*issuerID, *issuerName, *issuer, *audience, *signingKey, *ttl, *jsonOut)
	case "admin":
		_ = adminCmd.Parse(os.Args[2:])
		generateAdminToken(*adminToken, *adminJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - mint issuer tokens for local certledger use

WARNING: tokens use the development signing key unless -key is given.

Usage:
  tokengen <command> [flags]

Commands:
  issuer    Mint a bearer token for the issuer routes
  admin     Generate an admin token and its bcrypt hash

Examples:
  tokengen issuer
  tokengen issuer -issuer-id "uni-physics" -ttl 1h
  tokengen admin -json

Use "tokengen <command> -h" for the flag list.`)
}

func generateIssuerToken(issuerID, name, issuer, audience, signingKey string, ttl time.Duration, jsonOut bool) {
	svc := jwttoken.NewJWTService(signingKey, issuer, audience, ttl)
	token, err := svc.GenerateToken(issuerID, name, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "issuer_token",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"sub":  issuerID,
				"name": name,
				"iss":  issuer,
				"aud":  audience,
			},
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		})
		return
	}

	fmt.Println("Issuer Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("Issuer ID:  %s\n", issuerID)
	fmt.Printf("Name:       %s\n", name)
	fmt.Printf("Expires In: %s\n", ttl)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H \"Authorization: Bearer <token>\" %s/credentials/<fingerprint>\n", defaultBaseURL)
}

func generateAdminToken(token string, jsonOut bool) {
	if token == "" {
		generated, err := secrets.Generate()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
			os.Exit(1)
		}
		token = generated
	}
	hash, err := secrets.Hash(token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error hashing token: %v\n", err)
		os.Exit(1)
	}

	if jsonOut {
		printJSON(tokenOutput{
			Token: token,
			Type:  "admin_token",
			Usage: map[string]string{
				"header": "X-Admin-Token: <token>",
				"env":    "CERTLEDGER_ADMIN_TOKEN_HASH=" + hash,
			},
		})
		return
	}

	fmt.Println("Admin Token")
	fmt.Println("===========")
	fmt.Printf("Token: %s\n", token)
	fmt.Printf("Hash:  %s\n", hash)
	fmt.Println()
	fmt.Println("Configure the server with:")
	fmt.Printf("  CERTLEDGER_ADMIN_TOKEN_HASH='%s'\n", hash)
	fmt.Println("and send:")
	fmt.Printf("  curl -H \"X-Admin-Token: <token>\" %s/verifications\n", defaultBaseURL)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
