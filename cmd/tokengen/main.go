// Package main provides a CLI tool for generating test tokens for the
// icegrid API. These tokens use the dev signing key and will NOT work
// against a production deployment.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"icegrid/internal/jwttoken"
)

// Dev signing key - matches config.go when JWT_SIGNING_KEY is not set.
const devSigningKey = "dev-secret-key-change-in-production"

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 720 * time.Hour
)

type tokenOutput struct {
	Token     string `json:"token"`
	Type      string `json:"type"`
	ExpiresIn string `json:"expires_in"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	OrgID     string `json:"organization_id"`
	Usage     string `json:"usage"`
}

func main() {
	tokenType := flag.String("type", "access", "Token type: access or refresh")
	userID := flag.String("user-id", "", "User ID (UUID). Generated if empty.")
	sessionID := flag.String("session-id", "", "Session ID (UUID). Generated if empty.")
	role := flag.String("role", "admin", "Role: admin, operator, or client")
	orgID := flag.String("org-id", "", "Organization ID (UUID). Generated if empty.")
	signingKey := flag.String("key", devSigningKey, "JWT signing key")
	ttl := flag.Duration("ttl", defaultAccessTTL, "Access token time-to-live")
	asJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	var tt jwttoken.TokenType
	switch *tokenType {
	case "access":
		tt = jwttoken.TypeAccess
	case "refresh":
		tt = jwttoken.TypeRefresh
	default:
		fmt.Fprintf(os.Stderr, "unknown token type %q (want access or refresh)\n", *tokenType)
		os.Exit(1)
	}

	uid := parseOrGenerate(*userID, "user-id")
	sid := parseOrGenerate(*sessionID, "session-id")
	oid := parseOrGenerate(*orgID, "org-id")

	codec := jwttoken.New(*signingKey, *ttl, defaultRefreshTTL)
	token, err := codec.Encode(tt, uid, *role, oid.String(), sid)
	if err != nil {
		fmt.Fprintln(os.Stderr, "encode token:", err)
		os.Exit(1)
	}

	expires := *ttl
	if tt == jwttoken.TypeRefresh {
		expires = defaultRefreshTTL
	}

	if *asJSON {
		out := tokenOutput{
			Token:     token,
			Type:      string(tt),
			ExpiresIn: expires.String(),
			UserID:    uid.String(),
			SessionID: sid.String(),
			Role:      *role,
			OrgID:     oid.String(),
			Usage:     `curl -H "Authorization: Bearer <token>" http://localhost:8080/api/...`,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "\ntype=%s user=%s session=%s role=%s org=%s expires_in=%s\n",
		tt, uid, sid, *role, oid, expires)
}

func parseOrGenerate(raw, name string) uuid.UUID {
	if raw == "" {
		return uuid.New()
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid %s %q: %v\n", name, raw, err)
		os.Exit(1)
	}
	return id
}
