// Command issue-token signs a bearer token with the service secret, for
// local testing and for calling the admin sweep endpoint from ops scripts.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stemsi/exstem-session/internal/service"
	"golang.org/x/term"
)

func main() {
	var (
		kind        string
		userID      int
		perms       string
		expiry      time.Duration
		promptForIt bool
	)
	flag.StringVar(&kind, "type", "student", "Token type: student or admin")
	flag.IntVar(&userID, "user", 0, "Student or admin id")
	flag.StringVar(&perms, "perms", "", "Comma separated admin permissions, e.g. submissions:sweep,results:manage")
	flag.DurationVar(&expiry, "expiry", 0, "Token lifetime (defaults to JWT_EXPIRY_HOURS)")
	flag.BoolVar(&promptForIt, "prompt-secret", false, "Read the signing secret from the terminal instead of JWT_SECRET")
	flag.Parse()

	cfg := config.Load()

	tokenType := service.TokenType(kind)
	if tokenType != service.TokenTypeStudent && tokenType != service.TokenTypeAdmin {
		fmt.Println("Error: -type must be student or admin")
		os.Exit(1)
	}
	if userID <= 0 {
		fmt.Println("Error: -user is required")
		os.Exit(1)
	}
	if expiry > 0 {
		cfg.JWTExpiry = expiry
	}

	if promptForIt {
		fmt.Fprint(os.Stderr, "Enter JWT secret: ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Println("Error reading secret")
			os.Exit(1)
		}
		if len(secret) == 0 {
			fmt.Println("Error: secret is required")
			os.Exit(1)
		}
		cfg.JWTSecret = string(secret)
	}

	var permissions []string
	if tokenType == service.TokenTypeAdmin && perms != "" {
		for _, p := range strings.Split(perms, ",") {
			if p = strings.TrimSpace(p); p != "" {
				permissions = append(permissions, p)
			}
		}
	}

	token, err := service.NewAuthService(cfg, nil).IssueToken(tokenType, userID, permissions...)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
