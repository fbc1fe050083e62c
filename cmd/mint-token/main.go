// mint-token issues a signed role token for local development and testing.
// The production tokens come from the platform; this tool signs with the same
// shared secret so an engine instance pointed at a stub accepts them.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gradeloop/session-engine/internal/config"
	"github.com/gradeloop/session-engine/internal/service"
)

func main() {
	var (
		tokenType string
		userID    int
		name      string
	)
	flag.StringVar(&tokenType, "type", "student", "Token type: student or lecturer")
	flag.IntVar(&userID, "user-id", 1, "User ID to embed in the token")
	flag.StringVar(&name, "name", "", "Display name to embed in the token")
	flag.Parse()

	var tt service.TokenType
	switch tokenType {
	case "student":
		tt = service.TokenTypeStudent
	case "lecturer":
		tt = service.TokenTypeLecturer
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown token type %q (want student or lecturer)\n", tokenType)
		os.Exit(1)
	}

	cfg := config.Load()
	authService := service.NewAuthService(cfg)

	token, err := authService.GenerateToken(tt, userID, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
